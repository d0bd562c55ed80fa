package order

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	// StatusPending is the initial state; a pending order is the cart.
	StatusPending Status = "PENDING"
	// StatusConfirmed is reached through checkout or a direct confirmation.
	StatusConfirmed Status = "CONFIRMED"
	// StatusDelivered is terminal.
	StatusDelivered Status = "DELIVERED"
	// StatusCancelled is terminal and only reachable from PENDING.
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus validates a raw status string against the closed set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled:
		return Status(s), nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// transitions is the complete legal state machine. Absent entries are illegal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusDelivered},
}

// CanTransitionTo reports whether moving from s to next is legal.
// Same-state "transitions" are not legal moves; callers treat them as no-ops.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves this state.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// InvalidTransitionError reports an illegal status transition request.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// StatusEvent is one append-only row of an order's status history.
type StatusEvent struct {
	OrderID string
	Status  Status
	At      time.Time
}
