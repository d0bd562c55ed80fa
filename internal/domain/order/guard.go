package order

import (
	"github.com/mercatto/checkout/internal/domain/identity"
)

// Operation enumerates the guarded order mutations.
type Operation string

const (
	OpRewriteItems   Operation = "rewrite_items"
	OpRewriteAddress Operation = "rewrite_address"
	OpRewritePayment Operation = "rewrite_payment"
	OpTransition     Operation = "transition_status"
	OpDelete         Operation = "delete"
)

// allowedOps is the closed capability table: which operations each role may
// perform on an order it is otherwise entitled to touch. There is no runtime
// registration; changing a role's powers means editing this table.
var allowedOps = map[identity.Role]map[Operation]bool{
	identity.RoleAdmin: {
		OpRewriteItems:   true,
		OpRewriteAddress: true,
		OpRewritePayment: true,
		OpTransition:     true,
		OpDelete:         true,
	},
	identity.RoleCustomer: {
		OpRewriteItems:   true,
		OpRewriteAddress: true,
		OpRewritePayment: true,
		OpTransition:     true,
		OpDelete:         true,
	},
}

// Authorize decides whether the actor may perform op on the given order.
// Customers may only touch orders they own; admins may touch any order.
func Authorize(actor identity.Actor, o *Order, op Operation) error {
	if !allowedOps[actor.Role][op] {
		return ErrForbidden
	}
	if actor.IsAdmin() {
		return nil
	}
	if o.CustomerID != actor.UserID {
		return ErrForbidden
	}
	return nil
}

// AuthorizeTransition layers role restrictions over the state machine:
// customers may only cancel their own pending orders, while admins may make
// any legal transition.
func AuthorizeTransition(actor identity.Actor, o *Order, next Status) error {
	if err := Authorize(actor, o, OpTransition); err != nil {
		return err
	}
	if actor.IsAdmin() {
		return nil
	}
	if o.Status == StatusPending && next == StatusCancelled {
		return nil
	}
	return ErrForbidden
}

// CheckMutable enforces which fields may be rewritten given the order's
// status: items, address, and payment method may only change while PENDING.
// Status changes are governed by the state machine, not by this check.
func CheckMutable(o *Order, op Operation) error {
	switch op {
	case OpRewriteItems, OpRewriteAddress, OpRewritePayment:
		if o.Status != StatusPending {
			return ErrOrderLocked
		}
		return nil
	case OpDelete:
		// Confirmed and delivered orders are permanent records.
		if o.Status == StatusConfirmed || o.Status == StatusDelivered {
			return ErrOrderLocked
		}
		return nil
	default:
		return nil
	}
}
