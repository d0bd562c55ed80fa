package coupon

import (
	"time"

	"github.com/mercatto/checkout/internal/money"
)

// EvaluationContext carries the order-side facts eligibility depends on.
// PriorUsageExists must come from the same transaction that will commit the
// redemption; the predicate itself never touches storage.
type EvaluationContext struct {
	UserID           string
	OrderTotal       money.Amount
	ProductIDs       []string
	Now              time.Time
	PriorUsageExists bool
}

// Evaluate applies the redemption rules in a fixed order and returns nil when
// the coupon is accepted, or a *RejectionError naming the first rule that
// failed. The ordering is part of the contract: callers always see a single
// deterministic reason.
func Evaluate(c *Coupon, ectx EvaluationContext) error {
	// Soft-deleted rows are filtered here explicitly rather than by a default
	// query scope.
	if c == nil || !c.IsActive || c.DeletedAt != nil {
		return Reject(c, ReasonInvalid)
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(ectx.Now) {
		return Reject(c, ReasonExpired)
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return Reject(c, ReasonExhausted)
	}
	if ectx.PriorUsageExists {
		return Reject(c, ReasonAlreadyUsed)
	}
	if c.MinOrderValue != nil && int64(ectx.OrderTotal) < *c.MinOrderValue {
		return Reject(c, ReasonBelowMinimum)
	}
	if c.Scope == ScopeProducts && !intersects(c.ProductIDs, ectx.ProductIDs) {
		return Reject(c, ReasonScopeMismatch)
	}
	return nil
}

// Discount returns the discount this coupon grants against the given items
// total. It assumes the coupon already passed Evaluate.
func Discount(c *Coupon, itemsTotal money.Amount) money.Amount {
	if c == nil {
		return 0
	}
	switch c.Type {
	case TypePercent:
		return money.PercentOf(itemsTotal, c.Value)
	case TypeFixed:
		return money.Amount(c.Value)
	default:
		return 0
	}
}

func intersects(allowed, requested []string) bool {
	if len(allowed) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
