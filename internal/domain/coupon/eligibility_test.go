package coupon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercatto/checkout/internal/money"
)

func activeCoupon() *Coupon {
	return &Coupon{
		ID:       "c1",
		Code:     "SAVE10",
		Type:     TypePercent,
		Scope:    ScopeAll,
		Value:    10,
		IsActive: true,
	}
}

func TestEvaluate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)
	minValue := int64(5000)
	maxUses := 3

	baseCtx := EvaluationContext{
		UserID:     "u1",
		OrderTotal: 10000,
		ProductIDs: []string{"p1", "p2"},
		Now:        fixedNow,
	}

	tests := []struct {
		name       string
		coupon     func() *Coupon
		ectx       func() EvaluationContext
		wantReason Reason
	}{
		{
			name:   "nil coupon is invalid",
			coupon: func() *Coupon { return nil },
			ectx:   func() EvaluationContext { return baseCtx },

			wantReason: ReasonInvalid,
		},
		{
			name: "inactive coupon is invalid",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.IsActive = false
				return c
			},
			ectx:       func() EvaluationContext { return baseCtx },
			wantReason: ReasonInvalid,
		},
		{
			name: "soft-deleted coupon is invalid even while active",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.DeletedAt = &past
				return c
			},
			ectx:       func() EvaluationContext { return baseCtx },
			wantReason: ReasonInvalid,
		},
		{
			name: "expired",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.ExpiresAt = &past
				return c
			},
			ectx:       func() EvaluationContext { return baseCtx },
			wantReason: ReasonExpired,
		},
		{
			name: "not expired when expiry in future",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.ExpiresAt = &future
				return c
			},
			ectx: func() EvaluationContext { return baseCtx },
		},
		{
			name: "exhausted",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.MaxUses = &maxUses
				c.UsedCount = 3
				return c
			},
			ectx:       func() EvaluationContext { return baseCtx },
			wantReason: ReasonExhausted,
		},
		{
			name: "already used",
			coupon: func() *Coupon {
				return activeCoupon()
			},
			ectx: func() EvaluationContext {
				e := baseCtx
				e.PriorUsageExists = true
				return e
			},
			wantReason: ReasonAlreadyUsed,
		},
		{
			name: "below minimum",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.MinOrderValue = &minValue
				return c
			},
			ectx: func() EvaluationContext {
				e := baseCtx
				e.OrderTotal = 4999
				return e
			},
			wantReason: ReasonBelowMinimum,
		},
		{
			name: "minimum met exactly",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.MinOrderValue = &minValue
				return c
			},
			ectx: func() EvaluationContext {
				e := baseCtx
				e.OrderTotal = 5000
				return e
			},
		},
		{
			name: "scope mismatch",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.Scope = ScopeProducts
				c.ProductIDs = []string{"p9"}
				return c
			},
			ectx:       func() EvaluationContext { return baseCtx },
			wantReason: ReasonScopeMismatch,
		},
		{
			name: "scope match on one product",
			coupon: func() *Coupon {
				c := activeCoupon()
				c.Scope = ScopeProducts
				c.ProductIDs = []string{"p2", "p9"}
				return c
			},
			ectx: func() EvaluationContext { return baseCtx },
		},
		{
			name:   "accepted",
			coupon: activeCoupon,
			ectx:   func() EvaluationContext { return baseCtx },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Evaluate(tt.coupon(), tt.ectx())
			if tt.wantReason == "" {
				require.NoError(t, err)
				return
			}
			var rej *RejectionError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.wantReason, rej.Reason)
		})
	}
}

// The check order is part of the contract: the first failing rule wins even
// when several apply.
func TestEvaluate_FirstFailureWins(t *testing.T) {
	past := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := past.Add(24 * time.Hour)
	maxUses := 1

	c := activeCoupon()
	c.ExpiresAt = &past
	c.MaxUses = &maxUses
	c.UsedCount = 5

	err := Evaluate(c, EvaluationContext{
		UserID:           "u1",
		OrderTotal:       1,
		Now:              now,
		PriorUsageExists: true,
	})

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonExpired, rej.Reason)
}

func TestDiscount(t *testing.T) {
	percent := activeCoupon()
	assert.Equal(t, money.Amount(1000), Discount(percent, 10000))
	assert.Equal(t, money.Amount(99), Discount(percent, 999))

	fixed := &Coupon{Type: TypeFixed, Value: 1500}
	assert.Equal(t, money.Amount(1500), Discount(fixed, 10000))
	// FIXED discount is not capped here; the final total clamps instead.
	assert.Equal(t, money.Amount(1500), Discount(fixed, 100))

	assert.Equal(t, money.Amount(0), Discount(nil, 10000))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("  save10 "))
	assert.Equal(t, "SAVE10", NormalizeCode("SAVE10"))
}
