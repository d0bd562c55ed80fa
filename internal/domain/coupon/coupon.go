// Package coupon holds the coupon snapshot model and the pure eligibility
// predicate applied before any redemption commits.
package coupon

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercent discounts a percentage of the items total, floored to whole
	// minor units.
	TypePercent Type = "PERCENT"
	// TypeFixed discounts a fixed amount of minor units. The discount itself is
	// not capped; the final total is clamped at zero instead.
	TypeFixed Type = "FIXED"
)

// ParseType validates a raw discount type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypePercent, TypeFixed:
		return Type(s), nil
	default:
		return "", errors.Errorf("unknown coupon type %q", s)
	}
}

// Scope enumerates what a coupon applies to.
type Scope string

const (
	// ScopeAll applies the coupon to the whole order.
	ScopeAll Scope = "ALL"
	// ScopeProducts restricts the coupon to a designated product subset.
	ScopeProducts Scope = "PRODUCTS"
)

// ParseScope validates a raw scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAll, ScopeProducts:
		return Scope(s), nil
	default:
		return "", errors.Errorf("unknown coupon scope %q", s)
	}
}

// Sentinel errors shared by coupon stores.
var (
	// ErrNotFound is returned when no coupon matches the given code or id.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned when creating a coupon with a code that
	// already exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// Coupon is a point-in-time snapshot of a coupon row. Eligibility decisions
// must be made from a snapshot read inside the transaction that will commit
// the redemption.
type Coupon struct {
	ID   string
	Code string
	Type Type
	// Scope decides whether ProductIDs constrains redemption.
	Scope Scope
	// Value is minor units for FIXED coupons and percent points for PERCENT.
	Value         int64
	MinOrderValue *int64
	MaxUses       *int
	UsedCount     int
	ExpiresAt     *time.Time
	IsActive      bool
	DeletedAt     *time.Time
	// ProductIDs is populated when Scope is ScopeProducts.
	ProductIDs []string
	CreatedAt  time.Time
}

// NormalizeCode upper-cases and trims a coupon code. Codes are stored and
// compared upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Reason identifies why a coupon was rejected. The values are stable and
// surfaced verbatim to callers.
type Reason string

const (
	ReasonInvalid       Reason = "INVALID_COUPON"
	ReasonExpired       Reason = "EXPIRED"
	ReasonExhausted     Reason = "EXHAUSTED"
	ReasonAlreadyUsed   Reason = "ALREADY_USED"
	ReasonBelowMinimum  Reason = "BELOW_MINIMUM"
	ReasonScopeMismatch Reason = "SCOPE_MISMATCH"
)

var reasonMessages = map[Reason]string{
	ReasonInvalid:       "coupon is invalid",
	ReasonExpired:       "coupon has expired",
	ReasonExhausted:     "coupon usage limit reached",
	ReasonAlreadyUsed:   "coupon already used by this user",
	ReasonBelowMinimum:  "order total below coupon minimum",
	ReasonScopeMismatch: "coupon does not apply to the selected products",
}

// RejectionError reports the first eligibility rule a coupon failed.
type RejectionError struct {
	Code   string
	Reason Reason
}

func (e *RejectionError) Error() string {
	msg, ok := reasonMessages[e.Reason]
	if !ok {
		msg = string(e.Reason)
	}
	if e.Code == "" {
		return msg
	}
	return fmt.Sprintf("coupon %s: %s", e.Code, msg)
}

// Reject builds a RejectionError for the given coupon snapshot. The snapshot
// may be nil for unknown codes.
func Reject(c *Coupon, reason Reason) *RejectionError {
	code := ""
	if c != nil {
		code = c.Code
	}
	return &RejectionError{Code: code, Reason: reason}
}
