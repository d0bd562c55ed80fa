package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/mercatto/checkout/internal/domain/identity"
)

// ErrForbidden is returned when a non-admin actor attempts a coupon
// management operation.
var ErrForbidden = errors.New("operation requires admin role")

// AdminStore provides the persistence operations coupon management needs.
type AdminStore interface {
	Insert(ctx context.Context, c *Coupon) error
	// Update rewrites the coupon row and replaces its product scope rows.
	Update(ctx context.Context, c *Coupon) error
	ByID(ctx context.Context, id string) (*Coupon, error)
	SetActive(ctx context.Context, id string, active bool) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// CreateInput holds the operator-supplied fields for a new coupon.
type CreateInput struct {
	Code          string
	Type          string
	Scope         string
	Value         int64
	MinOrderValue *int64
	MaxUses       *int
	ExpiresAt     *time.Time
	ProductIDs    []string
}

// ValidationError reports a malformed coupon management request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Admin implements operator-facing coupon management.
type Admin struct {
	store AdminStore
	now   func() time.Time
}

// NewAdmin creates an Admin backed by the given store.
func NewAdmin(store AdminStore) *Admin {
	return &Admin{store: store, now: time.Now}
}

// Create validates and persists a new coupon. Codes are stored upper-cased
// and must be unique; a PRODUCTS-scoped coupon requires at least one product.
func (a *Admin) Create(ctx context.Context, actor identity.Actor, in CreateInput) (*Coupon, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	code := NormalizeCode(in.Code)
	if code == "" {
		return nil, &ValidationError{Msg: "coupon code is required"}
	}

	typ, err := ParseType(in.Type)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	scope := ScopeAll
	if in.Scope != "" {
		if scope, err = ParseScope(in.Scope); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
	}

	if in.Value <= 0 {
		return nil, &ValidationError{Msg: "coupon value must be positive"}
	}
	if typ == TypePercent && in.Value > 100 {
		return nil, &ValidationError{Msg: "percent coupon value must not exceed 100"}
	}
	if in.MinOrderValue != nil && *in.MinOrderValue <= 0 {
		return nil, &ValidationError{Msg: "minimum order value must be positive"}
	}
	if in.MaxUses != nil && *in.MaxUses <= 0 {
		return nil, &ValidationError{Msg: "max uses must be positive"}
	}
	if scope == ScopeProducts && len(in.ProductIDs) == 0 {
		return nil, &ValidationError{Msg: "a PRODUCTS-scoped coupon requires at least one product"}
	}
	if scope == ScopeAll && len(in.ProductIDs) > 0 {
		return nil, &ValidationError{Msg: "product list is only valid for PRODUCTS scope"}
	}

	c := &Coupon{
		ID:            uuid.New().String(),
		Code:          code,
		Type:          typ,
		Scope:         scope,
		Value:         in.Value,
		MinOrderValue: in.MinOrderValue,
		MaxUses:       in.MaxUses,
		ExpiresAt:     in.ExpiresAt,
		IsActive:      true,
		ProductIDs:    in.ProductIDs,
		CreatedAt:     a.now(),
	}

	if err := a.store.Insert(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, &ValidationError{Msg: "coupon code already exists"}
		}
		return nil, errors.Wrap(err, "insert coupon")
	}
	return c, nil
}

// UpdateInput holds the operator-supplied changes for an existing coupon.
// Nil fields are left untouched; ProductIDs replaces the product set when
// present.
type UpdateInput struct {
	Code          *string
	Type          *string
	Scope         *string
	Value         *int64
	MinOrderValue *int64
	MaxUses       *int
	ExpiresAt     *time.Time
	ProductIDs    []string
}

// Update rewrites coupon fields. The resulting row must satisfy the same
// invariants as Create: a PRODUCTS-scoped coupon keeps at least one product,
// an ALL-scoped coupon carries none.
func (a *Admin) Update(ctx context.Context, actor identity.Actor, id string, in UpdateInput) (*Coupon, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	c, err := a.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.DeletedAt != nil {
		return nil, ErrNotFound
	}

	if in.Code != nil {
		code := NormalizeCode(*in.Code)
		if code == "" {
			return nil, &ValidationError{Msg: "coupon code is required"}
		}
		c.Code = code
	}
	if in.Type != nil {
		typ, err := ParseType(*in.Type)
		if err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		c.Type = typ
	}
	if in.Scope != nil {
		scope, err := ParseScope(*in.Scope)
		if err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		c.Scope = scope
	}
	if in.Value != nil {
		if *in.Value <= 0 {
			return nil, &ValidationError{Msg: "coupon value must be positive"}
		}
		c.Value = *in.Value
	}
	if c.Type == TypePercent && c.Value > 100 {
		return nil, &ValidationError{Msg: "percent coupon value must not exceed 100"}
	}
	if in.MinOrderValue != nil {
		if *in.MinOrderValue <= 0 {
			return nil, &ValidationError{Msg: "minimum order value must be positive"}
		}
		c.MinOrderValue = in.MinOrderValue
	}
	if in.MaxUses != nil {
		if *in.MaxUses <= 0 {
			return nil, &ValidationError{Msg: "max uses must be positive"}
		}
		c.MaxUses = in.MaxUses
	}
	if in.ExpiresAt != nil {
		c.ExpiresAt = in.ExpiresAt
	}
	if in.ProductIDs != nil {
		c.ProductIDs = in.ProductIDs
	}

	if c.Scope == ScopeAll && len(in.ProductIDs) > 0 {
		return nil, &ValidationError{Msg: "product list is only valid for PRODUCTS scope"}
	}
	if c.Scope == ScopeAll {
		// A scope switch to ALL drops any previously scoped products.
		c.ProductIDs = nil
	}
	if c.Scope == ScopeProducts && len(c.ProductIDs) == 0 {
		return nil, &ValidationError{Msg: "a PRODUCTS-scoped coupon requires at least one product"}
	}

	if err := a.store.Update(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, &ValidationError{Msg: "coupon code already exists"}
		}
		return nil, errors.Wrap(err, "update coupon")
	}
	return c, nil
}

// ToggleActive flips the coupon's active flag and returns the new state.
func (a *Admin) ToggleActive(ctx context.Context, actor identity.Actor, id string) (bool, error) {
	if !actor.IsAdmin() {
		return false, ErrForbidden
	}

	c, err := a.store.ByID(ctx, id)
	if err != nil {
		return false, err
	}
	next := !c.IsActive
	if err := a.store.SetActive(ctx, id, next); err != nil {
		return false, errors.Wrap(err, "set coupon active")
	}
	return next, nil
}

// Delete soft-deletes a coupon by setting isActive=false and deletedAt.
// Rows are never hard-removed while usage history exists.
func (a *Admin) Delete(ctx context.Context, actor identity.Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	if _, err := a.store.ByID(ctx, id); err != nil {
		return err
	}
	if err := a.store.SoftDelete(ctx, id, a.now()); err != nil {
		return errors.Wrap(err, "soft delete coupon")
	}
	return nil
}
