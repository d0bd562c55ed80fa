// Package httpapi exposes the checkout over HTTP. Identity arrives in
// gateway-set headers; all money values on the wire are integer minor units.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/domain/identity"
	"github.com/mercatto/checkout/internal/domain/order"
	"github.com/mercatto/checkout/internal/money"
)

// CheckoutService is the order service surface the handlers depend on.
type CheckoutService interface {
	ValidateCoupon(ctx context.Context, userID, code string, orderTotal money.Amount, productIDs []string) (*order.CouponQuote, error)
	Checkout(ctx context.Context, customerID, addressID string) (*order.Order, error)
	CreateOrder(ctx context.Context, actor identity.Actor, in order.CreateOrderInput) (*order.Order, error)
	UpdateOrderStatus(ctx context.Context, actor identity.Actor, orderID string, next order.Status) error
	UpdateOrder(ctx context.Context, actor identity.Actor, orderID string, p order.Patch) error
	DeleteOrder(ctx context.Context, actor identity.Actor, orderID string) error
}

// CouponAdmin is the coupon management surface the handlers depend on.
type CouponAdmin interface {
	Create(ctx context.Context, actor identity.Actor, in coupon.CreateInput) (*coupon.Coupon, error)
	Update(ctx context.Context, actor identity.Actor, id string, in coupon.UpdateInput) (*coupon.Coupon, error)
	ToggleActive(ctx context.Context, actor identity.Actor, id string) (bool, error)
	Delete(ctx context.Context, actor identity.Actor, id string) error
}

// Handler holds the HTTP handlers for the checkout API.
type Handler struct {
	checkout CheckoutService
	coupons  CouponAdmin
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(checkout CheckoutService, coupons CouponAdmin) *Handler {
	return &Handler{checkout: checkout, coupons: coupons}
}

// Routes mounts the API routes on a chi router. Every route requires an
// authenticated actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(WithActor)

	r.Post("/coupons/validate", h.ValidateCoupon)
	r.Post("/cart/checkout", h.Checkout)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Patch("/{orderID}/status", h.UpdateOrderStatus)
		r.Put("/{orderID}", h.UpdateOrder)
		r.Delete("/{orderID}", h.DeleteOrder)
	})

	r.Route("/coupons", func(r chi.Router) {
		r.Post("/", h.CreateCoupon)
		r.Put("/{couponID}", h.UpdateCoupon)
		r.Patch("/{couponID}/toggle", h.ToggleCoupon)
		r.Delete("/{couponID}", h.DeleteCoupon)
	})

	return r
}

// actor pulls the authenticated actor installed by WithActor. The middleware
// guarantees presence on every mounted route.
func actor(r *http.Request) (identity.Actor, bool) {
	return ActorFromContext(r.Context())
}
