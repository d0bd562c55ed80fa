package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/mercatto/checkout/internal/apperror"
	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/money"
)

type validateCouponRequest struct {
	Code       string   `json:"code"`
	OrderTotal int64    `json:"orderTotal"`
	ProductIDs []string `json:"productIds"`
}

// ValidateCoupon previews a coupon against a prospective total without
// consuming usage.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperror.Validation("malformed request body", err))
		return
	}
	if req.Code == "" {
		respondError(w, r, apperror.Validation("code is required", nil))
		return
	}
	if req.OrderTotal < 0 {
		respondError(w, r, apperror.Validation("orderTotal must not be negative", nil))
		return
	}

	quote, err := h.checkout.ValidateCoupon(r.Context(), a.UserID, req.Code, money.Amount(req.OrderTotal), req.ProductIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	encodeQuote(e, quote)
	writeJSON(w, http.StatusOK, e)
}

type createCouponRequest struct {
	Code          string     `json:"code"`
	Type          string     `json:"type"`
	Scope         string     `json:"scope"`
	Value         int64      `json:"value"`
	MinOrderValue *int64     `json:"minOrderValue"`
	MaxUses       *int       `json:"maxUses"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	ProductIDs    []string   `json:"productIds"`
}

// CreateCoupon creates a coupon. Admin only.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperror.Validation("malformed request body", err))
		return
	}

	c, err := h.coupons.Create(r.Context(), a, coupon.CreateInput{
		Code:          req.Code,
		Type:          req.Type,
		Scope:         req.Scope,
		Value:         req.Value,
		MinOrderValue: req.MinOrderValue,
		MaxUses:       req.MaxUses,
		ExpiresAt:     req.ExpiresAt,
		ProductIDs:    req.ProductIDs,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	encodeCoupon(e, c)
	writeJSON(w, http.StatusCreated, e)
}

type updateCouponRequest struct {
	Code          *string    `json:"code"`
	Type          *string    `json:"type"`
	Scope         *string    `json:"scope"`
	Value         *int64     `json:"value"`
	MinOrderValue *int64     `json:"minOrderValue"`
	MaxUses       *int       `json:"maxUses"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	ProductIDs    []string   `json:"productIds"`
}

// UpdateCoupon rewrites coupon fields. Absent fields are left untouched.
// Admin only.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	var req updateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperror.Validation("malformed request body", err))
		return
	}

	c, err := h.coupons.Update(r.Context(), a, chi.URLParam(r, "couponID"), coupon.UpdateInput{
		Code:          req.Code,
		Type:          req.Type,
		Scope:         req.Scope,
		Value:         req.Value,
		MinOrderValue: req.MinOrderValue,
		MaxUses:       req.MaxUses,
		ExpiresAt:     req.ExpiresAt,
		ProductIDs:    req.ProductIDs,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	encodeCoupon(e, c)
	writeJSON(w, http.StatusOK, e)
}

// ToggleCoupon flips a coupon's active flag. Admin only.
func (h *Handler) ToggleCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	active, err := h.coupons.ToggleActive(r.Context(), a, chi.URLParam(r, "couponID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(active) })
	})
	writeJSON(w, http.StatusOK, e)
}

// DeleteCoupon soft-deletes a coupon. Admin only.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	if err := h.coupons.Delete(r.Context(), a, chi.URLParam(r, "couponID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
