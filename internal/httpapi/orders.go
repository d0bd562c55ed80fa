package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/mercatto/checkout/internal/apperror"
	"github.com/mercatto/checkout/internal/domain/order"
	"github.com/mercatto/checkout/internal/money"
)

type checkoutRequest struct {
	AddressID string `json:"addressId"`
}

// Checkout confirms the caller's cart as an order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperror.Validation("malformed request body", err))
		return
	}
	if req.AddressID == "" {
		respondError(w, r, apperror.Validation("addressId is required", nil))
		return
	}

	o, err := h.checkout.Checkout(r.Context(), a.UserID, req.AddressID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	encodeOrder(e, o)
	writeJSON(w, http.StatusOK, e)
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items"`
	PaymentMethod string             `json:"paymentMethod"`
	AddressID     string             `json:"addressId"`
	CouponCode    string             `json:"couponCode"`
	Status        string             `json:"status"`
	DeliveryFee   *int64             `json:"deliveryFee"`
}

func toItemInputs(reqs []orderItemRequest) []order.ItemInput {
	if reqs == nil {
		return nil
	}
	items := make([]order.ItemInput, len(reqs))
	for i, it := range reqs {
		items[i] = order.ItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: money.Amount(it.UnitPrice),
		}
	}
	return items
}

// CreateOrder creates an order directly, bypassing the cart flow.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperror.Validation("malformed request body", err))
		return
	}

	pm, err := order.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(w, r, apperror.Validation(err.Error(), err))
		return
	}
	var status order.Status
	if req.Status != "" {
		if status, err = order.ParseStatus(req.Status); err != nil {
			respondError(w, r, apperror.Validation(err.Error(), err))
			return
		}
	}

	in := order.CreateOrderInput{
		Items:         toItemInputs(req.Items),
		PaymentMethod: pm,
		AddressID:     req.AddressID,
		CouponCode:    req.CouponCode,
		Status:        status,
	}
	if req.DeliveryFee != nil {
		fee := money.Amount(*req.DeliveryFee)
		in.DeliveryFee = &fee
	}

	o, err := h.checkout.CreateOrder(r.Context(), a, in)
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	encodeOrder(e, o)
	writeJSON(w, http.StatusCreated, e)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order through the status state machine.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperror.Validation("malformed request body", err))
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		respondError(w, r, apperror.Validation(err.Error(), err))
		return
	}

	if err := h.checkout.UpdateOrderStatus(r.Context(), a, chi.URLParam(r, "orderID"), status); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateOrderRequest struct {
	AddressID     *string            `json:"addressId"`
	PaymentMethod *string            `json:"paymentMethod"`
	Items         []orderItemRequest `json:"items"`
	Status        *string            `json:"status"`
}

// UpdateOrder rewrites order fields. Absent fields are left untouched.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperror.Validation("malformed request body", err))
		return
	}

	p := order.Patch{
		AddressID: req.AddressID,
		Items:     toItemInputs(req.Items),
	}
	if req.PaymentMethod != nil {
		pm, err := order.ParsePaymentMethod(*req.PaymentMethod)
		if err != nil {
			respondError(w, r, apperror.Validation(err.Error(), err))
			return
		}
		p.PaymentMethod = &pm
	}
	if req.Status != nil {
		status, err := order.ParseStatus(*req.Status)
		if err != nil {
			respondError(w, r, apperror.Validation(err.Error(), err))
			return
		}
		p.Status = &status
	}

	if err := h.checkout.UpdateOrder(r.Context(), a, chi.URLParam(r, "orderID"), p); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteOrder removes a PENDING or CANCELLED order.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		respondError(w, r, apperror.Unauthorized("authentication required", nil))
		return
	}

	if err := h.checkout.DeleteOrder(r.Context(), a, chi.URLParam(r, "orderID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
