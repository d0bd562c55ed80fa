package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercatto/checkout/internal/apperror"
	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/domain/order"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   apperror.Kind
		wantStatus int
		wantCode   string
	}{
		{
			name:     "coupon rejection",
			err:      coupon.Reject(&coupon.Coupon{Code: "OLD"}, coupon.ReasonExpired),
			wantKind: apperror.KindBusinessRule, wantStatus: http.StatusUnprocessableEntity, wantCode: "EXPIRED",
		},
		{
			name:     "invalid transition",
			err:      &order.InvalidTransitionError{From: order.StatusDelivered, To: order.StatusPending},
			wantKind: apperror.KindBusinessRule, wantStatus: http.StatusUnprocessableEntity, wantCode: "INVALID_TRANSITION",
		},
		{
			name:     "empty cart",
			err:      order.ErrEmptyCart,
			wantKind: apperror.KindBusinessRule, wantStatus: http.StatusUnprocessableEntity, wantCode: "EMPTY_CART",
		},
		{
			name:     "empty items",
			err:      order.ErrEmptyItems,
			wantKind: apperror.KindValidation, wantStatus: http.StatusBadRequest,
		},
		{
			name:     "order locked",
			err:      order.ErrOrderLocked,
			wantKind: apperror.KindConflict, wantStatus: http.StatusConflict, wantCode: "ORDER_LOCKED",
		},
		{
			name:     "wrapped sentinel keeps its kind",
			err:      errors.Wrap(order.ErrOrderLocked, "replace items"),
			wantKind: apperror.KindConflict, wantStatus: http.StatusConflict, wantCode: "ORDER_LOCKED",
		},
		{
			name:     "forbidden",
			err:      order.ErrForbidden,
			wantKind: apperror.KindForbidden, wantStatus: http.StatusForbidden,
		},
		{
			name:     "address not owned",
			err:      order.ErrAddressNotOwned,
			wantKind: apperror.KindForbidden, wantStatus: http.StatusForbidden,
		},
		{
			name:     "order missing",
			err:      order.ErrNotFound,
			wantKind: apperror.KindNotFound, wantStatus: http.StatusNotFound,
		},
		{
			name:     "coupon missing",
			err:      coupon.ErrNotFound,
			wantKind: apperror.KindNotFound, wantStatus: http.StatusNotFound,
		},
		{
			name:     "kinded error passes through",
			err:      apperror.Unauthorized("authentication required", nil),
			wantKind: apperror.KindUnauthorized, wantStatus: http.StatusUnauthorized,
		},
		{
			name:     "unknown error becomes internal",
			err:      errors.New("pool exhausted"),
			wantKind: apperror.KindInternal, wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := classify(tt.err)
			assert.Equal(t, tt.wantKind, ae.Kind)
			assert.Equal(t, tt.wantCode, ae.Code)
			assert.Equal(t, tt.wantStatus, statusOf(ae.Kind))
		})
	}
}

func TestRespondError_InternalIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(rec, req, errors.New("pool exhausted"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeBody(t, rec)["message"])
	assert.NotContains(t, rec.Body.String(), "pool exhausted")
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	h := NewHandler(&stubCheckout{}, &stubCouponAdmin{}).Routes()

	rec := doRequest(t, h, http.MethodPost, "/orders/", `{"items":`, asCustomer("u1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "malformed request body", decodeBody(t, rec)["message"])
}
