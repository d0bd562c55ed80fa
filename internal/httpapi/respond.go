package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/mercatto/checkout/internal/apperror"
	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/domain/order"
)

// writeJSON writes an encoded body with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard error body. reason is the optional stable
// machine-readable code.
func writeError(w http.ResponseWriter, status int, reason, message string) {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if reason != "" {
			e.Field("reason", func(e *jx.Encoder) { e.Str(reason) })
		}
	})
	writeJSON(w, status, e)
}

// classify translates domain errors into the stable kinds carried by
// *apperror.Error. Errors that already carry a kind pass through; anything
// unrecognized becomes KindInternal.
func classify(err error) *apperror.Error {
	var (
		appErr     *apperror.Error
		rejection  *coupon.RejectionError
		transition *order.InvalidTransitionError
		quantity   *order.InvalidQuantityError
		notFound   *order.ProductNotFoundError
		orderVal   *order.ValidationError
		couponVal  *coupon.ValidationError
	)

	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &rejection):
		return apperror.BusinessRule(string(rejection.Reason), rejection.Error(), err)
	case errors.As(err, &transition):
		return apperror.BusinessRule("INVALID_TRANSITION", transition.Error(), err)
	case errors.As(err, &quantity):
		return apperror.BusinessRule("", quantity.Error(), err)
	case errors.As(err, &notFound):
		return apperror.BusinessRule("", notFound.Error(), err)
	case errors.As(err, &orderVal):
		return apperror.Validation(orderVal.Error(), err)
	case errors.As(err, &couponVal):
		return apperror.Validation(couponVal.Error(), err)
	case errors.Is(err, order.ErrEmptyItems):
		return apperror.Validation(order.ErrEmptyItems.Error(), err)
	case errors.Is(err, order.ErrEmptyCart):
		return apperror.BusinessRule("EMPTY_CART", order.ErrEmptyCart.Error(), err)
	case errors.Is(err, order.ErrOrderLocked):
		return apperror.Conflict("ORDER_LOCKED", order.ErrOrderLocked.Error(), err)
	case errors.Is(err, order.ErrForbidden), errors.Is(err, coupon.ErrForbidden),
		errors.Is(err, order.ErrAddressNotOwned):
		return apperror.Forbidden("operation not permitted", err)
	case errors.Is(err, order.ErrNotFound):
		return apperror.NotFound(order.ErrNotFound.Error(), err)
	case errors.Is(err, order.ErrAddressNotFound):
		return apperror.NotFound(order.ErrAddressNotFound.Error(), err)
	case errors.Is(err, coupon.ErrNotFound):
		return apperror.NotFound(coupon.ErrNotFound.Error(), err)
	default:
		return apperror.Internal(err)
	}
}

// respondError maps an error onto an HTTP status and the standard error body.
// Internal errors become opaque 500s after logging.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	if ae.Kind == apperror.KindInternal {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeError(w, statusOf(ae.Kind), ae.Code, ae.Error())
}

func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindBusinessRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
