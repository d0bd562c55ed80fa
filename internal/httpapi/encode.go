package httpapi

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/domain/order"
)

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("number", func(e *jx.Encoder) { e.Int64(o.Number) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		if o.AddressID != nil {
			e.Field("addressId", func(e *jx.Encoder) { e.Str(*o.AddressID) })
		}
		if o.CouponID != nil {
			e.Field("couponId", func(e *jx.Encoder) { e.Str(*o.CouponID) })
		}
		e.Field("itemsTotal", func(e *jx.Encoder) { e.Int64(int64(o.ItemsTotal)) })
		e.Field("deliveryFee", func(e *jx.Encoder) { e.Int64(int64(o.DeliveryFee)) })
		e.Field("discount", func(e *jx.Encoder) { e.Int64(int64(o.Discount)) })
		e.Field("total", func(e *jx.Encoder) { e.Int64(int64(o.Total)) })
		e.Field("totalDisplay", func(e *jx.Encoder) { e.Str(o.Total.Display()) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeItem(e, it)
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
	})
}

func encodeItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("unitPrice", func(e *jx.Encoder) { e.Int64(int64(it.UnitPrice)) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Int64(int64(it.Subtotal)) })
	})
}

func encodeQuote(e *jx.Encoder, q *order.CouponQuote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("code", func(e *jx.Encoder) { e.Str(q.Code) })
		e.Field("discount", func(e *jx.Encoder) { e.Int64(int64(q.Discount)) })
		e.Field("finalTotal", func(e *jx.Encoder) { e.Int64(int64(q.FinalTotal)) })
		e.Field("finalTotalDisplay", func(e *jx.Encoder) { e.Str(q.FinalTotal.Display()) })
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("scope", func(e *jx.Encoder) { e.Str(string(c.Scope)) })
		e.Field("value", func(e *jx.Encoder) { e.Int64(c.Value) })
		if c.MinOrderValue != nil {
			e.Field("minOrderValue", func(e *jx.Encoder) { e.Int64(*c.MinOrderValue) })
		}
		if c.MaxUses != nil {
			e.Field("maxUses", func(e *jx.Encoder) { e.Int(*c.MaxUses) })
		}
		e.Field("usedCount", func(e *jx.Encoder) { e.Int(c.UsedCount) })
		if c.ExpiresAt != nil {
			e.Field("expiresAt", func(e *jx.Encoder) { e.Str(c.ExpiresAt.Format(time.RFC3339)) })
		}
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(c.IsActive) })
		if len(c.ProductIDs) > 0 {
			e.Field("productIds", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, id := range c.ProductIDs {
						e.Str(id)
					}
				})
			})
		}
	})
}
