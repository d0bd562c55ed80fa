package order

import (
	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/money"
)

// Totals holds the monetary breakdown of an order.
type Totals struct {
	ItemsTotal  money.Amount
	Discount    money.Amount
	DeliveryFee money.Amount
	Total       money.Amount
}

// Price computes order totals from line-item snapshots and an optional
// accepted coupon. Unit prices are caller-supplied snapshots, never re-read
// from the catalog. Deterministic, no I/O.
//
// A FIXED discount is reported uncapped; only the final total is clamped at
// zero.
func Price(items []Item, c *coupon.Coupon, deliveryFee money.Amount) Totals {
	var itemsTotal money.Amount
	for _, it := range items {
		itemsTotal += money.Amount(int64(it.Quantity)) * it.UnitPrice
	}

	discount := coupon.Discount(c, itemsTotal)
	total := money.ClampNonNegative(itemsTotal + deliveryFee - discount)

	return Totals{
		ItemsTotal:  itemsTotal,
		Discount:    discount,
		DeliveryFee: deliveryFee,
		Total:       total,
	}
}
