package order

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/money"
)

func items(pairs ...[2]int64) []Item {
	out := make([]Item, len(pairs))
	for i, s := range pairs {
		out[i] = Item{
			ProductID: "p",
			Quantity:  int(s[0]),
			UnitPrice: money.Amount(s[1]),
		}
	}
	return out
}

func TestPrice_NoCoupon(t *testing.T) {
	got := Price(items([2]int64{2, 1000}, [2]int64{3, 2500}), nil, 500)

	assert.Equal(t, money.Amount(9500), got.ItemsTotal)
	assert.Equal(t, money.Amount(0), got.Discount)
	assert.Equal(t, money.Amount(500), got.DeliveryFee)
	assert.Equal(t, money.Amount(10000), got.Total)
}

func TestPrice_EmptyItems(t *testing.T) {
	got := Price(nil, nil, 500)
	assert.Equal(t, money.Amount(0), got.ItemsTotal)
	assert.Equal(t, money.Amount(500), got.Total)
}

// SAVE10 scenario: 10% off an itemsTotal of 10000 with a 500 fee.
func TestPrice_PercentCoupon(t *testing.T) {
	c := &coupon.Coupon{Code: "SAVE10", Type: coupon.TypePercent, Value: 10, IsActive: true}

	got := Price(items([2]int64{1, 10000}), c, 500)

	assert.Equal(t, money.Amount(10000), got.ItemsTotal)
	assert.Equal(t, money.Amount(1000), got.Discount)
	assert.Equal(t, money.Amount(9500), got.Total)
}

func TestPrice_PercentDiscountFloors(t *testing.T) {
	c := &coupon.Coupon{Type: coupon.TypePercent, Value: 33, IsActive: true}

	got := Price(items([2]int64{1, 101}), c, 0)

	// floor(101 * 33 / 100) = 33
	assert.Equal(t, money.Amount(33), got.Discount)
	assert.Equal(t, money.Amount(68), got.Total)
}

func TestPrice_FixedCoupon(t *testing.T) {
	c := &coupon.Coupon{Type: coupon.TypeFixed, Value: 1500, IsActive: true}

	got := Price(items([2]int64{1, 10000}), c, 500)

	assert.Equal(t, money.Amount(1500), got.Discount)
	assert.Equal(t, money.Amount(9000), got.Total)
}

// A FIXED discount larger than the cart is reported uncapped; the total is
// clamped at zero instead.
func TestPrice_HugeFixedDiscountClampsTotal(t *testing.T) {
	c := &coupon.Coupon{Type: coupon.TypeFixed, Value: 99900, IsActive: true}

	got := Price(items([2]int64{1, 1000}), c, 500)

	assert.Equal(t, money.Amount(99900), got.Discount)
	assert.Equal(t, money.Amount(0), got.Total)
}
