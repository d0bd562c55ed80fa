// Package order implements the checkout core: order model, status state
// machine, pricing, the mutation guard, and the checkout service that ties
// them to a transactional store.
package order

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/mercatto/checkout/internal/money"
)

// PaymentMethod enumerates the accepted payment methods.
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentPix        PaymentMethod = "PIX"
)

// ParsePaymentMethod validates a raw payment method string.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentPix:
		return PaymentMethod(s), nil
	default:
		return "", errors.Errorf("unknown payment method %q", s)
	}
}

// Order is a customer order. A PENDING order with items is the customer's
// cart; CONFIRMED and later orders are immutable except through the status
// state machine.
type Order struct {
	ID     string
	Number int64
	// CustomerID owns the order; only the owner or an admin may touch it.
	CustomerID    string
	Status        Status
	PaymentMethod PaymentMethod
	AddressID     *string
	CouponID      *string
	ItemsTotal    money.Amount
	DeliveryFee   money.Amount
	Discount      money.Amount
	Total         money.Amount
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is one order line. UnitPrice is a snapshot taken at order time and is
// never re-read from the catalog.
type Item struct {
	ID        string
	ProductID string
	Quantity  int
	UnitPrice money.Amount
	Subtotal  money.Amount
}

// Sentinel errors for order operations.
var (
	// ErrNotFound is returned when the referenced order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checkout finds no pending order with items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrEmptyItems is returned when an order is created without line items.
	ErrEmptyItems = errors.New("items required")
	// ErrAddressNotFound is returned when the referenced address does not exist.
	ErrAddressNotFound = errors.New("address not found")
	// ErrAddressNotOwned is returned when the address belongs to a different
	// customer than the one placing the order.
	ErrAddressNotOwned = errors.New("address does not belong to customer")
	// ErrOrderLocked is returned when mutating items, address, or payment
	// method of an order that is no longer PENDING.
	ErrOrderLocked = errors.New("order is locked")
	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("operation not permitted")
	// ErrUsageConflict signals a concurrent duplicate coupon redemption
	// detected by the storage uniqueness constraint. The service retries once
	// on this error before surfacing a rejection.
	ErrUsageConflict = errors.New("concurrent coupon usage conflict")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a requested product does not exist in the
// catalog. Only raised when the caller asks for a catalog price snapshot.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ProductIDs returns the distinct product ids across the order's items.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
