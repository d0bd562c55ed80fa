package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/domain/identity"
	"github.com/mercatto/checkout/internal/money"
)

// Tx is the unit of work the checkout operates on. Every method runs against
// one database transaction; implementations must guarantee that either all
// writes issued through a Tx commit or none do.
type Tx interface {
	// AddressOwner returns the customer owning the address, or
	// ErrAddressNotFound.
	AddressOwner(ctx context.Context, addressID string) (string, error)

	// PendingOrderForUpdate loads the customer's current PENDING order with
	// items, locking the order row. Returns ErrNotFound when there is none.
	PendingOrderForUpdate(ctx context.Context, customerID string) (*Order, error)
	// OrderForUpdate loads an order with items by id, locking the order row.
	// The lock is the serialization point for concurrent status transitions.
	OrderForUpdate(ctx context.Context, orderID string) (*Order, error)
	// InsertOrder persists a new order row and fills in the assigned
	// sequential order number.
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	ReplaceItems(ctx context.Context, orderID string, items []Item) error
	DeleteOrder(ctx context.Context, orderID string) error
	// AppendStatusEvent writes one append-only status history row.
	AppendStatusEvent(ctx context.Context, orderID string, s Status) error

	// CouponByCode looks a coupon up by its normalized code, including
	// soft-deleted and inactive rows; filtering is the evaluator's job.
	CouponByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	CouponByID(ctx context.Context, id string) (*coupon.Coupon, error)
	CouponUsageExists(ctx context.Context, couponID, userID string) (bool, error)
	// InsertCouponUsage records a redemption. Returns ErrUsageConflict when
	// the (couponID, userID) uniqueness constraint rejects the row.
	InsertCouponUsage(ctx context.Context, couponID, userID string) error
	// IncrementCouponUses bumps used_count by one relative to the stored
	// value, returning false when max_uses blocks the increment.
	IncrementCouponUses(ctx context.Context, couponID string) (bool, error)

	// ProductPrices returns catalog prices in minor units for the given ids.
	// Missing ids are simply absent from the result.
	ProductPrices(ctx context.Context, ids []string) (map[string]money.Amount, error)
}

// Store opens units of work. The function either commits after fn returns nil
// or rolls everything back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ValidationError reports malformed input rejected before any persistence.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Service orchestrates checkout, order creation and mutation, and the
// read-only coupon preview.
type Service struct {
	store Store
	// deliveryFee applies to orders created without an explicit fee.
	deliveryFee money.Amount
	now         func() time.Time
}

// NewService creates a Service backed by the given store.
func NewService(store Store, defaultDeliveryFee money.Amount) *Service {
	return &Service{
		store:       store,
		deliveryFee: defaultDeliveryFee,
		now:         time.Now,
	}
}

// CouponQuote is the result of a read-only coupon preview.
type CouponQuote struct {
	Code       string
	Discount   money.Amount
	FinalTotal money.Amount
}

// ValidateCoupon previews a coupon against a prospective order total without
// reserving or consuming usage. Calling it any number of times never changes
// usedCount.
func (s *Service) ValidateCoupon(ctx context.Context, userID, code string, orderTotal money.Amount, productIDs []string) (*CouponQuote, error) {
	var quote *CouponQuote
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.CouponByCode(ctx, coupon.NormalizeCode(code))
		if errors.Is(err, coupon.ErrNotFound) {
			return coupon.Reject(nil, coupon.ReasonInvalid)
		}
		if err != nil {
			return errors.Wrap(err, "lookup coupon")
		}

		used, err := tx.CouponUsageExists(ctx, c.ID, userID)
		if err != nil {
			return errors.Wrap(err, "check coupon usage")
		}

		if err := coupon.Evaluate(c, coupon.EvaluationContext{
			UserID:           userID,
			OrderTotal:       orderTotal,
			ProductIDs:       productIDs,
			Now:              s.now(),
			PriorUsageExists: used,
		}); err != nil {
			return err
		}

		d := coupon.Discount(c, orderTotal)
		quote = &CouponQuote{
			Code:       c.Code,
			Discount:   d,
			FinalTotal: money.ClampNonNegative(orderTotal - d),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// Checkout commits the customer's cart (their current PENDING order with at
// least one item) as a CONFIRMED order, atomically applying the attached
// coupon if any. On a concurrent duplicate-redemption conflict the whole unit
// of work is retried once against fresh state, so the caller sees
// ALREADY_USED or EXHAUSTED rather than a raw conflict.
func (s *Service) Checkout(ctx context.Context, customerID, addressID string) (*Order, error) {
	o, err := s.checkoutOnce(ctx, customerID, addressID)
	if errors.Is(err, ErrUsageConflict) {
		o, err = s.checkoutOnce(ctx, customerID, addressID)
	}
	if errors.Is(err, ErrUsageConflict) {
		// Conflicted twice: the usage row exists by now.
		return nil, coupon.Reject(nil, coupon.ReasonAlreadyUsed)
	}
	return o, err
}

func (s *Service) checkoutOnce(ctx context.Context, customerID, addressID string) (*Order, error) {
	var out *Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		owner, err := tx.AddressOwner(ctx, addressID)
		if err != nil {
			return err
		}
		if owner != customerID {
			return ErrAddressNotOwned
		}

		cart, err := tx.PendingOrderForUpdate(ctx, customerID)
		if errors.Is(err, ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		cart.AddressID = &addressID
		if err := s.confirm(ctx, tx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// confirm re-prices the order from its stored item snapshots, re-validates
// the attached coupon against in-transaction state, and issues the four
// writes that commit together: order update, status event, usage row, and
// the used_count increment.
func (s *Service) confirm(ctx context.Context, tx Tx, o *Order) error {
	cpn, err := s.attachedCoupon(ctx, tx, o)
	if err != nil {
		return err
	}

	t := Price(o.Items, cpn, o.DeliveryFee)
	o.ItemsTotal = t.ItemsTotal
	o.Discount = t.Discount
	o.Total = t.Total
	o.Status = StatusConfirmed

	if err := tx.UpdateOrder(ctx, o); err != nil {
		return errors.Wrap(err, "update order")
	}
	if err := tx.AppendStatusEvent(ctx, o.ID, StatusConfirmed); err != nil {
		return errors.Wrap(err, "append status event")
	}
	if cpn != nil {
		return s.redeem(ctx, tx, cpn, o.CustomerID)
	}
	return nil
}

// attachedCoupon loads and re-validates the order's coupon inside the same
// transaction that will commit the redemption, avoiding check-to-commit
// drift.
func (s *Service) attachedCoupon(ctx context.Context, tx Tx, o *Order) (*coupon.Coupon, error) {
	if o.CouponID == nil {
		return nil, nil
	}

	c, err := tx.CouponByID(ctx, *o.CouponID)
	if errors.Is(err, coupon.ErrNotFound) {
		return nil, coupon.Reject(nil, coupon.ReasonInvalid)
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup coupon")
	}

	used, err := tx.CouponUsageExists(ctx, c.ID, o.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "check coupon usage")
	}

	itemsTotal := Price(o.Items, nil, 0).ItemsTotal
	if err := coupon.Evaluate(c, coupon.EvaluationContext{
		UserID:           o.CustomerID,
		OrderTotal:       itemsTotal,
		ProductIDs:       o.ProductIDs(),
		Now:              s.now(),
		PriorUsageExists: used,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// redeem records one coupon use. The uniqueness constraint behind
// InsertCouponUsage is the authoritative double-redemption guard; the guarded
// increment is the authoritative max-uses guard.
func (s *Service) redeem(ctx context.Context, tx Tx, c *coupon.Coupon, userID string) error {
	if err := tx.InsertCouponUsage(ctx, c.ID, userID); err != nil {
		return err
	}
	ok, err := tx.IncrementCouponUses(ctx, c.ID)
	if err != nil {
		return errors.Wrap(err, "increment coupon uses")
	}
	if !ok {
		return coupon.Reject(c, coupon.ReasonExhausted)
	}
	return nil
}

// ItemInput is a caller-supplied order line. A zero UnitPrice asks for a
// catalog price snapshot at creation time.
type ItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice money.Amount
}

// CreateOrderInput holds the fields for the direct order creation path.
type CreateOrderInput struct {
	Items         []ItemInput
	PaymentMethod PaymentMethod
	AddressID     string
	CouponCode    string
	// Status may be PENDING (default) or CONFIRMED. A CONFIRMED creation
	// redeems the coupon in the same transaction; a PENDING one only attaches
	// it, leaving redemption to checkout.
	Status      Status
	DeliveryFee *money.Amount
}

// CreateOrder creates an order for the actor, applying the same pricing and
// coupon rules as checkout.
func (s *Service) CreateOrder(ctx context.Context, actor identity.Actor, in CreateOrderInput) (*Order, error) {
	o, err := s.createOrderOnce(ctx, actor, in)
	if errors.Is(err, ErrUsageConflict) {
		o, err = s.createOrderOnce(ctx, actor, in)
	}
	if errors.Is(err, ErrUsageConflict) {
		return nil, coupon.Reject(nil, coupon.ReasonAlreadyUsed)
	}
	return o, err
}

func (s *Service) createOrderOnce(ctx context.Context, actor identity.Actor, in CreateOrderInput) (*Order, error) {
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusConfirmed {
		return nil, &ValidationError{Msg: "orders can only be created as PENDING or CONFIRMED"}
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		if it.UnitPrice < 0 {
			return nil, &ValidationError{Msg: "unit price must not be negative"}
		}
	}
	fee := s.deliveryFee
	if in.DeliveryFee != nil {
		if *in.DeliveryFee < 0 {
			return nil, &ValidationError{Msg: "delivery fee must not be negative"}
		}
		fee = *in.DeliveryFee
	}

	var out *Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		owner, err := tx.AddressOwner(ctx, in.AddressID)
		if err != nil {
			return err
		}
		if owner != actor.UserID {
			return ErrAddressNotOwned
		}

		items, err := s.buildItems(ctx, tx, in.Items)
		if err != nil {
			return err
		}

		o := &Order{
			ID:            uuid.New().String(),
			CustomerID:    actor.UserID,
			Status:        status,
			PaymentMethod: in.PaymentMethod,
			AddressID:     &in.AddressID,
			DeliveryFee:   fee,
			Items:         items,
			CreatedAt:     s.now(),
		}

		var cpn *coupon.Coupon
		if in.CouponCode != "" {
			c, err := tx.CouponByCode(ctx, coupon.NormalizeCode(in.CouponCode))
			if errors.Is(err, coupon.ErrNotFound) {
				return coupon.Reject(nil, coupon.ReasonInvalid)
			}
			if err != nil {
				return errors.Wrap(err, "lookup coupon")
			}
			used, err := tx.CouponUsageExists(ctx, c.ID, actor.UserID)
			if err != nil {
				return errors.Wrap(err, "check coupon usage")
			}
			itemsTotal := Price(items, nil, 0).ItemsTotal
			if err := coupon.Evaluate(c, coupon.EvaluationContext{
				UserID:           actor.UserID,
				OrderTotal:       itemsTotal,
				ProductIDs:       o.ProductIDs(),
				Now:              s.now(),
				PriorUsageExists: used,
			}); err != nil {
				return err
			}
			cpn = c
			o.CouponID = &c.ID
		}

		t := Price(items, cpn, fee)
		o.ItemsTotal = t.ItemsTotal
		o.Discount = t.Discount
		o.Total = t.Total

		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		if err := tx.ReplaceItems(ctx, o.ID, items); err != nil {
			return errors.Wrap(err, "insert items")
		}
		// The initial history row carries the created status.
		if err := tx.AppendStatusEvent(ctx, o.ID, status); err != nil {
			return errors.Wrap(err, "append status event")
		}
		if status == StatusConfirmed && cpn != nil {
			if err := s.redeem(ctx, tx, cpn, actor.UserID); err != nil {
				return err
			}
		}

		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// buildItems materializes order lines from inputs, snapshotting catalog
// prices for lines that did not supply one.
func (s *Service) buildItems(ctx context.Context, tx Tx, inputs []ItemInput) ([]Item, error) {
	var missing []string
	for _, in := range inputs {
		if in.UnitPrice == 0 {
			missing = append(missing, in.ProductID)
		}
	}

	var prices map[string]money.Amount
	if len(missing) > 0 {
		var err error
		if prices, err = tx.ProductPrices(ctx, missing); err != nil {
			return nil, errors.Wrap(err, "load catalog prices")
		}
	}

	items := make([]Item, len(inputs))
	for i, in := range inputs {
		price := in.UnitPrice
		if price == 0 {
			p, ok := prices[in.ProductID]
			if !ok {
				return nil, &ProductNotFoundError{ProductID: in.ProductID}
			}
			price = p
		}
		items[i] = Item{
			ID:        uuid.New().String(),
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: price,
			Subtotal:  money.Amount(int64(in.Quantity)) * price,
		}
	}
	return items, nil
}

// UpdateOrderStatus moves an order through the state machine. Requests that
// do not change the status succeed without appending an event.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor identity.Actor, orderID string, next Status) error {
	err := s.updateStatusOnce(ctx, actor, orderID, next)
	if errors.Is(err, ErrUsageConflict) {
		err = s.updateStatusOnce(ctx, actor, orderID, next)
	}
	if errors.Is(err, ErrUsageConflict) {
		return coupon.Reject(nil, coupon.ReasonAlreadyUsed)
	}
	return err
}

func (s *Service) updateStatusOnce(ctx context.Context, actor identity.Actor, orderID string, next Status) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, o, OpTransition); err != nil {
			return err
		}
		return s.transition(ctx, tx, actor, o, next)
	})
}

// transition applies a status change to a locked order. Confirmation
// re-prices from stored snapshots and redeems the attached coupon.
func (s *Service) transition(ctx context.Context, tx Tx, actor identity.Actor, o *Order, next Status) error {
	if o.Status == next {
		return nil
	}
	if !o.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	if err := AuthorizeTransition(actor, o, next); err != nil {
		return err
	}

	if next == StatusConfirmed {
		return s.confirm(ctx, tx, o)
	}

	o.Status = next
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return errors.Wrap(err, "update order")
	}
	if err := tx.AppendStatusEvent(ctx, o.ID, next); err != nil {
		return errors.Wrap(err, "append status event")
	}
	return nil
}

// Patch describes a partial rewrite of an existing order. Nil fields are left
// untouched.
type Patch struct {
	AddressID     *string
	PaymentMethod *PaymentMethod
	Items         []ItemInput
	Status        *Status
}

// UpdateOrder rewrites order fields under the mutation guard: items, address,
// and payment method only while the order is PENDING; status changes go
// through the state machine.
func (s *Service) UpdateOrder(ctx context.Context, actor identity.Actor, orderID string, p Patch) error {
	err := s.updateOrderOnce(ctx, actor, orderID, p)
	if errors.Is(err, ErrUsageConflict) {
		err = s.updateOrderOnce(ctx, actor, orderID, p)
	}
	if errors.Is(err, ErrUsageConflict) {
		return coupon.Reject(nil, coupon.ReasonAlreadyUsed)
	}
	return err
}

func (s *Service) updateOrderOnce(ctx context.Context, actor identity.Actor, orderID string, p Patch) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if p.AddressID != nil {
			if err := Authorize(actor, o, OpRewriteAddress); err != nil {
				return err
			}
			if err := CheckMutable(o, OpRewriteAddress); err != nil {
				return err
			}
			owner, err := tx.AddressOwner(ctx, *p.AddressID)
			if err != nil {
				return err
			}
			if owner != o.CustomerID {
				return ErrAddressNotOwned
			}
			o.AddressID = p.AddressID
		}

		if p.PaymentMethod != nil {
			if err := Authorize(actor, o, OpRewritePayment); err != nil {
				return err
			}
			if err := CheckMutable(o, OpRewritePayment); err != nil {
				return err
			}
			o.PaymentMethod = *p.PaymentMethod
		}

		if p.Items != nil {
			if err := Authorize(actor, o, OpRewriteItems); err != nil {
				return err
			}
			if err := CheckMutable(o, OpRewriteItems); err != nil {
				return err
			}
			if len(p.Items) == 0 {
				return ErrEmptyItems
			}
			for _, it := range p.Items {
				if it.Quantity <= 0 {
					return &InvalidQuantityError{ProductID: it.ProductID}
				}
			}

			items, err := s.buildItems(ctx, tx, p.Items)
			if err != nil {
				return err
			}
			o.Items = items

			// Re-price while still pending. The attached coupon remains
			// advisory until confirmation, but a cart that no longer
			// satisfies it is rejected now rather than at checkout.
			cpn, err := s.attachedCoupon(ctx, tx, o)
			if err != nil {
				return err
			}
			t := Price(items, cpn, o.DeliveryFee)
			o.ItemsTotal = t.ItemsTotal
			o.Discount = t.Discount
			o.Total = t.Total

			if err := tx.ReplaceItems(ctx, o.ID, items); err != nil {
				return errors.Wrap(err, "replace items")
			}
		}

		if err := tx.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}

		if p.Status != nil {
			if err := Authorize(actor, o, OpTransition); err != nil {
				return err
			}
			return s.transition(ctx, tx, actor, o, *p.Status)
		}
		return nil
	})
}

// DeleteOrder removes an order that never became a permanent record.
func (s *Service) DeleteOrder(ctx context.Context, actor identity.Actor, orderID string) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, o, OpDelete); err != nil {
			return err
		}
		if err := CheckMutable(o, OpDelete); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, o.ID)
	})
}
