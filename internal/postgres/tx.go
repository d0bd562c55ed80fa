package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/domain/order"
	"github.com/mercatto/checkout/internal/money"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

var _ order.Tx = (*storeTx)(nil)

// storeTx implements order.Tx on one pgx transaction.
type storeTx struct {
	tx pgx.Tx
}

const addressOwnerSQL = `SELECT customer_id FROM addresses WHERE id = $1`

func (t *storeTx) AddressOwner(ctx context.Context, addressID string) (string, error) {
	var owner string
	err := t.tx.QueryRow(ctx, addressOwnerSQL, addressID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", order.ErrAddressNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "finding address %q", addressID)
	}
	return owner, nil
}

const orderColumns = `id, order_number, customer_id, status, payment_method, address_id, coupon_id,
	items_total, delivery_fee, discount, total, created_at, updated_at`

const pendingOrderSQL = `SELECT ` + orderColumns + `
	FROM orders
	WHERE customer_id = $1 AND status = 'PENDING'
	ORDER BY created_at DESC
	LIMIT 1
	FOR UPDATE`

const orderByIDSQL = `SELECT ` + orderColumns + `
	FROM orders
	WHERE id = $1
	FOR UPDATE`

func (t *storeTx) PendingOrderForUpdate(ctx context.Context, customerID string) (*order.Order, error) {
	return t.loadOrder(ctx, pendingOrderSQL, customerID)
}

func (t *storeTx) OrderForUpdate(ctx context.Context, orderID string) (*order.Order, error) {
	return t.loadOrder(ctx, orderByIDSQL, orderID)
}

func (t *storeTx) loadOrder(ctx context.Context, sql string, arg any) (*order.Order, error) {
	var o order.Order
	err := t.tx.QueryRow(ctx, sql, arg).Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.Status, &o.PaymentMethod,
		&o.AddressID, &o.CouponID,
		&o.ItemsTotal, &o.DeliveryFee, &o.Discount, &o.Total,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading order")
	}

	items, err := t.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

const orderItemsSQL = `SELECT id, product_id, quantity, unit_price, subtotal
	FROM order_items
	WHERE order_id = $1
	ORDER BY id`

func (t *storeTx) loadItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := t.tx.Query(ctx, orderItemsSQL, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "loading order items")
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal)
		return it, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning order items")
	}
	return items, nil
}

const insertOrderSQL = `INSERT INTO orders (
		id, customer_id, status, payment_method, address_id, coupon_id,
		items_total, delivery_fee, discount, total, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	RETURNING order_number`

func (t *storeTx) InsertOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.CustomerID, o.Status, o.PaymentMethod, o.AddressID, o.CouponID,
		o.ItemsTotal, o.DeliveryFee, o.Discount, o.Total, o.CreatedAt,
	).Scan(&o.Number)
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}
	return nil
}

const updateOrderSQL = `UPDATE orders SET
		status = $2, payment_method = $3, address_id = $4, coupon_id = $5,
		items_total = $6, delivery_fee = $7, discount = $8, total = $9,
		updated_at = now()
	WHERE id = $1`

func (t *storeTx) UpdateOrder(ctx context.Context, o *order.Order) error {
	tag, err := t.tx.Exec(ctx, updateOrderSQL,
		o.ID, o.Status, o.PaymentMethod, o.AddressID, o.CouponID,
		o.ItemsTotal, o.DeliveryFee, o.Discount, o.Total,
	)
	if err != nil {
		return errors.Wrapf(err, "updating order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

const (
	deleteItemsSQL = `DELETE FROM order_items WHERE order_id = $1`
	insertItemSQL  = `INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

func (t *storeTx) ReplaceItems(ctx context.Context, orderID string, items []order.Item) error {
	if _, err := t.tx.Exec(ctx, deleteItemsSQL, orderID); err != nil {
		return errors.Wrapf(err, "clearing items of order %q", orderID)
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(insertItemSQL, it.ID, orderID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "inserting items of order %q", orderID)
	}
	return nil
}

const deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

func (t *storeTx) DeleteOrder(ctx context.Context, orderID string) error {
	tag, err := t.tx.Exec(ctx, deleteOrderSQL, orderID)
	if err != nil {
		return errors.Wrapf(err, "deleting order %q", orderID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

const insertStatusEventSQL = `INSERT INTO order_status_events (order_id, status) VALUES ($1, $2)`

func (t *storeTx) AppendStatusEvent(ctx context.Context, orderID string, s order.Status) error {
	if _, err := t.tx.Exec(ctx, insertStatusEventSQL, orderID, s); err != nil {
		return errors.Wrapf(err, "appending status event for order %q", orderID)
	}
	return nil
}

func (t *storeTx) CouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return couponByCode(ctx, t.tx, code)
}

func (t *storeTx) CouponByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return couponByID(ctx, t.tx, id)
}

const couponUsageExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2
	)`

func (t *storeTx) CouponUsageExists(ctx context.Context, couponID, userID string) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, couponUsageExistsSQL, couponID, userID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "checking coupon usage")
	}
	return exists, nil
}

const insertCouponUsageSQL = `INSERT INTO coupon_usages (coupon_id, user_id) VALUES ($1, $2)`

// InsertCouponUsage records a redemption. The (coupon_id, user_id) primary
// key turns a concurrent duplicate into a unique violation, which surfaces as
// order.ErrUsageConflict.
func (t *storeTx) InsertCouponUsage(ctx context.Context, couponID, userID string) error {
	_, err := t.tx.Exec(ctx, insertCouponUsageSQL, couponID, userID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return order.ErrUsageConflict
	}
	if err != nil {
		return errors.Wrap(err, "inserting coupon usage")
	}
	return nil
}

// The relative increment never loads used_count into the application; the
// WHERE clause makes the max_uses cap hold under any interleaving.
const incrementCouponUsesSQL = `UPDATE coupons
	SET used_count = used_count + 1
	WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)`

func (t *storeTx) IncrementCouponUses(ctx context.Context, couponID string) (bool, error) {
	tag, err := t.tx.Exec(ctx, incrementCouponUsesSQL, couponID)
	if err != nil {
		return false, errors.Wrapf(err, "incrementing uses of coupon %q", couponID)
	}
	return tag.RowsAffected() == 1, nil
}

const productPricesSQL = `SELECT id, price FROM products WHERE id = ANY($1)`

// ProductPrices reads catalog prices, converting the NUMERIC column to minor
// units at the boundary.
func (t *storeTx) ProductPrices(ctx context.Context, ids []string) (map[string]money.Amount, error) {
	rows, err := t.tx.Query(ctx, productPricesSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "loading product prices")
	}
	defer rows.Close()

	out := make(map[string]money.Amount, len(ids))
	for rows.Next() {
		var (
			id    string
			price decimal.Decimal
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, errors.Wrap(err, "scanning product price")
		}
		out[id] = money.FromDecimal(price)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading product prices")
	}
	return out, nil
}
