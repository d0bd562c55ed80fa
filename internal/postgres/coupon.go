package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercatto/checkout/internal/domain/coupon"
)

const couponSelect = `SELECT c.id, c.code, c.type, c.scope, c.value, c.min_order_value,
		c.max_uses, c.used_count, c.expires_at, c.is_active, c.deleted_at, c.created_at,
		COALESCE(array_agg(cp.product_id) FILTER (WHERE cp.product_id IS NOT NULL), '{}')
	FROM coupons c
	LEFT JOIN coupon_products cp ON cp.coupon_id = c.id
	`

const (
	couponByCodeSQL = couponSelect + `WHERE c.code = UPPER($1) GROUP BY c.id`
	couponByIDSQL   = couponSelect + `WHERE c.id = $1 GROUP BY c.id`
)

// couponByCode loads a coupon snapshot by code, including inactive and
// soft-deleted rows; filtering those out is the eligibility evaluator's job.
func couponByCode(ctx context.Context, q queryer, code string) (*coupon.Coupon, error) {
	return scanCoupon(q.QueryRow(ctx, couponByCodeSQL, code))
}

func couponByID(ctx context.Context, q queryer, id string) (*coupon.Coupon, error) {
	return scanCoupon(q.QueryRow(ctx, couponByIDSQL, id))
}

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.Type, &c.Scope, &c.Value, &c.MinOrderValue,
		&c.MaxUses, &c.UsedCount, &c.ExpiresAt, &c.IsActive, &c.DeletedAt, &c.CreatedAt,
		&c.ProductIDs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coupon.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scanning coupon")
	}
	return &c, nil
}

var _ coupon.AdminStore = (*CouponStore)(nil)

// CouponStore implements coupon.AdminStore backed by PostgreSQL.
type CouponStore struct {
	pool *pgxpool.Pool
}

// NewCouponStore returns a CouponStore that uses the given pool.
func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

const (
	insertCouponSQL = `INSERT INTO coupons (
			id, code, type, scope, value, min_order_value, max_uses,
			expires_at, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	insertCouponProductSQL = `INSERT INTO coupon_products (coupon_id, product_id) VALUES ($1, $2)`
)

// Insert persists a new coupon and its product scope rows atomically.
// Returns coupon.ErrDuplicateCode when the code is already taken.
func (s *CouponStore) Insert(ctx context.Context, c *coupon.Coupon) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertCouponSQL,
			c.ID, c.Code, c.Type, c.Scope, c.Value, c.MinOrderValue, c.MaxUses,
			c.ExpiresAt, c.IsActive, c.CreatedAt,
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrDuplicateCode
		}
		if err != nil {
			return errors.Wrapf(err, "inserting coupon %q", c.Code)
		}

		for _, productID := range c.ProductIDs {
			if _, err := tx.Exec(ctx, insertCouponProductSQL, c.ID, productID); err != nil {
				return errors.Wrapf(err, "scoping coupon %q to product %q", c.Code, productID)
			}
		}
		return nil
	})
}

const (
	updateCouponSQL = `UPDATE coupons SET code = $2, type = $3, scope = $4, value = $5,
			min_order_value = $6, max_uses = $7, expires_at = $8
		WHERE id = $1 AND deleted_at IS NULL`
	deleteCouponProductsSQL = `DELETE FROM coupon_products WHERE coupon_id = $1`
)

// Update rewrites the coupon row and replaces its product scope rows
// atomically. Returns coupon.ErrDuplicateCode when the new code is taken and
// coupon.ErrNotFound when the row is missing or soft-deleted.
func (s *CouponStore) Update(ctx context.Context, c *coupon.Coupon) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateCouponSQL,
			c.ID, c.Code, c.Type, c.Scope, c.Value, c.MinOrderValue, c.MaxUses, c.ExpiresAt,
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrDuplicateCode
		}
		if err != nil {
			return errors.Wrapf(err, "updating coupon %q", c.ID)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrNotFound
		}

		if _, err := tx.Exec(ctx, deleteCouponProductsSQL, c.ID); err != nil {
			return errors.Wrapf(err, "clearing product scope of coupon %q", c.ID)
		}
		for _, productID := range c.ProductIDs {
			if _, err := tx.Exec(ctx, insertCouponProductSQL, c.ID, productID); err != nil {
				return errors.Wrapf(err, "scoping coupon %q to product %q", c.Code, productID)
			}
		}
		return nil
	})
}

// ByID loads a coupon snapshot regardless of its active or deleted state.
func (s *CouponStore) ByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return couponByID(ctx, s.pool, id)
}

// ByCode loads a coupon snapshot by its code.
func (s *CouponStore) ByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return couponByCode(ctx, s.pool, code)
}

const setCouponActiveSQL = `UPDATE coupons SET is_active = $2 WHERE id = $1 AND deleted_at IS NULL`

func (s *CouponStore) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, setCouponActiveSQL, id, active)
	if err != nil {
		return errors.Wrapf(err, "setting active flag of coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

const softDeleteCouponSQL = `UPDATE coupons SET is_active = FALSE, deleted_at = $2
	WHERE id = $1 AND deleted_at IS NULL`

// SoftDelete deactivates the coupon and stamps deleted_at. Rows are never
// hard-removed while usage history references them.
func (s *CouponStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, softDeleteCouponSQL, id, at)
	if err != nil {
		return errors.Wrapf(err, "soft deleting coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}
