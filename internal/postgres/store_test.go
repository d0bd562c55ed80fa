//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/domain/identity"
	"github.com/mercatto/checkout/internal/domain/order"
	"github.com/mercatto/checkout/internal/money"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "checkout",
				"POSTGRES_PASSWORD": "checkout",
				"POSTGRES_DB":       "checkout",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://checkout:checkout@%s:%s/checkout?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedAddress(t *testing.T, pool *pgxpool.Pool, id, customerID string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO addresses (id, customer_id, street, city, postal_code)
		 VALUES ($1, $2, 'Rua A, 1', 'São Paulo', '01000-000')`,
		id, customerID)
	require.NoError(t, err)
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, id string, price string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products (id, name, slug, price) VALUES ($1, $1, $1, $2)`,
		id, price)
	require.NoError(t, err)
}

func seedCoupon(t *testing.T, pool *pgxpool.Pool, c *coupon.Coupon) {
	t.Helper()
	require.NoError(t, NewCouponStore(pool).Insert(context.Background(), c))
}

func orderEvents(t *testing.T, pool *pgxpool.Pool, orderID string) []string {
	t.Helper()
	rows, err := pool.Query(context.Background(),
		`SELECT status FROM order_status_events WHERE order_id = $1 ORDER BY id`, orderID)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestCheckoutRoundTrip(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	seedAddress(t, pool, "a1", "u1")
	seedProduct(t, pool, "p1", "50.00")
	seedCoupon(t, pool, &coupon.Coupon{
		ID: uuid.New().String(), Code: "SAVE10",
		Type: coupon.TypePercent, Scope: coupon.ScopeAll, Value: 10,
		IsActive: true, CreatedAt: time.Now(),
	})

	svc := order.NewService(NewStore(pool), 500)
	actor := identity.Actor{UserID: "u1", Role: identity.RoleCustomer}

	created, err := svc.CreateOrder(ctx, actor, order.CreateOrderInput{
		Items:         []order.ItemInput{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: order.PaymentPix,
		AddressID:     "a1",
		CouponCode:    "save10",
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, created.Status)
	assert.Equal(t, money.Amount(10000), created.ItemsTotal)

	confirmed, err := svc.Checkout(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, confirmed.Status)
	assert.Equal(t, money.Amount(1000), confirmed.Discount)
	assert.Equal(t, money.Amount(9500), confirmed.Total)
	assert.True(t, confirmed.Number > 0)

	assert.Equal(t, []string{"PENDING", "CONFIRMED"}, orderEvents(t, pool, confirmed.ID))

	// The second checkout finds no pending order left.
	_, err = svc.Checkout(ctx, "u1", "a1")
	require.ErrorIs(t, err, order.ErrEmptyCart)
}

// With max_uses = 3 and 8 customers racing, exactly 3 redemptions commit and
// used_count never exceeds the cap.
func TestCouponMaxUsesUnderConcurrency(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	maxUses := 3
	couponID := uuid.New().String()
	seedCoupon(t, pool, &coupon.Coupon{
		ID: couponID, Code: "LIMITED",
		Type: coupon.TypeFixed, Scope: coupon.ScopeAll, Value: 1000,
		MaxUses: &maxUses, IsActive: true, CreatedAt: time.Now(),
	})
	seedProduct(t, pool, "p1", "100.00")

	const customers = 8
	for i := 0; i < customers; i++ {
		seedAddress(t, pool, fmt.Sprintf("a%d", i), fmt.Sprintf("u%d", i))
	}

	svc := order.NewService(NewStore(pool), 500)

	var confirmed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < customers; i++ {
		g.Go(func() error {
			actor := identity.Actor{UserID: fmt.Sprintf("u%d", i), Role: identity.RoleCustomer}
			_, err := svc.CreateOrder(gctx, actor, order.CreateOrderInput{
				Items:         []order.ItemInput{{ProductID: "p1", Quantity: 1}},
				PaymentMethod: order.PaymentPix,
				AddressID:     fmt.Sprintf("a%d", i),
				CouponCode:    "LIMITED",
				Status:        order.StatusConfirmed,
			})
			if err == nil {
				confirmed.Add(1)
				return nil
			}
			var rej *coupon.RejectionError
			if errors.As(err, &rej) && rej.Reason == coupon.ReasonExhausted {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(maxUses), confirmed.Load())

	var usedCount, usageRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT used_count FROM coupons WHERE id = $1`, couponID).Scan(&usedCount))
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM coupon_usages WHERE coupon_id = $1`, couponID).Scan(&usageRows))
	assert.Equal(t, maxUses, usedCount)
	assert.Equal(t, maxUses, usageRows)
}

// Two transactions inserting the same (coupon, user) usage concurrently:
// exactly one commits, the loser sees ErrUsageConflict.
func TestDuplicateRedemptionLoser(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	couponID := uuid.New().String()
	seedCoupon(t, pool, &coupon.Coupon{
		ID: couponID, Code: "ONCE",
		Type: coupon.TypeFixed, Scope: coupon.ScopeAll, Value: 500,
		IsActive: true, CreatedAt: time.Now(),
	})

	store := NewStore(pool)

	var conflicts atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			err := store.InTx(gctx, func(ctx context.Context, tx order.Tx) error {
				if err := tx.InsertCouponUsage(ctx, couponID, "u1"); err != nil {
					return err
				}
				ok, err := tx.IncrementCouponUses(ctx, couponID)
				if err != nil {
					return err
				}
				if !ok {
					return coupon.Reject(nil, coupon.ReasonExhausted)
				}
				return nil
			})
			if errors.Is(err, order.ErrUsageConflict) {
				conflicts.Add(1)
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), conflicts.Load())

	var usedCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT used_count FROM coupons WHERE id = $1`, couponID).Scan(&usedCount))
	assert.Equal(t, 1, usedCount)
}

func TestStatusEventOrdering(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	seedAddress(t, pool, "a1", "u1")
	svc := order.NewService(NewStore(pool), 500)
	actor := identity.Actor{UserID: "u1", Role: identity.RoleCustomer}
	admin := identity.Actor{UserID: "op", Role: identity.RoleAdmin}

	o, err := svc.CreateOrder(ctx, actor, order.CreateOrderInput{
		Items:         []order.ItemInput{{ProductID: "p1", Quantity: 1, UnitPrice: 1000}},
		PaymentMethod: order.PaymentCash,
		AddressID:     "a1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateOrderStatus(ctx, admin, o.ID, order.StatusConfirmed))
	// Same-status request appends nothing.
	require.NoError(t, svc.UpdateOrderStatus(ctx, admin, o.ID, order.StatusConfirmed))
	require.NoError(t, svc.UpdateOrderStatus(ctx, admin, o.ID, order.StatusDelivered))

	assert.Equal(t, []string{"PENDING", "CONFIRMED", "DELIVERED"}, orderEvents(t, pool, o.ID))
}

func TestCouponStoreLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	store := NewCouponStore(pool)

	c := &coupon.Coupon{
		ID: uuid.New().String(), Code: "SCOPED",
		Type: coupon.TypePercent, Scope: coupon.ScopeProducts, Value: 15,
		IsActive: true, ProductIDs: []string{"p1", "p2"}, CreatedAt: time.Now(),
	}
	require.NoError(t, store.Insert(ctx, c))

	dup := *c
	dup.ID = uuid.New().String()
	require.ErrorIs(t, store.Insert(ctx, &dup), coupon.ErrDuplicateCode)

	got, err := store.ByCode(ctx, "scoped")
	require.NoError(t, err)
	assert.Equal(t, "SCOPED", got.Code)
	assert.ElementsMatch(t, []string{"p1", "p2"}, got.ProductIDs)

	got.Value = 20
	got.ProductIDs = []string{"p2", "p3"}
	require.NoError(t, store.Update(ctx, got))
	got, err = store.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Value)
	assert.ElementsMatch(t, []string{"p2", "p3"}, got.ProductIDs)

	other := &coupon.Coupon{
		ID: uuid.New().String(), Code: "OTHER",
		Type: coupon.TypeFixed, Scope: coupon.ScopeAll, Value: 500,
		IsActive: true, CreatedAt: time.Now(),
	}
	require.NoError(t, store.Insert(ctx, other))
	other.Code = "SCOPED"
	require.ErrorIs(t, store.Update(ctx, other), coupon.ErrDuplicateCode)

	require.NoError(t, store.SetActive(ctx, c.ID, false))
	got, err = store.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, store.SoftDelete(ctx, c.ID, time.Now()))
	got, err = store.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	// Soft-deleted rows are immutable.
	require.ErrorIs(t, store.SetActive(ctx, c.ID, true), coupon.ErrNotFound)
}
