// Command seed-db loads demo catalog, address, and coupon data for local
// development and integration testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/postgres"
)

type productJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Slug  string          `json:"slug"`
	Price decimal.Decimal `json:"price"`
}

type addressJSON struct {
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

type seedFile struct {
	Products  []productJSON `json:"products"`
	Addresses []addressJSON `json:"addresses"`
}

func main() {
	var (
		databaseURL string
		dataFile    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&dataFile, "data-file", "db/seed/demo.json", "path to the seed data JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, dataFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed")
}

func run(ctx context.Context, databaseURL, dataFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data, err := os.ReadFile(dataFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	for _, p := range seed.Products {
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, slug, price) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name = $2, slug = $3, price = $4`,
			p.ID, p.Name, p.Slug, p.Price)
		if err != nil {
			return errors.Wrapf(err, "seed product %s", p.ID)
		}
	}
	slog.Info("products seeded", slog.Int("count", len(seed.Products)))

	for _, a := range seed.Addresses {
		_, err := pool.Exec(ctx,
			`INSERT INTO addresses (id, customer_id, street, city, postal_code)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			a.ID, a.CustomerID, a.Street, a.City, a.PostalCode)
		if err != nil {
			return errors.Wrapf(err, "seed address %s", a.ID)
		}
	}
	slog.Info("addresses seeded", slog.Int("count", len(seed.Addresses)))

	if err := seedCoupons(ctx, postgres.NewCouponStore(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func seedCoupons(ctx context.Context, store *postgres.CouponStore) error {
	minOrder := int64(5000)
	maxUses := 100
	expires := time.Now().AddDate(0, 3, 0)

	demo := []*coupon.Coupon{
		{
			Code: "SAVE10", Type: coupon.TypePercent, Scope: coupon.ScopeAll,
			Value: 10, IsActive: true,
		},
		{
			Code: "BEMVINDO", Type: coupon.TypeFixed, Scope: coupon.ScopeAll,
			Value: 1500, MinOrderValue: &minOrder, MaxUses: &maxUses,
			ExpiresAt: &expires, IsActive: true,
		},
	}

	var inserted int
	for _, c := range demo {
		c.ID = uuid.New().String()
		c.CreatedAt = time.Now()

		err := store.Insert(ctx, c)
		if errors.Is(err, coupon.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", c.Code)
		}
		inserted++
	}

	slog.Info("coupons seeded", slog.Int("inserted", inserted))
	return nil
}
