// Command coupon-ingest loads promotional coupon codes from partner feed
// files into the database. Feeds are large gzip-compressed code lists, one
// code per line; a code counts as genuine only when it appears in at least
// two independent feeds. The cross-check uses one bloom filter per feed so
// the full code sets never have to fit in memory at once.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/mercatto/checkout/internal/domain/coupon"
	"github.com/mercatto/checkout/internal/postgres"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	progressEvery = 5_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// rule describes the discount to attach to a known promotional code.
type rule struct {
	typ   coupon.Type
	value int64
}

var knownRules = map[string]rule{
	"BEMVINDO": {typ: coupon.TypePercent, value: 15},
	"FRETEOFF": {typ: coupon.TypeFixed, value: 500},
	"DEZREAIS": {typ: coupon.TypeFixed, value: 1000},
	"METADEJA": {typ: coupon.TypePercent, value: 50},
}

// defaultRule applies to genuine codes without a specific rule.
var defaultRule = rule{typ: coupon.TypePercent, value: 10}

func main() {
	var (
		feedDir     string
		feedCount   int
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "feeds", "directory containing feedN.gz files")
	flag.IntVar(&feedCount, "feed-count", 3, "number of feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, feedDir, feedCount, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed")
}

func run(ctx context.Context, feedDir string, feedCount int, databaseURL string) error {
	feeds := make([]string, feedCount)
	for i := range feeds {
		feeds[i] = filepath.Join(feedDir, fmt.Sprintf("feed%d.gz", i+1))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	filters, err := buildFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build feed filters")
	}

	genuine, err := crossCheck(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "cross-check feeds")
	}
	slog.Info("genuine codes found", slog.Int("count", len(genuine)))

	if len(genuine) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return insertCoupons(ctx, postgres.NewCouponStore(pool), genuine)
}

// buildFilters streams every feed once and fills one bloom filter per feed.
func buildFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			err := streamFeed(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("filter pass progress", slog.Int("feed", i+1), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "fill filter for feed %d", i+1)
			}

			slog.Info("filter pass complete", slog.Int("feed", i+1), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// crossCheck streams every feed again, testing each code against the other
// feeds' filters, and keeps codes seen in two or more feeds.
func crossCheck(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]string, error) {
	found := make([]map[string]uint, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			candidates := make(map[string]uint)
			bit := uint(1) << uint(i)

			err := streamFeed(ctx, path, func(code string) {
				for j, f := range filters {
					if j == i {
						continue
					}
					if f.TestString(code) {
						candidates[code] |= bit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "cross-check feed %d", i+1)
			}

			found[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, candidates := range found {
		for code, mask := range candidates {
			merged[code] |= mask
		}
	}

	var genuine []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			genuine = append(genuine, code)
		}
	}
	return genuine, nil
}

// streamFeed calls fn for each well-formed code line in a gzip feed.
func streamFeed(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := scanner.Text()
		if len(code) >= minCodeLen && len(code) <= maxCodeLen {
			fn(code)
		}
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

func insertCoupons(ctx context.Context, store *postgres.CouponStore, codes []string) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)))

	var inserted, skipped int
	for _, code := range codes {
		r, ok := knownRules[code]
		if !ok {
			r = defaultRule
		}

		err := store.Insert(ctx, &coupon.Coupon{
			ID:        uuid.New().String(),
			Code:      coupon.NormalizeCode(code),
			Type:      r.typ,
			Scope:     coupon.ScopeAll,
			Value:     r.value,
			IsActive:  true,
			CreatedAt: time.Now(),
		})
		if errors.Is(err, coupon.ErrDuplicateCode) {
			skipped++
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", code)
		}
		inserted++
	}

	slog.Info("coupons written", slog.Int("inserted", inserted), slog.Int("skipped", skipped))
	return nil
}
