// Package postgres provides Postgres-backed persistence for scraped
// catalog data.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickscout/brickscout/internal/metrics"
	"github.com/brickscout/brickscout/internal/scrape"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store implements scrape.CatalogStore on Postgres. Rows are keyed the way
// the site keys them: themes by name, sets and valuations by item number.
type Store struct {
	pool execCloser
}

// NewStore creates a Store using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool execCloser) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertThemeSQL = `
INSERT INTO themes (theme_name, theme_url)
VALUES ($1, $2)
ON CONFLICT (theme_name) DO UPDATE SET theme_url = EXCLUDED.theme_url`

// UpsertThemes writes theme rows, replacing the URL on conflict.
func (s *Store) UpsertThemes(ctx context.Context, themes []scrape.ThemeRecord) error {
	for _, theme := range themes {
		if theme.Name == "" {
			return fmt.Errorf("theme name is required")
		}
		if _, err := s.pool.Exec(ctx, upsertThemeSQL, theme.Name, theme.URL); err != nil {
			return fmt.Errorf("upsert theme %s: %w", theme.Name, err)
		}
	}
	metrics.RecordUpserts("themes", len(themes))
	return nil
}

const upsertSetSQL = `
INSERT INTO sets (item_number, set_name, msrp, sale_price, availability, piece_count, url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (item_number) DO UPDATE SET
	set_name = EXCLUDED.set_name,
	msrp = EXCLUDED.msrp,
	sale_price = EXCLUDED.sale_price,
	availability = EXCLUDED.availability,
	piece_count = EXCLUDED.piece_count,
	url = EXCLUDED.url`

// UpsertSets writes set rows keyed by item number.
func (s *Store) UpsertSets(ctx context.Context, sets []scrape.SetRecord) error {
	for _, set := range sets {
		if set.ItemNumber == "" {
			return fmt.Errorf("item number is required")
		}
		_, err := s.pool.Exec(ctx, upsertSetSQL,
			set.ItemNumber,
			set.Name,
			set.MSRP,
			set.SalePrice,
			set.Availability,
			set.PieceCount,
			set.URL,
		)
		if err != nil {
			return fmt.Errorf("upsert set %s: %w", set.ItemNumber, err)
		}
	}
	metrics.RecordUpserts("sets", len(sets))
	return nil
}

const upsertValuationSQL = `
INSERT INTO valuations (item_number, pov_past_6_months, pov_past_6_months_volume, pov_current_listings, pov_current_listings_volume)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (item_number) DO UPDATE SET
	pov_past_6_months = EXCLUDED.pov_past_6_months,
	pov_past_6_months_volume = EXCLUDED.pov_past_6_months_volume,
	pov_current_listings = EXCLUDED.pov_current_listings,
	pov_current_listings_volume = EXCLUDED.pov_current_listings_volume`

// UpsertValuations writes part-out valuation rows keyed by item number.
func (s *Store) UpsertValuations(ctx context.Context, valuations []scrape.ValuationRecord) error {
	for _, v := range valuations {
		if v.ItemNumber == "" {
			return fmt.Errorf("item number is required")
		}
		_, err := s.pool.Exec(ctx, upsertValuationSQL,
			v.ItemNumber,
			v.Past6Months,
			v.Past6MonthsVolume,
			v.CurrentListings,
			v.CurrentVolume,
		)
		if err != nil {
			return fmt.Errorf("upsert valuation %s: %w", v.ItemNumber, err)
		}
	}
	metrics.RecordUpserts("valuations", len(valuations))
	return nil
}
