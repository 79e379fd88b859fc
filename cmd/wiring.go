package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brickscout/brickscout/internal/catalog"
	"github.com/brickscout/brickscout/internal/export"
	collyfetcher "github.com/brickscout/brickscout/internal/fetcher/colly"
	headlessfetcher "github.com/brickscout/brickscout/internal/fetcher/headless"
	"github.com/brickscout/brickscout/internal/pacing"
	"github.com/brickscout/brickscout/internal/scrape"
	"github.com/brickscout/brickscout/internal/snapshot"
	"github.com/brickscout/brickscout/internal/storage/postgres"
	"github.com/brickscout/brickscout/internal/valuation"
)

// catalogFetcher picks the browser fetcher for the retailer site when
// enabled, falling back to plain HTTP when Chrome cannot start.
func catalogFetcher(app *appContext) (scrape.Fetcher, func(), error) {
	if app.cfg.Scraper.Headless {
		fetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         app.cfg.Scraper.UserAgent,
			NavigationTimeout: app.cfg.NavTimeout(),
		})
		if err == nil {
			return fetcher, fetcher.Close, nil
		}
		app.logger.Warn("headless fetcher init failed, using plain HTTP", zap.Error(err))
	}
	return plainFetcher(app), func() {}, nil
}

func plainFetcher(app *appContext) scrape.Fetcher {
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: app.cfg.Scraper.UserAgent,
		Timeout:   app.cfg.FetchTimeout(),
	})
}

func newCatalogScraper(app *appContext, fetcher scrape.Fetcher) (*catalog.Scraper, error) {
	sink, err := snapshot.NewSink(app.cfg.Snapshot.Dir, app.logger.Named("snapshot"))
	if err != nil {
		return nil, fmt.Errorf("init snapshot sink: %w", err)
	}
	return catalog.New(catalog.Config{
		BaseURL:        app.cfg.Catalog.BaseURL,
		ThemesPath:     app.cfg.Catalog.ThemesPath,
		MaxPages:       app.cfg.Catalog.MaxPagesDefault,
		RequestsPerSec: app.cfg.Catalog.RequestsPerSec,
	}, fetcher, sink, app.logger.Named("catalog")), nil
}

func newValuationRunner(app *appContext) *valuation.Runner {
	pacingCfg := app.cfg.PacingConfig()
	return valuation.NewRunner(
		valuation.Config{BaseURL: app.cfg.Valuation.BaseURL},
		plainFetcher(app),
		pacing.New(pacingCfg),
		pacing.NewClassifier(pacingCfg.RateLimitStatusCodes, pacingCfg.RateLimitPhrases),
		app.logger.Named("valuation"),
	)
}

func newExporter(app *appContext) (*export.Writer, error) {
	writer, err := export.NewWriter(app.cfg.Export.Dir)
	if err != nil {
		return nil, fmt.Errorf("init exporter: %w", err)
	}
	return writer, nil
}

// newStore returns nil when no DSN is configured; CSV output still happens.
func newStore(ctx context.Context, app *appContext) (*postgres.Store, error) {
	if app.cfg.DB.DSN == "" {
		return nil, nil
	}
	store, err := postgres.NewStore(ctx, postgres.Config{
		DSN:      app.cfg.DB.DSN,
		MaxConns: app.cfg.DB.MaxConns,
		MinConns: app.cfg.DB.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	return store, nil
}

// asCatalogStore keeps a nil *postgres.Store from becoming a non-nil
// interface value.
func asCatalogStore(store *postgres.Store) scrape.CatalogStore {
	if store == nil {
		return nil
	}
	return store
}
