// Package pipeline sequences the full scrape: theme index, per-theme
// listings, then part-out valuations for the sets that survive filtering.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/brickscout/brickscout/internal/api"
	"github.com/brickscout/brickscout/internal/scrape"
	"github.com/brickscout/brickscout/internal/valuation"
)

// Config controls run-wide filtering.
type Config struct {
	// MinPieceCount drops small sets before the valuation stage; part-out
	// values for trivially small sets are noise.
	MinPieceCount int
}

// Exporter is the CSV surface the pipeline writes each stage's output to.
type Exporter interface {
	WriteThemes(themes []scrape.ThemeRecord) error
	WriteSets(sets []scrape.SetRecord) error
	WriteValuations(valuations []scrape.ValuationRecord) error
	ReadThemes() ([]scrape.ThemeRecord, error)
}

// CatalogScraper is the slice of the catalog scraper the pipeline drives.
type CatalogScraper interface {
	Themes(ctx context.Context) ([]scrape.ThemeRecord, error)
	Sets(ctx context.Context, theme scrape.ThemeRecord) ([]scrape.SetRecord, error)
}

// ValuationRunner is the slice of the valuation runner the pipeline drives.
type ValuationRunner interface {
	Run(ctx context.Context, itemNumbers []string) ([]scrape.ValuationRecord, valuation.RunSummary, error)
}

// Runner executes the stages in order. The store may be nil when running
// CSV-only; the tracker may be nil when the ops server is disabled.
type Runner struct {
	cfg       Config
	catalog   CatalogScraper
	valuation ValuationRunner
	exporter  Exporter
	store     scrape.CatalogStore
	tracker   *api.Tracker
	logger    *zap.Logger
}

// New constructs a Runner.
func New(
	cfg Config,
	catalogScraper CatalogScraper,
	valuationRunner ValuationRunner,
	exporter Exporter,
	store scrape.CatalogStore,
	tracker *api.Tracker,
	logger *zap.Logger,
) *Runner {
	if cfg.MinPieceCount <= 0 {
		cfg.MinPieceCount = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		catalog:   catalogScraper,
		valuation: valuationRunner,
		exporter:  exporter,
		store:     store,
		tracker:   tracker,
		logger:    logger,
	}
}

// Run executes all stages and returns the counters for the run. Output
// produced before a cancellation is still exported.
func (r *Runner) Run(ctx context.Context) (scrape.RunCounters, error) {
	counters := scrape.RunCounters{}

	themes, err := r.runThemes(ctx)
	if err != nil {
		return counters, err
	}
	counters.Themes = len(themes)
	r.publish("catalog", counters)

	sets, err := r.runCatalog(ctx, themes)
	counters.Sets = len(sets)
	r.publish("catalog", counters)
	if err != nil {
		return counters, err
	}

	items := FilterItems(sets, r.cfg.MinPieceCount)
	if len(items) == 0 {
		r.logger.Warn("no sets passed the valuation filter",
			zap.Int("sets", len(sets)),
			zap.Int("min_piece_count", r.cfg.MinPieceCount))
		r.publish("done", counters)
		return counters, nil
	}

	r.publish("valuation", counters)
	counters, err = r.runValuation(ctx, items, counters)
	r.publish("done", counters)
	return counters, err
}

// runThemes scrapes the theme index, falling back to the last exported theme
// list when the index itself cannot be scraped.
func (r *Runner) runThemes(ctx context.Context) ([]scrape.ThemeRecord, error) {
	r.publish("themes", scrape.RunCounters{})

	themes, err := r.catalog.Themes(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		r.logger.Warn("theme index scrape failed, trying exported list", zap.Error(err))
		fallback, readErr := r.exporter.ReadThemes()
		if readErr != nil || len(fallback) == 0 {
			return nil, fmt.Errorf("scrape theme index: %w", err)
		}
		themes = fallback
	}
	if len(themes) == 0 {
		return nil, errors.New("theme index yielded no themes")
	}

	if err := r.exporter.WriteThemes(themes); err != nil {
		return nil, fmt.Errorf("export themes: %w", err)
	}
	if r.store != nil {
		if err := r.store.UpsertThemes(ctx, themes); err != nil {
			return nil, fmt.Errorf("store themes: %w", err)
		}
	}
	return themes, nil
}

// runCatalog walks every theme's listing pages. A single theme's failure is
// logged and skipped; cancellation stops the walk but keeps prior output.
func (r *Runner) runCatalog(ctx context.Context, themes []scrape.ThemeRecord) ([]scrape.SetRecord, error) {
	var sets []scrape.SetRecord
	for _, theme := range themes {
		if err := ctx.Err(); err != nil {
			r.persistSets(ctx, sets)
			return sets, err
		}
		themeSets, err := r.catalog.Sets(ctx, theme)
		sets = append(sets, themeSets...)
		if err != nil {
			if ctx.Err() != nil {
				r.persistSets(ctx, sets)
				return sets, err
			}
			r.logger.Warn("theme skipped",
				zap.String("theme", theme.Name),
				zap.Error(err))
		}
	}
	if err := r.persistSets(ctx, sets); err != nil {
		return sets, err
	}
	return sets, nil
}

func (r *Runner) persistSets(ctx context.Context, sets []scrape.SetRecord) error {
	if len(sets) == 0 {
		return nil
	}
	if err := r.exporter.WriteSets(sets); err != nil {
		return fmt.Errorf("export sets: %w", err)
	}
	if r.store != nil {
		if err := r.store.UpsertSets(ctx, sets); err != nil {
			return fmt.Errorf("store sets: %w", err)
		}
	}
	return nil
}

func (r *Runner) runValuation(ctx context.Context, items []string, counters scrape.RunCounters) (scrape.RunCounters, error) {
	records, summary, err := r.valuation.Run(ctx, items)
	counters.ValuationsTried = summary.Attempted
	counters.ValuationsParsed = summary.Parsed
	counters.RateLimited = summary.RateLimited
	counters.SoftFailures = summary.SoftFailures
	counters.Cooldowns = summary.Cooldowns

	if len(records) > 0 {
		if writeErr := r.exporter.WriteValuations(records); writeErr != nil {
			return counters, fmt.Errorf("export valuations: %w", writeErr)
		}
		if r.store != nil {
			if storeErr := r.store.UpsertValuations(ctx, records); storeErr != nil {
				return counters, fmt.Errorf("store valuations: %w", storeErr)
			}
		}
	}
	if err != nil {
		return counters, fmt.Errorf("valuation run: %w", err)
	}
	if len(summary.Skipped) > 0 {
		r.logger.Info("items left for a later run",
			zap.Int("skipped", len(summary.Skipped)))
	}
	return counters, nil
}

// FilterItems picks the item numbers to value: numeric, deduplicated, and
// from sets at or above the piece count floor.
func FilterItems(sets []scrape.SetRecord, minPieceCount int) []string {
	seen := make(map[string]struct{}, len(sets))
	items := make([]string, 0, len(sets))
	for _, set := range sets {
		if set.PieceCount < minPieceCount {
			continue
		}
		if !isNumeric(set.ItemNumber) {
			continue
		}
		if _, ok := seen[set.ItemNumber]; ok {
			continue
		}
		seen[set.ItemNumber] = struct{}{}
		items = append(items, set.ItemNumber)
	}
	return items
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (r *Runner) publish(stage string, counters scrape.RunCounters) {
	if r.tracker == nil {
		return
	}
	r.tracker.SetStage(stage)
	r.tracker.SetCounters(counters)
}
