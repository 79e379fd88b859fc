package catalog

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brickscout/brickscout/internal/metrics"
	"github.com/brickscout/brickscout/internal/scrape"
	"github.com/brickscout/brickscout/internal/snapshot"
)

// Config controls the catalog scraper.
type Config struct {
	BaseURL    string
	ThemesPath string
	// MaxPages caps pagination per theme regardless of what the page count
	// selector reports.
	MaxPages int
	// RequestsPerSec is a fixed polite rate for listing pages. The retailer
	// site has not shown adaptive throttling, so a token bucket is enough
	// here; the adaptive governor belongs to the valuation site.
	RequestsPerSec float64
}

// Scraper walks the theme index and the per-theme product listings.
type Scraper struct {
	cfg       Config
	fetcher   scrape.Fetcher
	limiter   *rate.Limiter
	snapshots *snapshot.Sink
	logger    *zap.Logger
}

// New constructs a Scraper. The snapshot sink may be nil to disable dumps.
func New(cfg Config, fetcher scrape.Fetcher, snapshots *snapshot.Sink, logger *zap.Logger) *Scraper {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	rps := rate.Limit(cfg.RequestsPerSec)
	if cfg.RequestsPerSec <= 0 {
		rps = rate.Limit(0.5)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		limiter:   rate.NewLimiter(rps, 1),
		snapshots: snapshots,
		logger:    logger,
	}
}

// Themes fetches and parses the theme index.
func (s *Scraper) Themes(ctx context.Context) ([]scrape.ThemeRecord, error) {
	page, err := s.fetch(ctx, s.cfg.BaseURL+s.cfg.ThemesPath)
	if err != nil {
		return nil, fmt.Errorf("fetch theme index: %w", err)
	}
	themes, err := ParseThemes(s.cfg.BaseURL, page.Body)
	if err != nil {
		return nil, err
	}
	s.logger.Info("theme index scraped", zap.Int("themes", len(themes)))
	return themes, nil
}

// Sets walks every listing page of one theme and returns the product
// records found. An empty page stops pagination for the theme and leaves a
// snapshot behind for selector triage.
func (s *Scraper) Sets(ctx context.Context, theme scrape.ThemeRecord) ([]scrape.SetRecord, error) {
	var sets []scrape.SetRecord
	pageCount := s.cfg.MaxPages

	for pageNumber := 1; pageNumber <= pageCount && pageNumber <= s.cfg.MaxPages; pageNumber++ {
		if err := ctx.Err(); err != nil {
			return sets, err
		}

		url := theme.URL
		if pageNumber > 1 {
			url = BuildPageURL(theme.URL, pageNumber)
		}
		page, err := s.fetch(ctx, url)
		if err != nil {
			s.logger.Warn("listing page fetch failed",
				zap.String("theme", theme.Name),
				zap.Int("page", pageNumber),
				zap.Error(err))
			continue
		}

		listing, err := ParseListing(s.cfg.BaseURL, page.Body)
		if err != nil {
			s.logger.Warn("listing page parse failed",
				zap.String("theme", theme.Name),
				zap.Int("page", pageNumber),
				zap.Error(err))
			continue
		}
		if pageNumber == 1 {
			pageCount = listing.PageCount
			s.logger.Debug("pagination detected",
				zap.String("theme", theme.Name),
				zap.Int("pages", pageCount))
		}

		if len(listing.Sets) == 0 {
			s.dumpEmptyPage(ctx, theme.Name, pageNumber, page.Body)
			break
		}
		sets = append(sets, listing.Sets...)
	}

	s.logger.Info("theme scraped",
		zap.String("theme", theme.Name),
		zap.Int("sets", len(sets)))
	return sets, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (scrape.Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return scrape.Page{}, fmt.Errorf("catalog rate limit wait: %w", err)
	}
	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.RecordPage("catalog", "error")
		return scrape.Page{}, err
	}
	metrics.RecordPage("catalog", strconv.Itoa(page.StatusCode))
	return page, nil
}

// dumpEmptyPage saves the HTML of a page that yielded no products; a layout
// change and a block page look identical until someone reads the dump.
func (s *Scraper) dumpEmptyPage(ctx context.Context, theme string, pageNumber int, body []byte) {
	if s.snapshots == nil || len(body) == 0 {
		return
	}
	label := fmt.Sprintf("%s_%d", theme, pageNumber)
	if path, err := s.snapshots.Save(ctx, label, body); err == nil {
		s.logger.Warn("no products on page, snapshot saved",
			zap.String("theme", theme),
			zap.Int("page", pageNumber),
			zap.String("snapshot", path))
	}
}
