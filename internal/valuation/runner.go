package valuation

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/brickscout/brickscout/internal/metrics"
	"github.com/brickscout/brickscout/internal/pacing"
	"github.com/brickscout/brickscout/internal/scrape"
)

// ErrNoItems is returned when a run is started with an empty work list. It
// fires before any fetch or wait so a misconfigured run is distinguishable
// from a run that attempted everything and parsed nothing.
var ErrNoItems = errors.New("valuation: no item numbers to process")

// Config controls the valuation runner.
type Config struct {
	// BaseURL is the part-out endpoint; the item number is appended as a
	// query parameter.
	BaseURL string
}

// DefaultBaseURL points at the public part-out valuation endpoint.
const DefaultBaseURL = "https://www.bricklink.com/catalogPOV.asp"

// RunSummary reports what a completed run attempted and achieved.
type RunSummary struct {
	Attempted    int
	Parsed       int
	RateLimited  int
	SoftFailures int
	Cooldowns    int
	// Skipped holds the item numbers that produced no record; the run never
	// retries them, so a caller can feed them into a later run.
	Skipped []string
}

// Runner walks a list of item numbers sequentially, consulting the governor
// before each fetch and feeding the classified outcome back into it. A
// single item's failure never aborts the run; only context cancellation or
// an empty work list does.
type Runner struct {
	cfg        Config
	fetcher    scrape.Fetcher
	governor   *pacing.Governor
	classifier *pacing.Classifier
	logger     *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(
	cfg Config,
	fetcher scrape.Fetcher,
	governor *pacing.Governor,
	classifier *pacing.Classifier,
	logger *zap.Logger,
) *Runner {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		fetcher:    fetcher,
		governor:   governor,
		classifier: classifier,
		logger:     logger,
	}
}

// Run processes all item numbers and returns the successfully parsed
// records in input order. Partial results survive cancellation.
func (r *Runner) Run(ctx context.Context, itemNumbers []string) ([]scrape.ValuationRecord, RunSummary, error) {
	summary := RunSummary{}
	if len(itemNumbers) == 0 {
		return nil, summary, ErrNoItems
	}

	records := make([]scrape.ValuationRecord, 0, len(itemNumbers))
	for idx, itemNumber := range itemNumbers {
		if err := ctx.Err(); err != nil {
			return records, summary, err
		}
		summary.Attempted++
		r.logger.Info("processing item",
			zap.String("item_number", itemNumber),
			zap.Int("position", idx+1),
			zap.Int("total", len(itemNumbers)),
			zap.Duration("current_delay", r.governor.CurrentDelay()),
			zap.Int("consecutive_failures", r.governor.ConsecutiveFailures()),
		)

		metrics.ObserveThrottleDelay(r.governor.CurrentDelay())
		if err := r.governor.Wait(ctx); err != nil {
			return records, summary, err
		}

		fired, err := r.governor.CooldownIfNeeded(ctx)
		if fired {
			summary.Cooldowns++
			metrics.IncCooldown()
			r.logger.Warn("extended cooldown fired, adaptive state reset",
				zap.String("item_number", itemNumber))
		}
		if err != nil {
			return records, summary, err
		}

		record, outcome, reason := r.processItem(ctx, itemNumber)
		metrics.RecordFetchOutcome("valuation", string(outcome))
		switch outcome {
		case pacing.OutcomeSuccess:
			records = append(records, *record)
			summary.Parsed++
			r.governor.RecordSuccess()
		case pacing.OutcomeRateLimited:
			summary.RateLimited++
			summary.Skipped = append(summary.Skipped, itemNumber)
			r.governor.RecordFailure()
			metrics.IncBackoff()
			r.logger.Warn("rate limit detected",
				zap.String("item_number", itemNumber),
				zap.String("reason", reason))
		default:
			summary.SoftFailures++
			summary.Skipped = append(summary.Skipped, itemNumber)
			r.governor.RecordFailure()
			metrics.IncBackoff()
			r.logger.Warn("item skipped",
				zap.String("item_number", itemNumber),
				zap.String("reason", reason))
		}
	}

	if summary.Parsed == 0 {
		r.logger.Warn("run completed with zero parsed records",
			zap.Int("attempted", summary.Attempted))
	}
	return records, summary, nil
}

// processItem performs one fetch-and-classify step. Fetch and parse errors
// map to soft failures; they carry no systemic blocking signal on their own.
func (r *Runner) processItem(ctx context.Context, itemNumber string) (*scrape.ValuationRecord, pacing.Outcome, string) {
	page, err := r.fetcher.Fetch(ctx, r.itemURL(itemNumber))
	if err != nil {
		return nil, pacing.OutcomeSoftFailure, fmt.Sprintf("fetch failed: %v", err)
	}

	if limited, reason := r.classifier.DetectRateLimit(page); limited {
		return nil, pacing.OutcomeRateLimited, reason
	}

	record, err := ParsePage(itemNumber, page.Body)
	if err != nil {
		return nil, pacing.OutcomeSoftFailure, fmt.Sprintf("parse failed: %v", err)
	}
	if record == nil {
		return nil, pacing.OutcomeSoftFailure, "no valuation data on page"
	}
	return record, pacing.OutcomeSuccess, ""
}

func (r *Runner) itemURL(itemNumber string) string {
	query := url.Values{}
	query.Set("itemType", "S")
	query.Set("itemNo", itemNumber)
	query.Set("itemSeq", "1")
	query.Set("itemQty", "1")
	query.Set("breakType", "M")
	query.Set("itemCondition", "N")
	return r.cfg.BaseURL + "?" + query.Encode()
}
