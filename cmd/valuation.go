package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brickscout/brickscout/internal/pipeline"
	"github.com/brickscout/brickscout/internal/valuation"
)

func newValuationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "valuation [item numbers...]",
		Short: "Looks up part-out valuations for sets",
		Long: `Fetches part-out valuations for the given item numbers, or for every
set in the exported catalog CSV when none are given. The valuation site
throttles hard, so fetches are paced adaptively and the run slows down
whenever it gets pushed back.`,
		RunE: runValuationCommand,
	}
	return cmd
}

func runValuationCommand(cmd *cobra.Command, args []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	exporter, err := newExporter(app)
	if err != nil {
		return err
	}
	store, err := newStore(cmd.Context(), app)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	items := args
	if len(items) == 0 {
		sets, err := exporter.ReadSets()
		if err != nil {
			return fmt.Errorf("no item numbers given and no exported catalog: %w", err)
		}
		items = pipeline.FilterItems(sets, app.cfg.Catalog.MinPieceCount)
	}

	runner := newValuationRunner(app)
	records, summary, err := runner.Run(cmd.Context(), items)

	if len(records) > 0 {
		if writeErr := exporter.WriteValuations(records); writeErr != nil {
			return fmt.Errorf("export valuations: %w", writeErr)
		}
		if store != nil {
			if storeErr := store.UpsertValuations(cmd.Context(), records); storeErr != nil {
				return fmt.Errorf("store valuations: %w", storeErr)
			}
		}
	}
	if err != nil {
		if errors.Is(err, valuation.ErrNoItems) {
			return errors.New("nothing to value: give item numbers or run the catalog command first")
		}
		return fmt.Errorf("valuation run: %w", err)
	}

	app.logger.Info("valuation command finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("parsed", summary.Parsed),
		zap.Int("rate_limited", summary.RateLimited),
		zap.Int("soft_failures", summary.SoftFailures),
		zap.Int("cooldowns", summary.Cooldowns),
		zap.Int("skipped", len(summary.Skipped)))
	return nil
}
