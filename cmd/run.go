package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brickscout/brickscout/internal/api"
	"github.com/brickscout/brickscout/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs the full pipeline: themes, listings, then valuations",
		Long: `Executes every stage in order: scrape the theme index, walk each
theme's product listings, filter the sets worth valuing, and look up their
part-out valuations. When the ops server is enabled the run's progress is
served on /v1/run/status alongside /metrics.`,
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fetcher, closeFetcher, err := catalogFetcher(app)
	if err != nil {
		return err
	}
	defer closeFetcher()

	scraper, err := newCatalogScraper(app, fetcher)
	if err != nil {
		return err
	}
	exporter, err := newExporter(app)
	if err != nil {
		return err
	}
	store, err := newStore(ctx, app)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	runID := uuid.NewString()
	tracker := api.NewTracker(runID, time.Now().UTC())
	stopServer := startOpsServer(app, tracker)
	defer stopServer()

	runner := pipeline.New(
		pipeline.Config{MinPieceCount: app.cfg.Catalog.MinPieceCount},
		scraper,
		newValuationRunner(app),
		exporter,
		asCatalogStore(store),
		tracker,
		app.logger.Named("pipeline"),
	)

	app.logger.Info("run started", zap.String("run_id", runID))
	counters, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline run: %w", err)
	}

	app.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("themes", counters.Themes),
		zap.Int("sets", counters.Sets),
		zap.Int("valuations_attempted", counters.ValuationsTried),
		zap.Int("valuations_parsed", counters.ValuationsParsed),
		zap.Int("rate_limited", counters.RateLimited),
		zap.Int("soft_failures", counters.SoftFailures),
		zap.Int("cooldowns", counters.Cooldowns))
	return nil
}

// startOpsServer serves health, metrics, and run status while the pipeline
// runs. Returns a stop function; a no-op when the server is disabled.
func startOpsServer(app *appContext, tracker *api.Tracker) func() {
	if !app.cfg.Server.Enabled {
		return func() {}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           api.NewServer(tracker, app.logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		app.logger.Info("ops server started", zap.Int("port", app.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("ops server error", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("ops server shutdown error", zap.Error(err))
		}
	}
}
