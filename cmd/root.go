// Package cmd defines the CLI commands for the brickscout executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brickscout/brickscout/internal/config"
	"github.com/brickscout/brickscout/internal/logging"
	"github.com/brickscout/brickscout/internal/metrics"
)

var cfgFile string

// appKeyType is the key for storing the runtime in the command context.
type appKeyType string

const appKey appKeyType = "app"

// appContext carries the pieces every subcommand needs. Building it happens
// in PersistentPreRunE so subcommands receive loaded config and a live
// logger through the command context.
type appContext struct {
	cfg    config.Config
	logger *zap.Logger
}

func (a *appContext) close() {
	if a == nil || a.logger == nil {
		return
	}
	_ = a.logger.Sync()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brickscout",
		Short: "Scrapes a brick retailer's catalog and part-out valuations.",
		Long: `brickscout walks the retailer's theme index and product listings,
then looks up part-out valuations for each set against a marketplace that
throttles aggressively. Results land in CSV files and optionally Postgres.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()

			ctx := context.WithValue(cmd.Context(), appKey, &appContext{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*appContext); ok {
				app.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars override)")

	cmd.AddCommand(newThemesCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newValuationCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*appContext, error) {
	app, ok := ctx.Value(appKey).(*appContext)
	if !ok || app == nil {
		return nil, errors.New("application services not initialized")
	}
	return app, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetContext(ctx)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "brickscout: %v\n", err)
		}
		os.Exit(1)
	}
}
