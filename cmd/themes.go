package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "Scrapes the theme index only",
		Long: `Fetches the retailer's theme index, parses the theme links, and writes
them to the themes CSV (and Postgres when a DSN is configured).`,
		RunE: runThemesCommand,
	}
}

func runThemesCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

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
	store, err := newStore(cmd.Context(), app)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	themes, err := scraper.Themes(cmd.Context())
	if err != nil {
		return fmt.Errorf("scrape themes: %w", err)
	}
	if err := exporter.WriteThemes(themes); err != nil {
		return fmt.Errorf("export themes: %w", err)
	}
	if store != nil {
		if err := store.UpsertThemes(cmd.Context(), themes); err != nil {
			return fmt.Errorf("store themes: %w", err)
		}
	}

	app.logger.Info("themes command finished", zap.Int("themes", len(themes)))
	return nil
}
