package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brickscout/brickscout/internal/scrape"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Scrapes the theme index and every theme's product listings",
		Long: `Walks the theme index and then paginates through each theme's product
listings, extracting set names, item numbers, prices, availability, and
piece counts. Output goes to CSV (and Postgres when a DSN is configured).`,
		RunE: runCatalogCommand,
	}
}

func runCatalogCommand(cmd *cobra.Command, _ []string) error {
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

	ctx := cmd.Context()
	themes, err := scraper.Themes(ctx)
	if err != nil {
		return fmt.Errorf("scrape themes: %w", err)
	}
	if err := exporter.WriteThemes(themes); err != nil {
		return fmt.Errorf("export themes: %w", err)
	}
	if store != nil {
		if err := store.UpsertThemes(ctx, themes); err != nil {
			return fmt.Errorf("store themes: %w", err)
		}
	}

	var sets []scrape.SetRecord
	for _, theme := range themes {
		if err := ctx.Err(); err != nil {
			return err
		}
		themeSets, err := scraper.Sets(ctx, theme)
		sets = append(sets, themeSets...)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			app.logger.Warn("theme skipped", zap.String("theme", theme.Name), zap.Error(err))
		}
	}

	if err := exporter.WriteSets(sets); err != nil {
		return fmt.Errorf("export sets: %w", err)
	}
	if store != nil {
		if err := store.UpsertSets(ctx, sets); err != nil {
			return fmt.Errorf("store sets: %w", err)
		}
	}

	app.logger.Info("catalog command finished",
		zap.Int("themes", len(themes)),
		zap.Int("sets", len(sets)))
	return nil
}
