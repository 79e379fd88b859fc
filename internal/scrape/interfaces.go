package scrape

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// CatalogStore persists scraped catalog records.
type CatalogStore interface {
	UpsertThemes(ctx context.Context, themes []ThemeRecord) error
	UpsertSets(ctx context.Context, sets []SetRecord) error
	UpsertValuations(ctx context.Context, valuations []ValuationRecord) error
}
