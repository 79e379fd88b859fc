package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brickscout/brickscout/internal/scrape"
	"github.com/brickscout/brickscout/internal/snapshot"
)

type mapFetcher struct {
	pages  map[string]string
	visits []string
}

func (f *mapFetcher) Fetch(_ context.Context, url string) (scrape.Page, error) {
	f.visits = append(f.visits, url)
	body, ok := f.pages[url]
	if !ok {
		return scrape.Page{}, fmt.Errorf("unexpected url %s", url)
	}
	return scrape.Page{URL: url, StatusCode: 200, HasStatus: true, Body: []byte(body)}, nil
}

func productTile(slug, name string) string {
	return fmt.Sprintf(`<li data-test="product-item">
<a href="/en-us/product/%s"></a><h3>%s</h3>
<div class="ProductLeaf_priceRow__x">$10.00</div>
<span data-test="product-leaf-piece-count-label">100</span>
</li>`, slug, name)
}

func fastScraper(cfg Config, fetcher scrape.Fetcher, sink *snapshot.Sink) *Scraper {
	cfg.RequestsPerSec = 10000
	return New(cfg, fetcher, sink, nil)
}

func TestScraperThemes(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{
		"https://test.example/en-us/themes": `<a data-test="themes-link" href="/en-us/themes/city">City</a>`,
	}}
	s := fastScraper(Config{BaseURL: "https://test.example", ThemesPath: "/en-us/themes"}, fetcher, nil)

	themes, err := s.Themes(context.Background())
	require.NoError(t, err)
	require.Len(t, themes, 1)
	require.Equal(t, "city", themes[0].Name)
}

func TestScraperSetsPaginates(t *testing.T) {
	t.Parallel()

	themeURL := "https://test.example/en-us/themes/city"
	pageOne := `<html><body>
<a data-test="pagination-page-1" href="#">1</a>
<a data-test="pagination-page-2" href="#">2</a>` +
		productTile("fire-station-60414", "Fire Station") + `</body></html>`
	pageTwo := `<html><body>` + productTile("police-car-60312", "Police Car") + `</body></html>`

	fetcher := &mapFetcher{pages: map[string]string{
		themeURL:             pageOne,
		themeURL + "?page=2": pageTwo,
	}}
	s := fastScraper(Config{BaseURL: "https://test.example"}, fetcher, nil)

	sets, err := s.Sets(context.Background(), scrape.ThemeRecord{Name: "city", URL: themeURL})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	require.Equal(t, "60414", sets[0].ItemNumber)
	require.Equal(t, "60312", sets[1].ItemNumber)
	require.Equal(t, []string{themeURL, themeURL + "?page=2"}, fetcher.visits)
}

func TestScraperSetsEmptyPageStopsAndSnapshots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := snapshot.NewSink(dir, nil)
	require.NoError(t, err)

	themeURL := "https://test.example/en-us/themes/ideas"
	fetcher := &mapFetcher{pages: map[string]string{
		themeURL: "<html><body><p>challenge page</p></body></html>",
	}}
	s := fastScraper(Config{BaseURL: "https://test.example"}, fetcher, sink)

	sets, err := s.Sets(context.Background(), scrape.ThemeRecord{Name: "ideas", URL: themeURL})
	require.NoError(t, err)
	require.Empty(t, sets)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, filepath.Base(entries[0].Name()), "ideas_1")
}

func TestScraperSetsRespectsMaxPages(t *testing.T) {
	t.Parallel()

	themeURL := "https://test.example/en-us/themes/technic"
	many := `<html><body>`
	for i := 1; i <= 5; i++ {
		many += fmt.Sprintf(`<a data-test="pagination-page-%d" href="#">%d</a>`, i, i)
	}
	many += productTile("crane-42146", "Crane") + `</body></html>`

	pages := map[string]string{themeURL: many}
	for i := 2; i <= 5; i++ {
		pages[fmt.Sprintf("%s?page=%d", themeURL, i)] = `<html><body>` + productTile("crane-42146", "Crane") + `</body></html>`
	}
	fetcher := &mapFetcher{pages: pages}
	s := fastScraper(Config{BaseURL: "https://test.example", MaxPages: 2}, fetcher, nil)

	sets, err := s.Sets(context.Background(), scrape.ThemeRecord{Name: "technic", URL: themeURL})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	require.Len(t, fetcher.visits, 2)
}

func TestScraperSetsStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &mapFetcher{}
	s := fastScraper(Config{BaseURL: "https://test.example"}, fetcher, nil)
	_, err := s.Sets(ctx, scrape.ThemeRecord{Name: "city", URL: "https://test.example/en-us/themes/city"})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, fetcher.visits)
}
