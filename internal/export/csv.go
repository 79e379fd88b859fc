// Package export writes scraped records to CSV files for offline analysis.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/brickscout/brickscout/internal/scrape"
)

const (
	// ThemesFile lists every theme discovered on the theme index.
	ThemesFile = "themes_list.csv"
	// SetsFile holds one row per product tile across all themes.
	SetsFile = "store_overview.csv"
	// ValuationsFile holds the part-out values per item number.
	ValuationsFile = "pov.csv"
)

// Writer persists records as CSV files under a single directory.
type Writer struct {
	dir string
}

// NewWriter creates the export directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("export dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// WriteThemes writes the theme list, replacing any previous file.
func (w *Writer) WriteThemes(themes []scrape.ThemeRecord) error {
	rows := make([][]string, 0, len(themes)+1)
	rows = append(rows, []string{"theme_name", "theme_url"})
	for _, theme := range themes {
		rows = append(rows, []string{theme.Name, theme.URL})
	}
	return w.writeFile(ThemesFile, rows)
}

// WriteSets writes the full set overview, replacing any previous file.
func (w *Writer) WriteSets(sets []scrape.SetRecord) error {
	rows := make([][]string, 0, len(sets)+1)
	rows = append(rows, []string{
		"set_name", "item_number", "msrp", "sale_price", "availability", "piece_count", "url",
	})
	for _, set := range sets {
		rows = append(rows, []string{
			set.Name,
			set.ItemNumber,
			formatPrice(set.MSRP),
			formatPrice(set.SalePrice),
			set.Availability,
			strconv.Itoa(set.PieceCount),
			set.URL,
		})
	}
	return w.writeFile(SetsFile, rows)
}

// WriteValuations writes the part-out values, replacing any previous file.
func (w *Writer) WriteValuations(valuations []scrape.ValuationRecord) error {
	rows := make([][]string, 0, len(valuations)+1)
	rows = append(rows, []string{
		"item_number", "pov_past_6_months", "pov_past_6_months_volume",
		"pov_current_listings", "pov_current_listings_volume",
	})
	for _, v := range valuations {
		rows = append(rows, []string{
			v.ItemNumber, v.Past6Months, v.Past6MonthsVolume, v.CurrentListings, v.CurrentVolume,
		})
	}
	return w.writeFile(ValuationsFile, rows)
}

// ReadThemes loads a previously exported theme list, used as a fallback
// when the theme index cannot be scraped.
func (w *Writer) ReadThemes() ([]scrape.ThemeRecord, error) {
	f, err := os.Open(filepath.Join(w.dir, ThemesFile))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ThemesFile, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ThemesFile, err)
	}
	themes := make([]scrape.ThemeRecord, 0, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) < 2 {
			continue
		}
		themes = append(themes, scrape.ThemeRecord{Name: rec[0], URL: rec[1]})
	}
	return themes, nil
}

// ReadSets loads a previously exported set overview so a valuation run can
// start from it without re-scraping the catalog.
func (w *Writer) ReadSets() ([]scrape.SetRecord, error) {
	f, err := os.Open(filepath.Join(w.dir, SetsFile))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", SetsFile, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SetsFile, err)
	}
	sets := make([]scrape.SetRecord, 0, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) < 7 {
			continue
		}
		pieces, _ := strconv.Atoi(rec[5])
		sets = append(sets, scrape.SetRecord{
			Name:         rec[0],
			ItemNumber:   rec[1],
			MSRP:         parsePrice(rec[2]),
			SalePrice:    parsePrice(rec[3]),
			Availability: rec[4],
			PieceCount:   pieces,
			URL:          rec[6],
		})
	}
	return sets, nil
}

func (w *Writer) writeFile(name string, rows [][]string) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return f.Close()
}

func formatPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
