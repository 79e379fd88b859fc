// Package valuation drives the part-out valuation scrape: a strictly
// sequential loop over set numbers, paced by the adaptive governor.
package valuation

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brickscout/brickscout/internal/scrape"
)

// ParsePage extracts the part-out values from a valuation page. The values
// live in font cells: dollar rows carry the past-6-months figure first and
// the current-listings figure second, and "Including N Lots ... M Parts"
// rows carry the matching volumes. A page with no font cells yields nil,
// which the driver treats as a soft failure since an empty-but-200 page is
// how this site silently blocks.
func ParsePage(itemNumber string, body []byte) (*scrape.ValuationRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse valuation page: %w", err)
	}

	cells := doc.Find("font")
	if cells.Length() == 0 {
		return nil, nil
	}

	record := &scrape.ValuationRecord{ItemNumber: itemNumber}
	cells.Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if strings.Contains(text, "$") {
			if record.Past6Months == "" {
				record.Past6Months = text
			} else if record.CurrentListings == "" {
				record.CurrentListings = text
			}
		}
		if strings.Contains(text, "Including") {
			if volume, ok := parseVolume(text); ok {
				if record.Past6MonthsVolume == "" {
					record.Past6MonthsVolume = volume
				} else if record.CurrentVolume == "" {
					record.CurrentVolume = volume
				}
			}
		}
	})
	return record, nil
}

// parseVolume turns "Including N Lots of M Parts" into "N|M".
func parseVolume(text string) (string, bool) {
	parts := strings.Fields(text)
	if len(parts) < 5 {
		return "", false
	}
	return parts[1] + "|" + parts[4], true
}
