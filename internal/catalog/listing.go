package catalog

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brickscout/brickscout/internal/scrape"
)

// ListingPage is the parsed form of one theme listing page.
type ListingPage struct {
	Sets []scrape.SetRecord
	// PageCount is the number of pagination links; only the first page of a
	// theme carries meaningful pagination.
	PageCount int
}

// ParseListing extracts product tiles and the pagination size from a theme
// listing page.
func ParseListing(baseURL string, body []byte) (ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ListingPage{}, fmt.Errorf("parse listing page: %w", err)
	}

	page := ListingPage{
		PageCount: doc.Find(`a[data-test*="pagination-page"]`).Length(),
	}
	if page.PageCount == 0 {
		page.PageCount = 1
	}

	doc.Find(`li[data-test="product-item"]`).Each(func(_ int, sel *goquery.Selection) {
		if record, ok := parseProductTile(baseURL, sel); ok {
			page.Sets = append(page.Sets, record)
		}
	})
	return page, nil
}

// parseProductTile extracts one SetRecord from a product tile. Tiles that
// are ads or carry no product link are dropped.
func parseProductTile(baseURL string, sel *goquery.Selection) (scrape.SetRecord, bool) {
	href, ok := sel.Find("a").First().Attr("href")
	if !ok || href == "" {
		return scrape.SetRecord{}, false
	}
	// Non-product tiles and campaign placements sneak into the grid.
	if !strings.Contains(href, "product") || strings.Contains(href, "?icmp=") {
		return scrape.SetRecord{}, false
	}

	productURL := absoluteURL(baseURL, href)
	record := scrape.SetRecord{
		URL:        productURL,
		ItemNumber: itemNumberFromURL(productURL),
		Name:       "Unknown",
	}
	if name := strings.TrimSpace(sel.Find("h3").First().Text()); name != "" {
		record.Name = name
	}
	record.Availability = "Unknown"
	if avail := strings.TrimSpace(sel.Find(`div[data-test="product-leaf-action-row"]`).First().Text()); avail != "" {
		record.Availability = avail
	}

	priceText := strings.TrimSpace(sel.Find(`div[class^="ProductLeaf_priceRow"]`).First().Text())
	record.MSRP, record.SalePrice = ParsePriceRow(priceText)

	record.PieceCount = parsePieceCount(sel, record.Name)
	return record, true
}

func parsePieceCount(sel *goquery.Selection, name string) int {
	// Key chains never list a piece count.
	if strings.Contains(name, "Key Chain") {
		return 1
	}
	text := strings.TrimSpace(sel.Find(`span[data-test="product-leaf-piece-count-label"]`).First().Text())
	if text == "" {
		return 0
	}
	count, err := strconv.Atoi(strings.ReplaceAll(text, ",", ""))
	if err != nil {
		return 0
	}
	return count
}

func itemNumberFromURL(url string) string {
	idx := strings.LastIndex(url, "-")
	if idx < 0 || idx == len(url)-1 {
		return ""
	}
	return url[idx+1:]
}

// BuildPageURL appends the page parameter to a theme URL, respecting any
// query string already present.
func BuildPageURL(themeURL string, pageNumber int) string {
	sep := "?"
	if strings.Contains(themeURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", themeURL, sep, pageNumber)
}
