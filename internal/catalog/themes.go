// Package catalog scrapes the retailer's theme index and per-theme product
// listings.
package catalog

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brickscout/brickscout/internal/scrape"
)

// ParseThemes extracts the theme list from the theme index page. The primary
// selector is the data-test attribute; when the page ships without it the
// generic /themes/ link shape is used instead.
func ParseThemes(baseURL string, body []byte) ([]scrape.ThemeRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse theme index: %w", err)
	}

	anchors := doc.Find(`a[data-test="themes-link"][href]`)
	if anchors.Length() == 0 {
		anchors = doc.Find(`a[href*="/themes/"]`).FilterFunction(func(_ int, sel *goquery.Selection) bool {
			href, _ := sel.Attr("href")
			return strings.Count(href, "/") >= 3
		})
	}

	seen := make(map[string]struct{})
	themes := make([]scrape.ThemeRecord, 0, anchors.Length())
	anchors.Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		name := themeNameFromHref(href)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		themes = append(themes, scrape.ThemeRecord{
			Name: name,
			URL:  absoluteURL(baseURL, href),
		})
	})
	return themes, nil
}

func themeNameFromHref(href string) string {
	trimmed := strings.TrimRight(href, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return ""
	}
	return trimmed[idx+1:]
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return baseURL + href
}
