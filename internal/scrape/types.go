// Package scrape defines core types shared across subsystems.
package scrape

import (
	"net/http"
	"time"
)

// Page is the result returned by a Fetcher implementation.
type Page struct {
	URL          string
	StatusCode   int
	HasStatus    bool
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// ThemeRecord identifies one catalog theme discovered on the theme index.
type ThemeRecord struct {
	Name string `json:"theme_name"`
	URL  string `json:"theme_url"`
}

// SetRecord is extracted from one product tile on a theme listing page.
type SetRecord struct {
	Name         string   `json:"set_name"`
	ItemNumber   string   `json:"item_number"`
	MSRP         *float64 `json:"msrp"`
	SalePrice    *float64 `json:"sale_price"`
	Availability string   `json:"availability"`
	PieceCount   int      `json:"piece_count"`
	URL          string   `json:"url"`
}

// ValuationRecord holds the part-out values scraped for one set.
type ValuationRecord struct {
	ItemNumber        string `json:"item_number"`
	Past6Months       string `json:"pov_past_6_months"`
	Past6MonthsVolume string `json:"pov_past_6_months_volume"`
	CurrentListings   string `json:"pov_current_listings"`
	CurrentVolume     string `json:"pov_current_listings_volume"`
}

// RunCounters tracks per-stage success/failure stats for a pipeline run.
type RunCounters struct {
	Themes           int `json:"themes"`
	Sets             int `json:"sets"`
	ValuationsTried  int `json:"valuations_attempted"`
	ValuationsParsed int `json:"valuations_parsed"`
	RateLimited      int `json:"rate_limited"`
	SoftFailures     int `json:"soft_failures"`
	Cooldowns        int `json:"cooldowns"`
}
