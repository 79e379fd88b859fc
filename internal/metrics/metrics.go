// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal         *prometheus.CounterVec
	pagesTotal           *prometheus.CounterVec
	backoffsTotal        prometheus.Counter
	cooldownsTotal       prometheus.Counter
	throttleDelaySeconds prometheus.Histogram
	recordsUpsertedTotal *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brickscout_fetches_total",
				Help: "Fetch-and-classify outcomes, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brickscout_pages_total",
				Help: "Catalog pages scraped, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		backoffsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "brickscout_backoffs_total",
				Help: "Exponential backoff applications by the pacing governor.",
			},
		)

		cooldownsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "brickscout_extended_cooldowns_total",
				Help: "Extended cooldowns triggered by consecutive failures.",
			},
		)

		throttleDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "brickscout_throttle_delay_seconds",
				Help:    "Delays introduced by the per-minute request throttle.",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120},
			},
		)

		recordsUpsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brickscout_records_upserted_total",
				Help: "Records written to the store, labeled by table.",
			},
			[]string{"table"},
		)
	})
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetchOutcome counts one classified fetch.
func RecordFetchOutcome(site, outcome string) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(site, outcome).Inc()
}

// RecordPage counts one catalog page scrape.
func RecordPage(site, status string) {
	if pagesTotal == nil {
		return
	}
	pagesTotal.WithLabelValues(site, status).Inc()
}

// IncBackoff counts one backoff application.
func IncBackoff() {
	if backoffsTotal == nil {
		return
	}
	backoffsTotal.Inc()
}

// IncCooldown counts one extended cooldown.
func IncCooldown() {
	if cooldownsTotal == nil {
		return
	}
	cooldownsTotal.Inc()
}

// ObserveThrottleDelay records a throttle-induced wait.
func ObserveThrottleDelay(d time.Duration) {
	if throttleDelaySeconds == nil {
		return
	}
	throttleDelaySeconds.Observe(d.Seconds())
}

// RecordUpserts counts rows written to a table.
func RecordUpserts(table string, n int) {
	if recordsUpsertedTotal == nil || n <= 0 {
		return
	}
	recordsUpsertedTotal.WithLabelValues(table).Add(float64(n))
}
