// Package collyfetcher implements scrape.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/brickscout/brickscout/internal/scrape"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
}

// Fetcher implements scrape.Fetcher using the Colly collector. It is used
// for the valuation site, which serves its data without JavaScript.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. A transport-level failure
// yields an error and no page; an HTTP error status yields a page with the
// status set, since the classifier needs to see it.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scrape.Page, error) {
	var (
		result   scrape.Page
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range f.cfg.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		result = pageFromResponse(r, start)
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// Keep the error page; status and body feed classification.
			result = pageFromResponse(r, start)
			return
		}
		fetchErr = err
	})

	type visitOutcome struct {
		page scrape.Page
		err  error
	}

	// result and fetchErr are written by the callbacks inside Visit and read
	// only here, before the send; the channel hands the outcome over so a
	// cancelled Fetch never shares them with the still-running goroutine.
	done := make(chan visitOutcome, 1)
	go func() {
		visitErr := collector.Visit(url)
		out := visitOutcome{page: result}
		switch {
		case fetchErr != nil:
			out.err = fmt.Errorf("colly response failed: %w", fetchErr)
		case result.HasStatus:
		case visitErr != nil:
			out.err = fmt.Errorf("colly visit failed: %w", visitErr)
		default:
			out.err = fmt.Errorf("colly visit produced no response")
		}
		done <- out
	}()

	select {
	case <-ctx.Done():
		return scrape.Page{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return scrape.Page{}, out.err
		}
		return out.page, nil
	}
}

func pageFromResponse(r *colly.Response, start time.Time) scrape.Page {
	return scrape.Page{
		URL:        r.Request.URL.String(),
		StatusCode: r.StatusCode,
		HasStatus:  true,
		Headers:    r.Headers.Clone(),
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(start),
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
