// Package headless contains fetchers that execute JavaScript via browsers.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/brickscout/brickscout/internal/scrape"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
}

// Interstitial selectors on the retailer site. Both gates redirect the
// browser before the listing renders, so they are dismissed in-page.
const (
	ageGateSelector       = `button[data-test="age-gate-grown-up-cta"]`
	cookieConsentSelector = `button[data-test="cookie-necessary-button"]`
)

// Fetcher implements scrape.Fetcher using chromedp and headless Chrome. The
// retailer's listing pages render client-side and sit behind age-gate and
// cookie-consent interstitials, which this fetcher clicks through.
type Fetcher struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a headless browser and returns the fully rendered
// DOM. Interstitial redirects are dismissed and the original URL re-visited
// before the DOM is captured.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scrape.Page, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			taskCancel()
		case <-stop:
		}
	}()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := f.runHeadless(taskCtx, url)
	if err != nil {
		return scrape.Page{}, err
	}

	status, headers := meta.snapshot()
	if headers == nil {
		headers = http.Header{}
	}
	if finalURL == "" {
		finalURL = url
	}

	return scrape.Page{
		URL:          finalURL,
		StatusCode:   status,
		HasStatus:    status > 0,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) runHeadless(ctx context.Context, url string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		f.dismissInterstitials(url, &finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

// dismissInterstitials clicks through the age gate or cookie modal when the
// navigation landed on one, then returns to the requested URL.
func (f *Fetcher) dismissInterstitials(url string, finalURL *string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var selector string
		switch {
		case strings.Contains(*finalURL, "age-gate"):
			selector = ageGateSelector
		case strings.Contains(*finalURL, "consent-modal"):
			selector = cookieConsentSelector
		default:
			return nil
		}

		dismiss := []chromedp.Action{
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.Click(selector, chromedp.ByQuery),
			chromedp.Sleep(time.Second),
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(500 * time.Millisecond),
			chromedp.Location(finalURL),
		}
		for _, action := range dismiss {
			if err := action.Do(ctx); err != nil {
				return fmt.Errorf("dismiss interstitial: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}
