package pacing

import (
	"bytes"
	"fmt"

	"github.com/brickscout/brickscout/internal/scrape"
)

// Outcome classifies one fetch against the valuation site.
type Outcome string

// Outcome values fed back into the Governor by the driver loop.
const (
	// OutcomeSuccess means the page yielded a parsable record.
	OutcomeSuccess Outcome = "success"
	// OutcomeSoftFailure means the fetch or parse missed without any
	// systemic blocking signal.
	OutcomeSoftFailure Outcome = "soft_failure"
	// OutcomeRateLimited means the server signaled throttling or blocking,
	// via status code or page content.
	OutcomeRateLimited Outcome = "rate_limited"
)

// Classifier detects rate limiting from HTTP status codes and page content.
// Many anti-scraping systems answer HTTP 200 with a challenge or empty body
// instead of an honest error code, so the phrase scan complements the status
// check rather than duplicating it.
type Classifier struct {
	statusCodes map[int]struct{}
	phrases     [][]byte
}

// NewClassifier builds a Classifier from a status block-list and a set of
// content phrases. The phrase list is a heuristic with a nonzero
// false-positive rate; keep it configurable rather than hard-coded.
func NewClassifier(statusCodes []int, phrases []string) *Classifier {
	codes := make(map[int]struct{}, len(statusCodes))
	for _, code := range statusCodes {
		codes[code] = struct{}{}
	}
	lowered := make([][]byte, 0, len(phrases))
	for _, p := range phrases {
		if p == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(p)))
	}
	return &Classifier{statusCodes: codes, phrases: lowered}
}

// DetectRateLimit reports whether the page indicates throttling or blocking,
// and why. Status is consulted only when the fetch produced one.
func (c *Classifier) DetectRateLimit(page scrape.Page) (bool, string) {
	if page.HasStatus {
		if _, ok := c.statusCodes[page.StatusCode]; ok {
			return true, fmt.Sprintf("http %d rate limit status", page.StatusCode)
		}
		if page.StatusCode >= 400 {
			return true, fmt.Sprintf("http %d error status", page.StatusCode)
		}
	}
	if len(page.Body) == 0 || len(c.phrases) == 0 {
		return false, ""
	}
	lowerBody := bytes.ToLower(page.Body)
	for _, phrase := range c.phrases {
		if bytes.Contains(lowerBody, phrase) {
			return true, fmt.Sprintf("content contains %q", string(phrase))
		}
	}
	return false, ""
}
