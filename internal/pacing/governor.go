// Package pacing implements the adaptive request pacing policy used while
// scraping the part-out valuation site. A Governor owns the adaptive delay,
// a rolling per-minute request window, and a consecutive-failure counter.
// It assumes a single goroutine drives it: one fetch in flight at a time.
package pacing

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/brickscout/brickscout/internal/clock/system"
	"github.com/brickscout/brickscout/internal/scrape"
)

// Config holds the tunable pacing knobs. Zero values are replaced by the
// defaults from DefaultConfig at construction, except JitterPercent, where
// zero disables jitter.
type Config struct {
	BaseDelay              time.Duration
	MinDelay               time.Duration
	MaxDelay               time.Duration
	JitterPercent          float64
	BackoffMultiplier      float64
	SuccessReductionFactor float64
	MaxRequestsPerMinute   int
	MaxConsecutiveFailures int
	ExtendedPause          time.Duration
	RateLimitStatusCodes   []int
	RateLimitPhrases       []string
}

// DefaultConfig returns the pacing knobs tuned for the valuation site.
func DefaultConfig() Config {
	return Config{
		BaseDelay:              5 * time.Second,
		MinDelay:               3 * time.Second,
		MaxDelay:               60 * time.Second,
		JitterPercent:          0.2,
		BackoffMultiplier:      2.0,
		SuccessReductionFactor: 0.9,
		MaxRequestsPerMinute:   10,
		MaxConsecutiveFailures: 3,
		ExtendedPause:          300 * time.Second,
		RateLimitStatusCodes:   []int{429, 503, 502, 504},
		RateLimitPhrases: []string{
			"rate limit",
			"too many requests",
			"temporarily unavailable",
			"service unavailable",
			"access denied",
			"blocked",
			"captcha",
			"please try again later",
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MinDelay <= 0 {
		c.MinDelay = def.MinDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	// Zero is a valid jitter setting (no jitter); only negative means unset.
	if c.JitterPercent < 0 {
		c.JitterPercent = def.JitterPercent
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	if c.SuccessReductionFactor <= 0 || c.SuccessReductionFactor >= 1 {
		c.SuccessReductionFactor = def.SuccessReductionFactor
	}
	if c.MaxRequestsPerMinute <= 0 {
		c.MaxRequestsPerMinute = def.MaxRequestsPerMinute
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if c.ExtendedPause <= 0 {
		c.ExtendedPause = def.ExtendedPause
	}
	if len(c.RateLimitStatusCodes) == 0 {
		c.RateLimitStatusCodes = def.RateLimitStatusCodes
	}
	if len(c.RateLimitPhrases) == 0 {
		c.RateLimitPhrases = def.RateLimitPhrases
	}
	return c
}

const throttleWindow = time.Minute

// Governor adapts the wait between fetches based on observed outcomes and
// enforces a hard cap on requests per rolling minute. Not safe for
// concurrent use; the driver loop owns it for the lifetime of one run.
type Governor struct {
	cfg    Config
	clock  scrape.Clock
	pauser PauseController

	currentDelay        time.Duration
	requestTimestamps   []time.Time
	consecutiveFailures int
}

// New builds a Governor with a wall clock and timer-based pauses.
func New(cfg Config) *Governor {
	return NewWithClock(cfg, system.New(), &timerPauseController{})
}

// NewWithClock builds a Governor with injected time sources (primarily for
// testing).
func NewWithClock(cfg Config, clk scrape.Clock, pauser PauseController) *Governor {
	cfg = cfg.withDefaults()
	if clk == nil {
		clk = system.New()
	}
	if pauser == nil {
		pauser = &timerPauseController{}
	}
	return &Governor{
		cfg:          cfg,
		clock:        clk,
		pauser:       pauser,
		currentDelay: cfg.BaseDelay,
	}
}

// Config returns the effective configuration after defaulting.
func (g *Governor) Config() Config {
	return g.cfg
}

// CurrentDelay returns the adaptive baseline delay, before jitter.
func (g *Governor) CurrentDelay() time.Duration {
	return g.currentDelay
}

// ConsecutiveFailures returns the current failure streak length.
func (g *Governor) ConsecutiveFailures() int {
	return g.consecutiveFailures
}

// Wait blocks until the next fetch may be issued. The per-minute throttle is
// enforced first so a fast-recovering adaptive delay can never exceed the
// hard cap, then the jittered adaptive delay is applied. Returns the
// context error if canceled mid-wait.
func (g *Governor) Wait(ctx context.Context) error {
	if err := g.waitForThrottle(ctx); err != nil {
		return err
	}
	g.pauser.Pause(ctx, g.Delay())
	return ctx.Err()
}

// waitForThrottle prunes the rolling window, blocks while the window is at
// capacity, and records the issuance timestamp.
func (g *Governor) waitForThrottle(ctx context.Context) error {
	now := g.clock.Now()
	g.pruneWindow(now)

	if len(g.requestTimestamps) >= g.cfg.MaxRequestsPerMinute {
		oldest := g.requestTimestamps[0]
		if wait := oldest.Add(throttleWindow).Sub(now); wait > 0 {
			g.pauser.Pause(ctx, wait)
			if err := ctx.Err(); err != nil {
				return err
			}
			g.pruneWindow(g.clock.Now())
		}
	}

	g.requestTimestamps = append(g.requestTimestamps, g.clock.Now())
	return nil
}

func (g *Governor) pruneWindow(now time.Time) {
	cutoff := now.Add(-throttleWindow)
	keep := g.requestTimestamps[:0]
	for _, ts := range g.requestTimestamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	g.requestTimestamps = keep
}

// Delay returns the adaptive delay with symmetric random jitter applied,
// clamped into [MinDelay, MaxDelay]. It does not mutate state.
func (g *Governor) Delay() time.Duration {
	jitterRange := time.Duration(float64(g.currentDelay) * g.cfg.JitterPercent)
	delay := g.currentDelay + randomOffset(jitterRange)
	return clampDuration(delay, g.cfg.MinDelay, g.cfg.MaxDelay)
}

// RecordSuccess shrinks the adaptive delay toward MinDelay and resets the
// failure streak.
func (g *Governor) RecordSuccess() {
	reduced := time.Duration(float64(g.currentDelay) * g.cfg.SuccessReductionFactor)
	g.currentDelay = clampDuration(reduced, g.cfg.MinDelay, g.cfg.MaxDelay)
	g.consecutiveFailures = 0
}

// RecordFailure applies exponential backoff up to MaxDelay and extends the
// failure streak.
func (g *Governor) RecordFailure() {
	grown := time.Duration(float64(g.currentDelay) * g.cfg.BackoffMultiplier)
	g.currentDelay = clampDuration(grown, g.cfg.MinDelay, g.cfg.MaxDelay)
	g.consecutiveFailures++
}

// ShouldPauseExtended reports whether the failure streak has reached the
// extended-cooldown threshold.
func (g *Governor) ShouldPauseExtended() bool {
	return g.consecutiveFailures >= g.cfg.MaxConsecutiveFailures
}

// CooldownIfNeeded suspends for the extended pause when the failure streak
// warrants it, then fully resets the adaptive state. Sustained failure means
// the adaptive delay has drifted somewhere unreliable, so recovery starts
// over from BaseDelay rather than unwinding gradually. Returns whether a
// cooldown fired.
func (g *Governor) CooldownIfNeeded(ctx context.Context) (bool, error) {
	if !g.ShouldPauseExtended() {
		return false, nil
	}
	g.pauser.Pause(ctx, g.cfg.ExtendedPause)
	g.currentDelay = g.cfg.BaseDelay
	g.consecutiveFailures = 0
	return true, ctx.Err()
}

func clampDuration(d, minimum, maximum time.Duration) time.Duration {
	if d < minimum {
		return minimum
	}
	if d > maximum {
		return maximum
	}
	return d
}

// randomOffset draws a uniform value in [-limit, limit].
func randomOffset(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(2*limit) + 1)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64()) - limit
}
