// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/brickscout/brickscout/internal/pacing"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Valuation ValuationConfig `mapstructure:"valuation"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	DB        DBConfig        `mapstructure:"db"`
	Export    ExportConfig    `mapstructure:"export"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// Level overrides the profile's default level when set ("debug", "info",
	// "warn", "error").
	Level string `mapstructure:"level"`
}

// ServerConfig controls the optional ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ScraperConfig holds knobs shared by all fetchers.
type ScraperConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	// Headless renders catalog pages in a browser; the retailer site builds
	// its listings client-side.
	Headless bool `mapstructure:"headless"`
}

// CatalogConfig governs the retailer theme/listing scrape.
type CatalogConfig struct {
	BaseURL         string  `mapstructure:"base_url"`
	ThemesPath      string  `mapstructure:"themes_path"`
	MaxPagesDefault int     `mapstructure:"max_pages_default"`
	RequestsPerSec  float64 `mapstructure:"requests_per_sec"`
	MinPieceCount   int     `mapstructure:"min_piece_count"`
}

// ValuationConfig governs the part-out valuation scrape.
type ValuationConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// PacingConfig exposes the adaptive governor knobs. Durations are
// milliseconds except the extended pause, which is seconds.
type PacingConfig struct {
	BaseDelayMs            int      `mapstructure:"base_delay_ms"`
	MinDelayMs             int      `mapstructure:"min_delay_ms"`
	MaxDelayMs             int      `mapstructure:"max_delay_ms"`
	JitterPercent          float64  `mapstructure:"jitter_percent"`
	BackoffMultiplier      float64  `mapstructure:"backoff_multiplier"`
	SuccessReductionFactor float64  `mapstructure:"success_reduction_factor"`
	MaxRequestsPerMinute   int      `mapstructure:"max_requests_per_minute"`
	MaxConsecutiveFailures int      `mapstructure:"max_consecutive_failures"`
	ExtendedPauseSeconds   int      `mapstructure:"extended_pause_seconds"`
	RateLimitStatusCodes   []int    `mapstructure:"rate_limit_status_codes"`
	RateLimitPhrases       []string `mapstructure:"rate_limit_phrases"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ExportConfig sets where CSV backups land.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// SnapshotConfig sets where debug HTML dumps land.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRICKSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36")
	v.SetDefault("scraper.timeout_seconds", 60)
	v.SetDefault("scraper.nav_timeout_seconds", 60)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("catalog.base_url", "https://www.lego.com")
	v.SetDefault("catalog.themes_path", "/en-us/themes")
	v.SetDefault("catalog.max_pages_default", 20)
	v.SetDefault("catalog.requests_per_sec", 0.5)
	v.SetDefault("catalog.min_piece_count", 10)
	v.SetDefault("valuation.base_url", "https://www.bricklink.com/catalogPOV.asp")
	v.SetDefault("pacing.base_delay_ms", 5000)
	v.SetDefault("pacing.min_delay_ms", 3000)
	v.SetDefault("pacing.max_delay_ms", 60000)
	v.SetDefault("pacing.jitter_percent", 0.2)
	v.SetDefault("pacing.backoff_multiplier", 2.0)
	v.SetDefault("pacing.success_reduction_factor", 0.9)
	v.SetDefault("pacing.max_requests_per_minute", 10)
	v.SetDefault("pacing.max_consecutive_failures", 3)
	v.SetDefault("pacing.extended_pause_seconds", 300)
	v.SetDefault("pacing.rate_limit_status_codes", []int{429, 503, 502, 504})
	v.SetDefault("pacing.rate_limit_phrases", []string{
		"rate limit",
		"too many requests",
		"temporarily unavailable",
		"service unavailable",
		"access denied",
		"blocked",
		"captcha",
		"please try again later",
	})
	v.SetDefault("export.dir", ".")
	v.SetDefault("snapshot.dir", "html_files")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Catalog.RequestsPerSec <= 0 {
		return fmt.Errorf("catalog.requests_per_sec must be > 0")
	}
	if c.Pacing.MinDelayMs > c.Pacing.MaxDelayMs {
		return fmt.Errorf("pacing.min_delay_ms must not exceed pacing.max_delay_ms")
	}
	if c.Pacing.JitterPercent < 0 || c.Pacing.JitterPercent >= 1 {
		return fmt.Errorf("pacing.jitter_percent must be in [0, 1)")
	}
	return nil
}

// PacingConfig converts the config section into the governor's knobs.
func (c Config) PacingConfig() pacing.Config {
	return pacing.Config{
		BaseDelay:              time.Duration(c.Pacing.BaseDelayMs) * time.Millisecond,
		MinDelay:               time.Duration(c.Pacing.MinDelayMs) * time.Millisecond,
		MaxDelay:               time.Duration(c.Pacing.MaxDelayMs) * time.Millisecond,
		JitterPercent:          c.Pacing.JitterPercent,
		BackoffMultiplier:      c.Pacing.BackoffMultiplier,
		SuccessReductionFactor: c.Pacing.SuccessReductionFactor,
		MaxRequestsPerMinute:   c.Pacing.MaxRequestsPerMinute,
		MaxConsecutiveFailures: c.Pacing.MaxConsecutiveFailures,
		ExtendedPause:          time.Duration(c.Pacing.ExtendedPauseSeconds) * time.Second,
		RateLimitStatusCodes:   c.Pacing.RateLimitStatusCodes,
		RateLimitPhrases:       c.Pacing.RateLimitPhrases,
	}
}

// FetchTimeout converts the scraper timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Scraper.NavTimeoutSeconds) * time.Second
}
