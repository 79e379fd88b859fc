package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.True(t, cfg.Logging.Development)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "https://www.lego.com", cfg.Catalog.BaseURL)
	require.Equal(t, 5000, cfg.Pacing.BaseDelayMs)
	require.Equal(t, 10, cfg.Pacing.MaxRequestsPerMinute)
	require.Equal(t, 300, cfg.Pacing.ExtendedPauseSeconds)
	require.True(t, cfg.Scraper.Headless)
	require.Contains(t, cfg.Pacing.RateLimitPhrases, "captcha")
	require.Contains(t, cfg.Pacing.RateLimitStatusCodes, 429)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
pacing:
  base_delay_ms: 2000
  max_requests_per_minute: 5
catalog:
  max_pages_default: 3
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2000, cfg.Pacing.BaseDelayMs)
	require.Equal(t, 5, cfg.Pacing.MaxRequestsPerMinute)
	require.Equal(t, 3, cfg.Catalog.MaxPagesDefault)
	// Untouched sections keep their defaults.
	require.Equal(t, 3000, cfg.Pacing.MinDelayMs)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadPacing(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Pacing.MinDelayMs = 10000
	cfg.Pacing.MaxDelayMs = 5000
	require.Error(t, cfg.Validate())

	cfg, err = Load("")
	require.NoError(t, err)
	cfg.Pacing.JitterPercent = 1.5
	require.Error(t, cfg.Validate())
}

func TestPacingConfigConversion(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	pc := cfg.PacingConfig()
	require.Equal(t, 5*time.Second, pc.BaseDelay)
	require.Equal(t, 3*time.Second, pc.MinDelay)
	require.Equal(t, time.Minute, pc.MaxDelay)
	require.Equal(t, 300*time.Second, pc.ExtendedPause)
}
