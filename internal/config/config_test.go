package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "category_paths.txt", cfg.Scraper.InputFile)
	assert.Equal(t, "out", cfg.Scraper.OutputDir)
	assert.Equal(t, 3, cfg.Scraper.MaxWorkers)
	assert.Equal(t, 5, cfg.Scraper.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Scraper.BatchPause)
	assert.Equal(t, 15, cfg.Scraper.RetryAttempts)
	assert.True(t, cfg.Tor.Enabled)
	assert.Equal(t, 9050, cfg.Tor.SocksPort)
	assert.Equal(t, 9051, cfg.Tor.ControlPort)
	assert.Equal(t, 15*time.Second, cfg.Tor.IdentityWait)
	assert.Equal(t, 3*time.Second, cfg.Tor.PollInterval)
	assert.False(t, cfg.Tor.StrictRotation)
	assert.Equal(t, "127.0.0.1:9050", cfg.Tor.TorSocksAddr())
	assert.Equal(t, "127.0.0.1:9051", cfg.Tor.ControlAddr())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCRAPER_MAX_WORKERS", "8")
	t.Setenv("SCRAPER_BATCH_PAUSE", "250ms")
	t.Setenv("TOR_ENABLED", "false")
	t.Setenv("TOR_CONTROL_PASSWORD", "hunter2")
	t.Setenv("SCRAPER_REQUEST_RPS", "0.5")
	t.Setenv("SCRAPER_RETRY_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Scraper.MaxWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.Scraper.BatchPause)
	assert.False(t, cfg.Tor.Enabled)
	assert.Equal(t, "hunter2", cfg.Tor.ControlPassword)
	assert.InDelta(t, 0.5, cfg.Scraper.RequestsPerSecond, 1e-9)
	assert.Equal(t, 15, cfg.Scraper.RetryAttempts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero workers", func(c *Config) { c.Scraper.MaxWorkers = 0 }, "SCRAPER_MAX_WORKERS"},
		{"zero batch", func(c *Config) { c.Scraper.BatchSize = 0 }, "SCRAPER_BATCH_SIZE"},
		{"negative retries", func(c *Config) { c.Scraper.RetryAttempts = -1 }, "SCRAPER_RETRY_ATTEMPTS"},
		{"bad socks port", func(c *Config) { c.Tor.SocksPort = 70000 }, "TOR_SOCKS_PORT"},
		{"bad control port", func(c *Config) { c.Tor.ControlPort = 0 }, "TOR_CONTROL_PORT"},
		{"zero identity wait", func(c *Config) { c.Tor.IdentityWait = 0 }, "TOR_IDENTITY_WAIT"},
		{"empty input", func(c *Config) { c.Scraper.InputFile = " " }, "SCRAPER_INPUT_FILE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSkipsTorWhenDisabled(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Tor.Enabled = false
	cfg.Tor.ControlPort = 0
	assert.NoError(t, cfg.Validate())
}
