package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/beacons")
	t.Setenv("BACKEND_URL", "https://api.example.com/v5")
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := validConfig(t)

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, 60*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.StaleEvictionWindow)
	assert.Equal(t, 5*time.Minute, cfg.EvictionSweepInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.HasIdentity())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "30s")
	t.Setenv("STALE_EVICTION_WINDOW", "600")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("USER_ID", "u1")
	t.Setenv("MOBILE_DEVICE_ID", "d1")
	cfg := validConfig(t)

	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 10*time.Minute, cfg.StaleEvictionWindow)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.True(t, cfg.HasIdentity())
}

func TestLoad_DebugForcesDebugLevel(t *testing.T) {
	t.Setenv("DEBUG", "true")
	cfg := validConfig(t)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("API_PORT", "eighty")
	t.Setenv("REFRESH_INTERVAL", "soon")
	cfg := validConfig(t)

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, 60*time.Second, cfg.RefreshInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing backend", func(c *Config) { c.BackendURL = "" }, "BACKEND_URL"},
		{"relative backend", func(c *Config) { c.BackendURL = "/api" }, "absolute URL"},
		{"bad port", func(c *Config) { c.APIPort = 0 }, "API_PORT"},
		{"zero sweep", func(c *Config) { c.RefreshSweepInterval = 0 }, "REFRESH_SWEEP_INTERVAL"},
		{"window not above refresh", func(c *Config) { c.StaleEvictionWindow = c.RefreshInterval }, "must exceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
