// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/proximityd and cmd/beaconctl.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database (beacon registry)
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool
	LogLevel    slog.Level

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Proximity event backend
	BackendURL               string
	BackendAPIKey            string
	BackendRequestsPerMinute int
	BackendTimeout           time.Duration

	// Identity events are attributed to
	UserID         string
	MobileDeviceID string

	// Trigger engine timings
	RefreshInterval        time.Duration
	StaleEvictionWindow    time.Duration
	RefreshSweepInterval   time.Duration
	EvictionSweepInterval  time.Duration
	RegistryReloadInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 5),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),
		LogLevel:    envLevel("LOG_LEVEL", slog.LevelInfo),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 600),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", 60*time.Second),

		BackendURL:               envOr("BACKEND_URL", ""),
		BackendAPIKey:            envOr("BACKEND_API_KEY", ""),
		BackendRequestsPerMinute: envInt("BACKEND_REQUESTS_PER_MINUTE", 600),
		BackendTimeout:           envDuration("BACKEND_TIMEOUT", 10*time.Second),

		UserID:         envOr("USER_ID", ""),
		MobileDeviceID: envOr("MOBILE_DEVICE_ID", ""),

		RefreshInterval:        envDuration("REFRESH_INTERVAL", 60*time.Second),
		StaleEvictionWindow:    envDuration("STALE_EVICTION_WINDOW", 5*time.Minute),
		RefreshSweepInterval:   envDuration("REFRESH_SWEEP_INTERVAL", 10*time.Second),
		EvictionSweepInterval:  envDuration("EVICTION_SWEEP_INTERVAL", 5*time.Minute),
		RegistryReloadInterval: envDuration("REGISTRY_RELOAD_INTERVAL", time.Minute),
	}
	if cfg.Debug {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

// Validate checks the settings the service needs to run.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL must be set")
	}
	if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL %q is not an absolute URL", c.BackendURL)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be in 1..65535")
	}
	durations := map[string]time.Duration{
		"REFRESH_INTERVAL":         c.RefreshInterval,
		"STALE_EVICTION_WINDOW":    c.StaleEvictionWindow,
		"REFRESH_SWEEP_INTERVAL":   c.RefreshSweepInterval,
		"EVICTION_SWEEP_INTERVAL":  c.EvictionSweepInterval,
		"REGISTRY_RELOAD_INTERVAL": c.RegistryReloadInterval,
		"BACKEND_TIMEOUT":          c.BackendTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.StaleEvictionWindow <= c.RefreshInterval {
		return fmt.Errorf("STALE_EVICTION_WINDOW (%s) must exceed REFRESH_INTERVAL (%s)",
			c.StaleEvictionWindow, c.RefreshInterval)
	}
	return nil
}

// HasIdentity reports whether events can be attributed to a user and device.
func (c *Config) HasIdentity() bool {
	return c.UserID != "" && c.MobileDeviceID != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s", "5m") or bare seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return lvl
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
