// Command proximityd is the beacon proximity service: it accepts scan cycles,
// classifies beacons into proximity tiers, and reports tier entries to the
// proximity-event backend.
//
// Usage:
//
//	proximityd
//	API_PORT=8080 REFRESH_INTERVAL=30s proximityd

// @title Beacon Proximity API
// @version 1.0.0
// @description Classifies ranged beacons into proximity tiers and reports tier entries to the proximity-event backend.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/beacon-proximity/internal/api"
	"github.com/albapepper/beacon-proximity/internal/backend"
	"github.com/albapepper/beacon-proximity/internal/config"
	"github.com/albapepper/beacon-proximity/internal/db"
	"github.com/albapepper/beacon-proximity/internal/listener"
	"github.com/albapepper/beacon-proximity/internal/maintenance"
	"github.com/albapepper/beacon-proximity/internal/proximity"
	"github.com/albapepper/beacon-proximity/internal/registry"

	_ "github.com/albapepper/beacon-proximity/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Beacon registry
	reg := registry.New(registry.NewStore(pool.Pool), logger)
	if err := reg.Reload(ctx); err != nil {
		logger.Error("Failed to load beacon registry", "error", err)
		os.Exit(1)
	}

	// Proximity engine
	if !cfg.HasIdentity() {
		logger.Warn("USER_ID or MOBILE_DEVICE_ID not set, proximity events will not be sent")
	}
	client := backend.NewClient(cfg.BackendURL, cfg.BackendAPIKey,
		cfg.BackendRequestsPerMinute, cfg.BackendTimeout, logger)
	snapshot := proximity.NewSnapshot()
	engine := proximity.New(reg, client,
		proximity.StaticIdentity{UserID: cfg.UserID, DeviceID: cfg.MobileDeviceID},
		proximity.Config{
			RefreshInterval:     cfg.RefreshInterval,
			StaleEvictionWindow: cfg.StaleEvictionWindow,
			CallTimeout:         cfg.BackendTimeout,
		},
		proximity.WithLogger(logger),
		proximity.WithObserver(snapshot))

	// Start LISTEN/NOTIFY consumer for registry changes
	go listener.Start(ctx, cfg.DatabaseURL, reg.Reload, logger)

	// Start maintenance tickers (refresh, eviction, registry reload)
	maintenanceDone := make(chan struct{})
	go func() {
		defer close(maintenanceDone)
		maintenance.Start(ctx, engine, reg, maintenance.Config{
			RefreshInterval: cfg.RefreshSweepInterval,
			EvictInterval:   cfg.EvictionSweepInterval,
			ReloadInterval:  cfg.RegistryReloadInterval,
		}, logger)
	}()

	// Create router
	router := api.NewRouter(api.Deps{
		Engine:   engine,
		Snapshot: snapshot,
		Registry: reg,
		DB:       pool,
	}, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Beacon Proximity API",
			"addr", addr,
			"environment", cfg.Environment,
			"refresh_interval", cfg.RefreshInterval,
			"stale_eviction_window", cfg.StaleEvictionWindow,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	// No pass can start new backend calls once the server and sweeps are
	// down; in-flight calls are bounded by BACKEND_TIMEOUT.
	<-maintenanceDone
	engine.Wait()
	logger.Info("Server stopped")
}
