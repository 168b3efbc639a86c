// Package maintenance runs periodic background tasks as Go tickers: the
// refresh sweep, the stale eviction sweep, and the beacon registry reload.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	RefreshInterval time.Duration // Re-send events for records past the refresh interval
	EvictInterval   time.Duration // Drop stale records and silent members
	ReloadInterval  time.Duration // Reload the beacon registry from the database
}

// Sweeper is the engine surface the tickers drive.
type Sweeper interface {
	RefreshAll(ctx context.Context) (int, error)
	EvictStale() int
}

// Reloader refreshes the beacon registry.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled and every task in progress has returned, so no sweep runs after
// Start does. Intended to be called with `go`. reloader may be nil.
func Start(ctx context.Context, sweeper Sweeper, reloader Reloader, cfg Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Maintenance tickers started",
		"refresh", cfg.RefreshInterval,
		"evict", cfg.EvictInterval,
		"reload", cfg.ReloadInterval)

	var wg sync.WaitGroup
	tickers := make([]*time.Ticker, 0, 3)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	launch := func(interval time.Duration, fn func()) {
		t := time.NewTicker(interval)
		tickers = append(tickers, t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runLoop(ctx, t.C, fn)
		}()
	}

	if cfg.RefreshInterval > 0 {
		launch(cfg.RefreshInterval, func() { refresh(ctx, sweeper, logger) })
	}
	if cfg.EvictInterval > 0 {
		launch(cfg.EvictInterval, func() { sweeper.EvictStale() })
	}
	if cfg.ReloadInterval > 0 && reloader != nil {
		launch(cfg.ReloadInterval, func() { reload(ctx, reloader, logger) })
	}

	<-ctx.Done()
	wg.Wait()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// refresh runs one refresh sweep. Skipped passes are already logged by the
// engine.
func refresh(ctx context.Context, sweeper Sweeper, logger *slog.Logger) {
	if _, err := sweeper.RefreshAll(ctx); err != nil {
		logger.Debug("Refresh sweep skipped", "error", err)
	}
}

func reload(ctx context.Context, reloader Reloader, logger *slog.Logger) {
	if err := reloader.Reload(ctx); err != nil {
		logger.Warn("Registry reload failed, keeping previous snapshot", "error", err)
	}
}
