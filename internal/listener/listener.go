// Package listener provides a Postgres LISTEN/NOTIFY consumer for beacon
// registry changes. It holds a dedicated pgx connection (not from the pool)
// listening on the `beacons_changed` channel.
//
// beaconctl fires pg_notify after every registry write and this consumer
// reloads the in-memory registry so new beacons resolve immediately instead
// of waiting for the next periodic reload.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/beacon-proximity/internal/registry"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// ReloadFunc refreshes whatever caches depend on the beacon registry.
type ReloadFunc func(ctx context.Context) error

// Start opens a dedicated connection and listens on the beacons_changed
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, reload ReloadFunc, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, reload, logger)
		if ctx.Err() != nil {
			logger.Info("Registry listener stopped (context cancelled)")
			return
		}

		logger.Error("Registry listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = nextBackoff(backoff)
		case <-ctx.Done():
			return
		}
	}
}

func nextBackoff(b time.Duration) time.Duration {
	return min(b*2, maxReconnect)
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, reload ReloadFunc, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+registry.ChangedChannel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", registry.ChangedChannel, err)
	}
	logger.Info("Registry listener connected", "channel", registry.ChangedChannel)

	// Changes made while disconnected were not delivered.
	handle(ctx, "listener connected", reload, logger)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		handle(ctx, notification.Payload, reload, logger)
	}
}

// handle runs reload for one change notification. Errors are logged; the
// periodic reload ticker is the fallback.
func handle(ctx context.Context, reason string, reload ReloadFunc, logger *slog.Logger) {
	logger.Info("Registry change received", "reason", reason)
	if err := reload(ctx); err != nil {
		logger.Warn("Registry reload failed", "reason", reason, "error", err)
	}
}
