// Command beaconctl manages the beacon registry and replays scan batches
// against a running proximityd.
//
// Usage:
//
//	beaconctl beacons list
//	beaconctl beacons add --id lobby --uuid B9407F30-F5F8-466E-AFF9-25556B57FE6D --major 1 --minor 1 --name "Lobby"
//	beaconctl beacons remove --id lobby
//	beaconctl sightings send --file batch.json --api http://localhost:8000
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/beacon-proximity/internal/api/handler"
	"github.com/albapepper/beacon-proximity/internal/config"
	"github.com/albapepper/beacon-proximity/internal/db"
	"github.com/albapepper/beacon-proximity/internal/proximity"
	"github.com/albapepper/beacon-proximity/internal/registry"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "beaconctl",
		Short: "Beacon registry and scan replay CLI",
	}
	root.AddCommand(beaconsCmd())
	root.AddCommand(sightingsCmd())
	return root
}

// --------------------------------------------------------------------------
// beacons command
// --------------------------------------------------------------------------

func beaconsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beacons",
		Short: "Manage registered beacons",
	}
	cmd.AddCommand(beaconsListCmd())
	cmd.AddCommand(beaconsAddCmd())
	cmd.AddCommand(beaconsRemoveCmd())
	return cmd
}

func beaconsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered beacons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(func(ctx context.Context, store *registry.Store) error {
				beacons, err := store.ListBeacons(ctx)
				if err != nil {
					return err
				}
				return printBeacons(cmd.OutOrStdout(), beacons)
			})
		},
	}
}

func beaconsAddCmd() *cobra.Command {
	var (
		b            registry.Beacon
		major, minor uint16
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register or update a beacon",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := registry.NormalizeUUID(b.UUID)
			if err != nil {
				return err
			}
			b.UUID, b.Major, b.Minor = normalized, major, minor

			return runStore(func(ctx context.Context, store *registry.Store) error {
				if err := store.UpsertBeacon(ctx, b); err != nil {
					return err
				}
				logger.Info("Beacon registered", "id", b.ID, "uuid", b.UUID, "major", b.Major, "minor", b.Minor)
				return store.NotifyChanged(ctx, "upsert "+b.ID)
			})
		},
	}
	cmd.Flags().StringVar(&b.ID, "id", "", "Beacon device id reported to the backend")
	cmd.Flags().StringVar(&b.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&b.UUID, "uuid", "", "Proximity UUID")
	cmd.Flags().Uint16Var(&major, "major", 0, "Major value")
	cmd.Flags().Uint16Var(&minor, "minor", 0, "Minor value")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("uuid")
	_ = cmd.MarkFlagRequired("major")
	_ = cmd.MarkFlagRequired("minor")
	return cmd
}

func beaconsRemoveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a registered beacon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(func(ctx context.Context, store *registry.Store) error {
				ok, err := store.DeleteBeacon(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("beacon %q not found", id)
				}
				logger.Info("Beacon removed", "id", id)
				return store.NotifyChanged(ctx, "delete "+id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Beacon device id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printBeacons(w io.Writer, beacons []registry.Beacon) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUUID\tMAJOR\tMINOR\tUPDATED")
	for _, b := range beacons {
		updated := ""
		if !b.UpdatedAt.IsZero() {
			updated = b.UpdatedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", b.ID, b.Name, b.UUID, b.Major, b.Minor, updated)
	}
	return tw.Flush()
}

// --------------------------------------------------------------------------
// sightings command
// --------------------------------------------------------------------------

func sightingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sightings",
		Short: "Replay scan batches",
	}
	cmd.AddCommand(sightingsSendCmd())
	return cmd
}

func sightingsSendCmd() *cobra.Command {
	var file, apiURL string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post a sightings batch to a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read batch: %w", err)
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			res, err := sendBatch(ctx, http.DefaultClient, apiURL, data)
			if err != nil {
				return err
			}
			logger.Info("Batch delivered",
				"changed", res.Changed, "resolved", res.Resolved, "dropped", res.Dropped,
				"triggered", res.Triggered, "refreshed", res.Refreshed)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with {\"sightings\": [...]}")
	cmd.Flags().StringVar(&apiURL, "api", defaultAPIURL(), "Base URL of proximityd")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func defaultAPIURL() string {
	cfg, err := config.Load()
	if err != nil {
		return "http://localhost:8000"
	}
	return fmt.Sprintf("http://localhost:%d", cfg.APIPort)
}

// sendBatch validates data as a sightings batch and posts it.
func sendBatch(ctx context.Context, client *http.Client, apiURL string, data []byte) (proximity.CycleResult, error) {
	var batch handler.SightingsRequest
	if err := json.Unmarshal(data, &batch); err != nil {
		return proximity.CycleResult{}, fmt.Errorf("parse batch: %w", err)
	}
	if err := batch.Validate(); err != nil {
		return proximity.CycleResult{}, fmt.Errorf("parse batch: %w", err)
	}

	url := strings.TrimRight(apiURL, "/") + "/api/v1/sightings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return proximity.CycleResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return proximity.CycleResult{}, fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return proximity.CycleResult{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return proximity.CycleResult{}, fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res proximity.CycleResult
	if err := json.Unmarshal(body, &res); err != nil {
		return proximity.CycleResult{}, fmt.Errorf("decode response: %w", err)
	}
	return res, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func runStore(fn func(ctx context.Context, store *registry.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, registry.NewStore(pool.Pool))
}
