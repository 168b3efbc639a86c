// Package registry resolves beacon identities (UUID, major, minor) to the
// registered beacon device ids events are reported for.
//
// The registry keeps an in-memory snapshot loaded from a Source (Postgres in
// production). Lookups never touch the database.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidBeacon is returned for beacons with a missing id or malformed
// proximity UUID.
var ErrInvalidBeacon = errors.New("invalid beacon")

// Beacon is a registered beacon device.
type Beacon struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	UUID      string    `json:"uuid"`
	Major     uint16    `json:"major"`
	Minor     uint16    `json:"minor"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Source lists the registered beacons.
type Source interface {
	ListBeacons(ctx context.Context) ([]Beacon, error)
}

type beaconKey struct {
	uuid  uuid.UUID
	major uint16
	minor uint16
}

// Registry is a thread-safe snapshot of registered beacons.
type Registry struct {
	source Source
	logger *slog.Logger

	mu      sync.RWMutex
	byKey   map[beaconKey]string
	beacons []Beacon
	loaded  time.Time
}

// New creates an empty registry backed by source. Call Reload to populate.
func New(source Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		source: source,
		logger: logger,
		byKey:  make(map[beaconKey]string),
	}
}

// NewStatic creates a registry from a fixed beacon list.
func NewStatic(beacons []Beacon) (*Registry, error) {
	r := New(nil, nil)
	if err := r.replace(beacons); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the snapshot with the source's current beacon list.
// Invalid rows are skipped and logged.
func (r *Registry) Reload(ctx context.Context) error {
	if r.source == nil {
		return nil
	}
	beacons, err := r.source.ListBeacons(ctx)
	if err != nil {
		return fmt.Errorf("list beacons: %w", err)
	}

	valid := beacons[:0:0]
	for _, b := range beacons {
		if err := Validate(b); err != nil {
			r.logger.Warn("skipping invalid beacon", "beacon_id", b.ID, "error", err)
			continue
		}
		valid = append(valid, b)
	}
	if err := r.replace(valid); err != nil {
		return err
	}
	r.logger.Info("Beacon registry loaded", "count", len(valid))
	return nil
}

func (r *Registry) replace(beacons []Beacon) error {
	byKey := make(map[beaconKey]string, len(beacons))
	list := make([]Beacon, 0, len(beacons))
	for _, b := range beacons {
		u, err := uuid.Parse(b.UUID)
		if err != nil || b.ID == "" {
			return fmt.Errorf("%w: %q", ErrInvalidBeacon, b.ID)
		}
		b.UUID = u.String()
		byKey[beaconKey{u, b.Major, b.Minor}] = b.ID
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = byKey
	r.beacons = list
	r.loaded = time.Now()
	return nil
}

// Resolve returns the registered device id for a beacon identity. UUIDs
// compare case-insensitively; major and minor must match exactly.
func (r *Registry) Resolve(rawUUID string, major, minor uint16) (string, bool) {
	u, err := uuid.Parse(rawUUID)
	if err != nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[beaconKey{u, major, minor}]
	return id, ok
}

// Beacons returns the current snapshot ordered by id.
func (r *Registry) Beacons() []Beacon {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Beacon, len(r.beacons))
	copy(out, r.beacons)
	return out
}

// Stats returns registry statistics for health checks.
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := map[string]interface{}{
		"beacons": len(r.beacons),
	}
	if !r.loaded.IsZero() {
		stats["loaded_at"] = r.loaded.UTC().Format(time.RFC3339)
	}
	return stats
}

// Validate checks that b has an id and a well-formed proximity UUID.
func Validate(b Beacon) error {
	if b.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidBeacon)
	}
	if _, err := uuid.Parse(b.UUID); err != nil {
		return fmt.Errorf("%w: uuid %q: %v", ErrInvalidBeacon, b.UUID, err)
	}
	return nil
}

// NormalizeUUID returns the canonical lowercase form of a proximity UUID.
func NormalizeUUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: uuid %q: %v", ErrInvalidBeacon, s, err)
	}
	return u.String(), nil
}
