package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ChangedChannel is the Postgres NOTIFY channel used to signal registry
// changes to running services.
const ChangedChannel = "beacons_changed"

// DBTX is the subset of pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists registered beacons in the beacons table.
type Store struct {
	db DBTX
}

// NewStore creates a store over a pool or connection.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// schema creates the beacons table. It is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS beacons (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	uuid       UUID NOT NULL,
	major      INTEGER NOT NULL CHECK (major BETWEEN 0 AND 65535),
	minor      INTEGER NOT NULL CHECK (minor BETWEEN 0 AND 65535),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (uuid, major, minor)
)`

// EnsureSchema creates the beacons table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create beacons table: %w", err)
	}
	return nil
}

// ListBeacons implements Source.
func (s *Store) ListBeacons(ctx context.Context) ([]Beacon, error) {
	rows, err := s.db.Query(ctx, "list_beacons")
	if err != nil {
		return nil, fmt.Errorf("query beacons: %w", err)
	}
	defer rows.Close()

	var beacons []Beacon
	for rows.Next() {
		var (
			b            Beacon
			major, minor int32
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.UUID, &major, &minor, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan beacon: %w", err)
		}
		b.Major, b.Minor = uint16(major), uint16(minor)
		beacons = append(beacons, b)
	}
	return beacons, rows.Err()
}

// UpsertBeacon inserts or updates a beacon by id.
func (s *Store) UpsertBeacon(ctx context.Context, b Beacon) error {
	if err := Validate(b); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, "upsert_beacon", b.ID, b.Name, b.UUID, int32(b.Major), int32(b.Minor))
	if err != nil {
		return fmt.Errorf("upsert beacon %s: %w", b.ID, err)
	}
	return nil
}

// DeleteBeacon removes a beacon. Returns false if it did not exist.
func (s *Store) DeleteBeacon(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, "delete_beacon", id)
	if err != nil {
		return false, fmt.Errorf("delete beacon %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// NotifyChanged signals listeners that the registry changed.
func (s *Store) NotifyChanged(ctx context.Context, reason string) error {
	if _, err := s.db.Exec(ctx, "SELECT pg_notify($1, $2)", ChangedChannel, reason); err != nil {
		return fmt.Errorf("notify %s: %w", ChangedChannel, err)
	}
	return nil
}

// PreparedStatements returns the named statements the store relies on.
// They are registered on every pool connection.
func PreparedStatements() map[string]string {
	return map[string]string{
		"list_beacons":  "SELECT id, name, uuid::text, major, minor, updated_at FROM beacons ORDER BY id",
		"upsert_beacon": "INSERT INTO beacons (id, name, uuid, major, minor) VALUES ($1, $2, $3::uuid, $4, $5) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, uuid = EXCLUDED.uuid, major = EXCLUDED.major, minor = EXCLUDED.minor, updated_at = NOW()",
		"delete_beacon": "DELETE FROM beacons WHERE id = $1",
	}
}
