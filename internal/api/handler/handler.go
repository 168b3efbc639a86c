// Package handler provides HTTP handlers for all API endpoints.
// Handlers read engine state directly; the engine owns all locking.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/albapepper/beacon-proximity/internal/api/respond"
	"github.com/albapepper/beacon-proximity/internal/proximity"
)

// Engine is the proximity engine surface the handlers use.
type Engine interface {
	DeliverSightings(ctx context.Context, raw []proximity.RawSighting) proximity.CycleResult
	Members(tier proximity.Tier) []string
	Records() []proximity.Record
	Stats() map[string]interface{}
}

// Snapshot exposes the latest cycle's observer output.
type Snapshot interface {
	Closest() (proximity.Sighting, bool)
	Detected() []proximity.Sighting
}

// StatsSource reports counters for health output.
type StatsSource interface {
	Stats() map[string]interface{}
}

// HealthChecker verifies a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	engine   Engine
	snapshot Snapshot
	registry StatsSource
	db       HealthChecker
}

// New creates a Handler with shared dependencies. registry and db may be nil.
func New(engine Engine, snapshot Snapshot, registry StatsSource, db HealthChecker) *Handler {
	return &Handler{
		engine:   engine,
		snapshot: snapshot,
		registry: registry,
		db:       db,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Beacon Proximity API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.db == nil || h.db.HealthCheck(r.Context()) != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckEngine returns engine and registry statistics.
// @Summary Engine health check
// @Description Returns tier membership, trigger cache, and registry counts.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/engine [get]
func (h *Handler) HealthCheckEngine(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "healthy",
		"engine":    h.engine.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.registry != nil {
		body["registry"] = h.registry.Stats()
	}
	respond.WriteJSONObject(w, http.StatusOK, body)
}
