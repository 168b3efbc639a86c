package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/beacon-proximity/internal/config"
	"github.com/albapepper/beacon-proximity/internal/proximity"
	"github.com/albapepper/beacon-proximity/internal/registry"
)

const lobbyUUID = "b9407f30-f5f8-466e-aff9-25556b57fe6d"

type stubCreator struct {
	mu    sync.Mutex
	calls int
}

func (s *stubCreator) CreateProximityEvent(context.Context, string, string, string, float64) (proximity.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return proximity.Ack{ID: "evt"}, nil
}

type stubDB struct{ err error }

func (s stubDB) HealthCheck(context.Context) error { return s.err }

type testServer struct {
	router  http.Handler
	engine  *proximity.Engine
	creator *stubCreator
}

func newTestServer(t *testing.T, db stubDB, rateLimit bool) *testServer {
	t.Helper()
	reg, err := registry.NewStatic([]registry.Beacon{
		{ID: "B1", UUID: lobbyUUID, Major: 1, Minor: 1},
		{ID: "B2", UUID: lobbyUUID, Major: 1, Minor: 2},
	})
	require.NoError(t, err)

	creator := &stubCreator{}
	snap := proximity.NewSnapshot()
	engine := proximity.New(reg, creator,
		proximity.StaticIdentity{UserID: "user-1", DeviceID: "phone-1"},
		proximity.Config{CallTimeout: time.Second},
		proximity.WithObserver(snap),
		proximity.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	cfg := &config.Config{
		CORSAllowOrigins:  []string{"http://localhost:3000"},
		RateLimitEnabled:  rateLimit,
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	}
	router := NewRouter(Deps{Engine: engine, Snapshot: snap, Registry: reg, DB: db}, cfg)
	return &testServer{router: router, engine: engine, creator: creator}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

const batch = `{"sightings":[
	{"uuid":"B9407F30-F5F8-466E-AFF9-25556B57FE6D","major":1,"minor":1,"proximity":"near","accuracy":2.1,"rssi":-70},
	{"uuid":"B9407F30-F5F8-466E-AFF9-25556B57FE6D","major":1,"minor":2,"proximity":"immediate","accuracy":0.4,"rssi":-50},
	{"uuid":"B9407F30-F5F8-466E-AFF9-25556B57FE6D","major":9,"minor":9,"proximity":"far","accuracy":9,"rssi":-90}
]}`

func TestPostSightings_RunsCycle(t *testing.T) {
	s := newTestServer(t, stubDB{}, false)

	rec := s.do(t, http.MethodPost, "/api/v1/sightings", batch)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	var res proximity.CycleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.Resolved)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 2, res.Triggered)
	require.NotNil(t, res.Closest)
	assert.Equal(t, "B2", res.Closest.DeviceID)

	s.engine.Wait()

	rec = s.do(t, http.MethodGet, "/api/v1/beacons", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"immediate":["B2"],"near":["B1"],"far":[],"unknown":[]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/triggers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []proximity.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 2)
	assert.Equal(t, 2, s.creator.calls)
}

func TestPostSightings_BadBody(t *testing.T) {
	s := newTestServer(t, stubDB{}, false)

	for _, body := range []string{
		`{not json`,
		`{"sightings":[{"uuid":"x","major":1,"minor":1,"proximity":"sideways"}]}`,
		`{"sightings":[{"uuid":"B9407F30-F5F8-466E-AFF9-25556B57FE6D","major":1,"minor":1,"accuracy":30}]}`,
	} {
		rec := s.do(t, http.MethodPost, "/api/v1/sightings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "INVALID_BATCH")
	}

	s.engine.Wait()
	assert.Zero(t, s.creator.calls, "rejected batches send nothing")
	rec := s.do(t, http.MethodGet, "/api/v1/beacons/immediate", "")
	assert.JSONEq(t, `{"tier":"immediate","devices":[]}`, rec.Body.String())
}

func TestGetTier(t *testing.T) {
	s := newTestServer(t, stubDB{}, false)
	s.do(t, http.MethodPost, "/api/v1/sightings", batch)
	s.engine.Wait()

	rec := s.do(t, http.MethodGet, "/api/v1/beacons/NEAR", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tier":"near","devices":["B1"]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/beacons/sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TIER")
}

func TestClosestAndDetected(t *testing.T) {
	s := newTestServer(t, stubDB{}, false)

	rec := s.do(t, http.MethodGet, "/api/v1/beacons/closest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/beacons/detected", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	s.do(t, http.MethodPost, "/api/v1/sightings", batch)
	s.engine.Wait()

	rec = s.do(t, http.MethodGet, "/api/v1/beacons/closest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var closest proximity.Sighting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closest))
	assert.Equal(t, "B2", closest.DeviceID)
	assert.Equal(t, proximity.TierImmediate, closest.Tier)

	rec = s.do(t, http.MethodGet, "/api/v1/beacons/detected", "")
	var detected []proximity.Sighting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detected))
	assert.Len(t, detected, 2)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, stubDB{}, false)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/db", "").Code)

	rec := s.do(t, http.MethodGet, "/health/engine", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"registry"`)
	assert.Contains(t, rec.Body.String(), `"records"`)

	down := newTestServer(t, stubDB{err: errors.New("down")}, false)
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/health/db", "").Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, stubDB{}, true)

	// burst is requests/2 = 1
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").Code)
	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
