// Package backend is the HTTP client for the proximity-event API.
//
// Every request carries the api-key header. Rate limiting is handled via a
// token bucket limiter shared by all calls.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/albapepper/beacon-proximity/internal/proximity"
)

// ErrStatus is returned when the backend answers with a non-2xx status.
var ErrStatus = errors.New("unexpected backend status")

// Client creates proximity events on the backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a backend client with rate limiting.
func NewClient(baseURL, apiKey string, requestsPerMinute int, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), max(1, requestsPerMinute/60)),
		logger:     logger,
	}
}

// ProximityEvent is the wire form of a proximity event.
type ProximityEvent struct {
	ID        string  `json:"id,omitempty"`
	DeviceID  string  `json:"deviceId"`
	Distance  float64 `json:"distance"`
	CreatedAt int64   `json:"createdAt,omitempty"` // unix milliseconds
}

// CreateProximityEvent reports that beaconID is at distance from the mobile
// device deviceID owned by userID. Implements proximity.Creator.
func (c *Client) CreateProximityEvent(ctx context.Context, userID, deviceID, beaconID string, distance float64) (proximity.Ack, error) {
	path := fmt.Sprintf("/users/%s/devices/%s/proximity_events",
		url.PathEscape(userID), url.PathEscape(deviceID))

	var created ProximityEvent
	err := c.post(ctx, path, ProximityEvent{DeviceID: beaconID, Distance: distance}, &created)
	if err != nil {
		return proximity.Ack{}, err
	}

	ack := proximity.Ack{ID: created.ID}
	if created.CreatedAt > 0 {
		ack.CreatedAt = time.UnixMilli(created.CreatedAt)
	}
	return ack, nil
}

// post performs a rate-limited JSON POST and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("backend request",
		"path", path, "status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d: %s", ErrStatus, path, resp.StatusCode, truncate(body, 200))
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
