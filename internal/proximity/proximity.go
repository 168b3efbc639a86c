// Package proximity classifies beacon sightings into proximity tiers and
// reports "entered proximity" events to the backend.
//
// Pipeline per scan cycle: resolve → classify → notify observers → trigger.
// Refresh and eviction sweeps run on their own tickers (see maintenance).
package proximity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultRefreshInterval     = 60 * time.Second
	defaultStaleEvictionWindow = 5 * time.Minute
	defaultCallTimeout         = 10 * time.Second
)

// ErrNoIdentity is returned by trigger and refresh passes when there is no
// user/device to attribute events to.
var ErrNoIdentity = errors.New("no identity context")

// ErrMissingTier is returned by RawSighting.Validate when no proximity tier
// was reported.
var ErrMissingTier = errors.New("missing proximity tier")

// --------------------------------------------------------------------------
// Tiers
// --------------------------------------------------------------------------

// Tier is a discrete proximity bucket.
type Tier int

const (
	TierImmediate Tier = iota
	TierNear
	TierFar
	TierUnknown

	numTiers = 4
)

// Tiers lists every tier in scan order.
var Tiers = [numTiers]Tier{TierImmediate, TierNear, TierFar, TierUnknown}

var tierNames = [numTiers]string{"immediate", "near", "far", "unknown"}

// Nominal distances reported to the backend, per tier.
var tierDistances = [numTiers]float64{0.5, 3.0, 50.0, 200.0}

// Distance returns the fixed nominal distance of the tier.
func (t Tier) Distance() float64 {
	if !t.valid() {
		return tierDistances[TierUnknown]
	}
	return tierDistances[t]
}

func (t Tier) String() string {
	if !t.valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) valid() bool {
	return t >= 0 && t < numTiers
}

// ParseTier accepts the lowercase tier names, case-insensitively.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return TierUnknown, fmt.Errorf("unknown proximity tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(tierNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// RawSighting is one beacon as reported by the ranging collaborator.
// Proximity is nil when the tier was not reported.
type RawSighting struct {
	UUID      string  `json:"uuid"`
	Major     uint16  `json:"major"`
	Minor     uint16  `json:"minor"`
	Proximity *Tier   `json:"proximity"`
	Accuracy  float64 `json:"accuracy"` // metres; negative when unknown
	RSSI      int     `json:"rssi"`
}

// Validate reports a sighting without a valid proximity tier.
func (r RawSighting) Validate() error {
	if r.Proximity == nil {
		return ErrMissingTier
	}
	if !r.Proximity.valid() {
		return fmt.Errorf("invalid tier %d", int(*r.Proximity))
	}
	return nil
}

// Sighting is a raw sighting resolved to a registered beacon device.
type Sighting struct {
	DeviceID   string    `json:"device_id"`
	Tier       Tier      `json:"tier"`
	Accuracy   float64   `json:"accuracy"`
	ObservedAt time.Time `json:"observed_at"`
}

// Record is the last acknowledged proximity event for a (tier, device) pair.
type Record struct {
	ID        string    `json:"id,omitempty"`
	DeviceID  string    `json:"device_id"`
	Tier      Tier      `json:"tier"`
	Distance  float64   `json:"distance"`
	CreatedAt time.Time `json:"created_at"`
}

// Transition is a device whose tier assignment changed during a cycle.
// From is empty when the device was not a member of any tier.
type Transition struct {
	DeviceID string
	From     []Tier
	To       Tier
}

// Departure is a device that left a tier without a new sighting.
type Departure struct {
	DeviceID string
	Tier     Tier
}

// Identity is the user and mobile device events are attributed to.
type Identity struct {
	UserID   string
	DeviceID string
}

// Ack is the backend's acknowledgment of a created proximity event.
type Ack struct {
	ID        string
	CreatedAt time.Time
}

// Config holds the engine's timing parameters.
type Config struct {
	RefreshInterval     time.Duration
	StaleEvictionWindow time.Duration
	CallTimeout         time.Duration
}

// DefaultConfig returns the production timings: refresh after 60s, evict
// after 5 minutes.
func DefaultConfig() Config {
	return Config{
		RefreshInterval:     defaultRefreshInterval,
		StaleEvictionWindow: defaultStaleEvictionWindow,
		CallTimeout:         defaultCallTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.StaleEvictionWindow <= 0 {
		c.StaleEvictionWindow = d.StaleEvictionWindow
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}
