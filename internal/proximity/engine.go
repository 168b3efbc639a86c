package proximity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Resolver maps a beacon identity to a registered beacon device id.
type Resolver interface {
	Resolve(uuid string, major, minor uint16) (string, bool)
}

// Observer receives per-cycle results after classification. Callbacks run on
// the delivering goroutine and must not block.
type Observer interface {
	ClosestBeaconChanged(s Sighting)
	DetectedBeaconsChanged(sightings []Sighting)
}

// CycleResult summarises one DeliverSightings call.
type CycleResult struct {
	Changed   bool      `json:"changed"`
	Resolved  int       `json:"resolved"`
	Dropped   int       `json:"dropped"`
	Triggered int       `json:"triggered"`
	Refreshed int       `json:"refreshed"`
	Closest   *Sighting `json:"closest,omitempty"`
}

// Engine owns the membership sets and trigger cache for one client identity.
//
// DeliverSightings runs one classification pass at a time. Refresh and
// eviction may run concurrently with it and with each other.
type Engine struct {
	cfg        Config
	cycleMu    sync.Mutex
	resolver   Resolver
	members    *Membership
	classifier *Classifier
	cache      *TriggerCache
	dispatcher *Dispatcher
	observers  []Observer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver registers an observer for cycle results.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// New creates an engine with empty membership and cache.
func New(resolver Resolver, creator Creator, identity IdentitySource, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg.withDefaults(),
		resolver: resolver,
		members:  NewMembership(),
		cache:    NewTriggerCache(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.classifier = NewClassifier(e.members)
	e.dispatcher = NewDispatcher(creator, identity, e.members, e.cache, e.cfg.CallTimeout, e.now, e.logger)
	return e
}

// DeliverSightings processes one scan cycle: resolves and classifies the
// sightings, drops cache records of devices that changed tier, notifies
// observers, then triggers and refreshes.
func (e *Engine) DeliverSightings(ctx context.Context, raw []RawSighting) CycleResult {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	now := e.now()
	sightings := e.resolve(raw, now)
	res := CycleResult{Resolved: len(sightings), Dropped: len(raw) - len(sightings)}

	transitions := e.classifier.classify(sightings)
	res.Changed = len(transitions) > 0
	for _, tr := range transitions {
		for _, old := range tr.From {
			e.cache.Remove(old, tr.DeviceID)
		}
		e.logger.Debug("beacon changed tier",
			"device_id", tr.DeviceID, "from", tr.From, "to", tr.To)
	}

	if closest, ok := Closest(sightings); ok {
		res.Closest = &closest
		for _, o := range e.observers {
			o.ClosestBeaconChanged(closest)
			o.DetectedBeaconsChanged(sightings)
		}
	}

	triggered, err := e.dispatcher.TriggerAll(ctx)
	if err != nil {
		e.logPassSkipped("trigger", err)
		return res
	}
	res.Triggered = triggered

	refreshed, err := e.dispatcher.RefreshAll(ctx, now, e.cfg.RefreshInterval)
	if err != nil {
		e.logPassSkipped("refresh", err)
		return res
	}
	res.Refreshed = refreshed
	return res
}

func (e *Engine) resolve(raw []RawSighting, now time.Time) []Sighting {
	out := make([]Sighting, 0, len(raw))
	for _, r := range raw {
		if err := r.Validate(); err != nil {
			e.logger.Debug("sighting without tier dropped",
				"uuid", r.UUID, "major", r.Major, "minor", r.Minor, "error", err)
			continue
		}
		id, ok := e.resolver.Resolve(r.UUID, r.Major, r.Minor)
		if !ok {
			e.logger.Debug("unmatched beacon dropped",
				"uuid", r.UUID, "major", r.Major, "minor", r.Minor)
			continue
		}
		out = append(out, Sighting{
			DeviceID:   id,
			Tier:       *r.Proximity,
			Accuracy:   r.Accuracy,
			ObservedAt: now,
		})
	}
	return out
}

func (e *Engine) logPassSkipped(pass string, err error) {
	if errors.Is(err, ErrNoIdentity) {
		e.logger.Warn("proximity pass skipped: no identity", "pass", pass)
		return
	}
	e.logger.Error("proximity pass failed", "pass", pass, "error", err)
}

// Members returns the device ids currently in tier.
func (e *Engine) Members(tier Tier) []string {
	return e.members.Members(tier)
}

// Membership returns every tier's members.
func (e *Engine) Membership() map[Tier][]string {
	return e.members.Snapshot()
}

// Records returns the trigger cache contents.
func (e *Engine) Records() []Record {
	return e.cache.Records()
}

// Stats returns counts for health reporting.
func (e *Engine) Stats() map[string]interface{} {
	return map[string]interface{}{
		"members":               e.members.Len(),
		"records":               e.cache.Len(),
		"refresh_interval":      e.cfg.RefreshInterval.String(),
		"stale_eviction_window": e.cfg.StaleEvictionWindow.String(),
	}
}

// Wait blocks until all in-flight backend calls have completed.
func (e *Engine) Wait() {
	e.dispatcher.Wait()
}

// Closest returns the sighting with the smallest non-negative accuracy. A
// negative accuracy means unknown and only wins if nothing else is known.
func Closest(sightings []Sighting) (Sighting, bool) {
	if len(sightings) == 0 {
		return Sighting{}, false
	}
	best := sightings[0]
	for _, s := range sightings[1:] {
		switch {
		case best.Accuracy < 0 && s.Accuracy >= 0:
			best = s
		case s.Accuracy >= 0 && s.Accuracy < best.Accuracy:
			best = s
		}
	}
	return best, true
}
