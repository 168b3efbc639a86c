package proximity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Creator issues "create proximity event" calls to the backend. It must be
// safe to retry.
type Creator interface {
	CreateProximityEvent(ctx context.Context, userID, deviceID, beaconID string, distance float64) (Ack, error)
}

// IdentitySource supplies the user/device events are attributed to.
type IdentitySource interface {
	Identity() (Identity, bool)
}

// StaticIdentity is an IdentitySource with a fixed value. An incomplete
// identity reports false.
type StaticIdentity Identity

// Identity implements IdentitySource.
func (s StaticIdentity) Identity() (Identity, bool) {
	if s.UserID == "" || s.DeviceID == "" {
		return Identity{}, false
	}
	return Identity(s), true
}

const (
	kindTrigger = "trigger"
	kindRefresh = "refresh"
)

// Dispatcher issues asynchronous backend calls and applies their results to
// the TriggerCache. Failed calls leave no record; the next pass retries.
type Dispatcher struct {
	creator  Creator
	identity IdentitySource
	members  *Membership
	cache    *TriggerCache
	now      func() time.Time
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher wires a dispatcher. A nil logger uses slog.Default().
func NewDispatcher(creator Creator, identity IdentitySource, members *Membership, cache *TriggerCache, timeout time.Duration, now func() time.Time, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Dispatcher{
		creator:  creator,
		identity: identity,
		members:  members,
		cache:    cache,
		now:      now,
		timeout:  timeout,
		logger:   logger,
	}
}

// TriggerAll issues one create call for every tier member that has no cache
// record and no call in flight. Returns the number of calls issued.
func (d *Dispatcher) TriggerAll(ctx context.Context) (int, error) {
	id, ok := d.identity.Identity()
	if !ok {
		return 0, ErrNoIdentity
	}

	issued := 0
	for _, tier := range Tiers {
		for _, deviceID := range d.members.Members(tier) {
			if !d.cache.reserveMissing(tier, deviceID) {
				continue
			}
			d.send(ctx, id, tier, deviceID, kindTrigger)
			issued++
		}
	}
	return issued, nil
}

// RefreshAll re-issues the create call for every record older than interval
// whose device is still in the record's tier.
func (d *Dispatcher) RefreshAll(ctx context.Context, now time.Time, interval time.Duration) (int, error) {
	id, ok := d.identity.Identity()
	if !ok {
		return 0, ErrNoIdentity
	}

	issued := 0
	for _, rec := range d.cache.Due(now, interval) {
		if !d.members.Contains(rec.DeviceID, rec.Tier) {
			continue
		}
		if !d.cache.reserveDue(rec.Tier, rec.DeviceID, now, interval) {
			continue
		}
		d.send(ctx, id, rec.Tier, rec.DeviceID, kindRefresh)
		issued++
	}
	return issued, nil
}

// Wait blocks until every in-flight call has completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// send runs the call on its own goroutine. The caller must have reserved
// (tier, deviceID).
func (d *Dispatcher) send(ctx context.Context, id Identity, tier Tier, deviceID, kind string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.cache.release(tier, deviceID)

		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		ack, err := d.creator.CreateProximityEvent(callCtx, id.UserID, id.DeviceID, deviceID, tier.Distance())
		if err != nil {
			d.logger.Warn("proximity event failed",
				"kind", kind, "device_id", deviceID, "tier", tier, "error", err)
			return
		}
		d.complete(kind, tier, deviceID, ack)
	}()
}

// complete stores the acknowledgment unless the device has left the tier in
// the meantime or a fresher record is already stored.
func (d *Dispatcher) complete(kind string, tier Tier, deviceID string, ack Ack) {
	rec := Record{
		ID:        ack.ID,
		DeviceID:  deviceID,
		Tier:      tier,
		Distance:  tier.Distance(),
		CreatedAt: d.now(),
	}
	applied := d.cache.apply(rec, func() bool {
		return d.members.Contains(deviceID, tier)
	})
	if !applied {
		d.logger.Debug("proximity event discarded",
			"kind", kind, "device_id", deviceID, "tier", tier)
		return
	}
	d.logger.Info("proximity event sent",
		"kind", kind, "device_id", deviceID, "tier", tier, "event_id", ack.ID)
}
