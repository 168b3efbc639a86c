package proximity

import (
	"context"
)

// RefreshAll re-sends events for records older than the refresh interval so
// the backend's proximity state does not expire. Returns the number of calls
// issued.
func (e *Engine) RefreshAll(ctx context.Context) (int, error) {
	n, err := e.dispatcher.RefreshAll(ctx, e.now(), e.cfg.RefreshInterval)
	if err != nil {
		e.logPassSkipped("refresh", err)
		return 0, err
	}
	if n > 0 {
		e.logger.Info("refresh sweep", "issued", n)
	}
	return n, nil
}

// EvictStale removes records older than the stale eviction window, and
// expires members not sighted within it. Returns the number of records
// removed.
func (e *Engine) EvictStale() int {
	now := e.now()
	window := e.cfg.StaleEvictionWindow

	evicted := len(e.cache.Evict(now, window))
	departed := e.classifier.Expire(now, window)
	evicted += e.dropDeparted(departed)

	if evicted > 0 || len(departed) > 0 {
		e.logger.Info("eviction sweep",
			"records_evicted", evicted, "members_expired", len(departed))
	}
	return evicted
}

// dropDeparted removes the records of expired members. A device sighted again
// in the same tier since it expired keeps its record.
func (e *Engine) dropDeparted(departed []Departure) int {
	n := 0
	for _, d := range departed {
		if e.cache.removeIf(d.Tier, d.DeviceID, func() bool {
			return !e.members.Contains(d.DeviceID, d.Tier)
		}) {
			n++
		}
	}
	return n
}
