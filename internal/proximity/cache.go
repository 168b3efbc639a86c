package proximity

import (
	"sort"
	"sync"
	"time"
)

type cacheKey struct {
	tier     Tier
	deviceID string
}

// TriggerCache maps tier → device id → last acknowledged Record, and tracks
// which keys have a backend call in flight. At most one call per key is
// outstanding at a time.
type TriggerCache struct {
	mu       sync.Mutex
	records  [numTiers]map[string]Record
	inflight map[cacheKey]struct{}
}

// NewTriggerCache creates an empty cache.
func NewTriggerCache() *TriggerCache {
	c := &TriggerCache{inflight: make(map[cacheKey]struct{})}
	for i := range c.records {
		c.records[i] = make(map[string]Record)
	}
	return c
}

// Get returns the record for (tier, id).
func (c *TriggerCache) Get(tier Tier, id string) (Record, bool) {
	if !tier.valid() {
		return Record{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[tier][id]
	return r, ok
}

// reserveMissing marks (tier, id) in flight if it has neither a record nor
// an outstanding call.
func (c *TriggerCache) reserveMissing(tier Tier, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[tier][id]; ok {
		return false
	}
	return c.reserveLocked(cacheKey{tier, id})
}

// reserveDue marks (tier, id) in flight if its record is older than interval.
func (c *TriggerCache) reserveDue(tier Tier, id string, now time.Time, interval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[tier][id]
	if !ok || now.Sub(r.CreatedAt) <= interval {
		return false
	}
	return c.reserveLocked(cacheKey{tier, id})
}

func (c *TriggerCache) reserveLocked(k cacheKey) bool {
	if _, busy := c.inflight[k]; busy {
		return false
	}
	c.inflight[k] = struct{}{}
	return true
}

func (c *TriggerCache) release(tier Tier, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, cacheKey{tier, id})
}

// InFlight reports whether a call for (tier, id) is outstanding.
func (c *TriggerCache) InFlight(tier Tier, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[cacheKey{tier, id}]
	return ok
}

// apply stores rec if valid() holds and rec is not older than the stored
// record. valid runs under the cache lock.
func (c *TriggerCache) apply(rec Record, valid func() bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if valid != nil && !valid() {
		return false
	}
	if cur, ok := c.records[rec.Tier][rec.DeviceID]; ok && rec.CreatedAt.Before(cur.CreatedAt) {
		return false
	}
	c.records[rec.Tier][rec.DeviceID] = rec
	return true
}

// Remove deletes the record for (tier, id).
func (c *TriggerCache) Remove(tier Tier, id string) bool {
	if !tier.valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[tier][id]; !ok {
		return false
	}
	delete(c.records[tier], id)
	return true
}

// removeIf deletes the record for (tier, id) when cond holds. cond runs
// under the cache lock.
func (c *TriggerCache) removeIf(tier Tier, id string, cond func() bool) bool {
	if !tier.valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[tier][id]; !ok || !cond() {
		return false
	}
	delete(c.records[tier], id)
	return true
}

// Evict removes every record whose age exceeds window and returns them.
func (c *TriggerCache) Evict(now time.Time, window time.Duration) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []Record
	for _, t := range Tiers {
		for id, r := range c.records[t] {
			if now.Sub(r.CreatedAt) > window {
				delete(c.records[t], id)
				evicted = append(evicted, r)
			}
		}
	}
	return evicted
}

// Due returns the records older than interval.
func (c *TriggerCache) Due(now time.Time, interval time.Duration) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []Record
	for _, t := range Tiers {
		for _, r := range c.records[t] {
			if now.Sub(r.CreatedAt) > interval {
				due = append(due, r)
			}
		}
	}
	return due
}

// Records returns a copy of every record, ordered by tier then device id.
func (c *TriggerCache) Records() []Record {
	c.mu.Lock()
	out := make([]Record, 0)
	for _, t := range Tiers {
		for _, r := range c.records[t] {
			out = append(out, r)
		}
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}

// Len returns the number of records.
func (c *TriggerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.records {
		n += len(m)
	}
	return n
}
