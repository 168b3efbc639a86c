package proximity

import (
	"sort"
	"sync"
	"time"
)

type member struct {
	seq      uint64 // insertion order within the tier
	lastSeen time.Time
}

// Membership holds one set of device ids per tier. A device id is a member
// of at most one tier at any time.
//
// Only the Classifier mutates it; everything else reads.
type Membership struct {
	mu   sync.RWMutex
	sets [numTiers]map[string]member
	seq  uint64
}

// NewMembership creates empty tier sets.
func NewMembership() *Membership {
	m := &Membership{}
	for i := range m.sets {
		m.sets[i] = make(map[string]member)
	}
	return m
}

// place puts id into tier, removing it from every other set it occupies.
// Returns the tiers it was removed from and whether it was already in tier.
func (m *Membership) place(id string, tier Tier, seen time.Time) (removed []Tier, present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.sets[tier][id]; ok {
		cur.lastSeen = latest(cur.lastSeen, seen)
		m.sets[tier][id] = cur
		present = true
	}
	for _, t := range Tiers {
		if t == tier {
			continue
		}
		if _, ok := m.sets[t][id]; ok {
			delete(m.sets[t], id)
			removed = append(removed, t)
		}
	}
	if !present {
		m.seq++
		m.sets[tier][id] = member{seq: m.seq, lastSeen: seen}
	}
	return removed, present
}

// expire removes every member whose last sighting is before cutoff.
func (m *Membership) expire(cutoff time.Time) []Departure {
	m.mu.Lock()
	defer m.mu.Unlock()

	var gone []Departure
	for _, t := range Tiers {
		for id, mem := range m.sets[t] {
			if mem.lastSeen.Before(cutoff) {
				delete(m.sets[t], id)
				gone = append(gone, Departure{DeviceID: id, Tier: t})
			}
		}
	}
	return gone
}

// Members returns the device ids in tier, in insertion order.
func (m *Membership) Members(tier Tier) []string {
	if !tier.valid() {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.sets[tier]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return set[ids[i]].seq < set[ids[j]].seq })
	return ids
}

// Contains reports whether id is currently a member of tier.
func (m *Membership) Contains(id string, tier Tier) bool {
	if !tier.valid() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sets[tier][id]
	return ok
}

// TierOf returns the tier id currently belongs to.
func (m *Membership) TierOf(id string) (Tier, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range Tiers {
		if _, ok := m.sets[t][id]; ok {
			return t, true
		}
	}
	return TierUnknown, false
}

// Snapshot returns every tier's members.
func (m *Membership) Snapshot() map[Tier][]string {
	out := make(map[Tier][]string, numTiers)
	for _, t := range Tiers {
		out[t] = m.Members(t)
	}
	return out
}

// Len returns the total number of members across tiers.
func (m *Membership) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, set := range m.sets {
		n += len(set)
	}
	return n
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
