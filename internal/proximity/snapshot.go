package proximity

import "sync"

// Snapshot is an Observer that keeps the latest cycle's closest beacon and
// detected set for the query API.
type Snapshot struct {
	mu       sync.RWMutex
	closest  *Sighting
	detected []Sighting
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// ClosestBeaconChanged implements Observer.
func (s *Snapshot) ClosestBeaconChanged(c Sighting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closest = &c
}

// DetectedBeaconsChanged implements Observer.
func (s *Snapshot) DetectedBeaconsChanged(sightings []Sighting) {
	cp := make([]Sighting, len(sightings))
	copy(cp, sightings)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detected = cp
}

// Closest returns the last closest beacon, if any cycle has seen one.
func (s *Snapshot) Closest() (Sighting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closest == nil {
		return Sighting{}, false
	}
	return *s.closest, true
}

// Detected returns the last cycle's resolved sightings.
func (s *Snapshot) Detected() []Sighting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]Sighting, len(s.detected))
	copy(cp, s.detected)
	return cp
}
