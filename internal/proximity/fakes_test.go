package proximity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: t0}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mapResolver resolves "uuid/major/minor" keys, UUID compared lowercased.
type mapResolver map[string]string

func (m mapResolver) Resolve(uuid string, major, minor uint16) (string, bool) {
	id, ok := m[fmt.Sprintf("%s/%d/%d", strings.ToLower(uuid), major, minor)]
	return id, ok
}

type createCall struct {
	UserID   string
	DeviceID string
	BeaconID string
	Distance float64
}

var errBackendDown = errors.New("backend down")

type fakeCreator struct {
	mu    sync.Mutex
	calls []createCall
	fail  map[string]bool
	gate  chan struct{} // when set, calls block until closed
	seq   int
}

func newFakeCreator() *fakeCreator {
	return &fakeCreator{fail: make(map[string]bool)}
}

func (f *fakeCreator) CreateProximityEvent(ctx context.Context, userID, deviceID, beaconID string, distance float64) (Ack, error) {
	f.mu.Lock()
	f.calls = append(f.calls, createCall{userID, deviceID, beaconID, distance})
	fail := f.fail[beaconID]
	gate := f.gate
	f.seq++
	id := fmt.Sprintf("evt-%d", f.seq)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Ack{}, ctx.Err()
		}
	}
	if fail {
		return Ack{}, errBackendDown
	}
	return Ack{ID: id}, nil
}

func (f *fakeCreator) setFail(beaconID string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[beaconID] = fail
}

func (f *fakeCreator) Calls() []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]createCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeCreator) CallsFor(beaconID string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.BeaconID == beaconID {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	mu       sync.Mutex
	closest  []Sighting
	detected [][]Sighting
}

func (r *recordingObserver) ClosestBeaconChanged(s Sighting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closest = append(r.closest, s)
}

func (r *recordingObserver) DetectedBeaconsChanged(s []Sighting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detected = append(r.detected, s)
}

const testUUID = "B9407F30-F5F8-466E-AFF9-25556B57FE6D"

var testIdentity = StaticIdentity{UserID: "user-1", DeviceID: "phone-1"}

func testResolver() mapResolver {
	u := strings.ToLower(testUUID)
	return mapResolver{
		u + "/1/1": "B1",
		u + "/1/2": "B2",
		u + "/1/3": "B3",
	}
}

func raw(minor uint16, tier Tier) RawSighting {
	return RawSighting{UUID: testUUID, Major: 1, Minor: minor, Proximity: &tier, Accuracy: 1}
}

func testConfig() Config {
	return Config{
		RefreshInterval:     60 * time.Second,
		StaleEvictionWindow: 5 * time.Minute,
		CallTimeout:         time.Second,
	}
}
