package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiter_DropsIdleClients(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiter(10, time.Minute)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.getLimiter(ip)
	}
	assert.Equal(t, 3, l.size())

	now = now.Add(30 * time.Second)
	active := l.getLimiter("10.0.0.1")
	assert.Equal(t, 3, l.size(), "no sweep before a full window")

	now = now.Add(40 * time.Second)
	assert.Same(t, active, l.getLimiter("10.0.0.1"))
	assert.Equal(t, 1, l.size(), "clients idle for a window are dropped")
}

func TestIPLimiter_BurstAtLeastOne(t *testing.T) {
	l := newIPLimiter(1, time.Minute)
	assert.True(t, l.getLimiter("10.0.0.1").Allow())
}
