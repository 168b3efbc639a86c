package proximity

import (
	"time"
)

// Classifier assigns resolved sightings to tiers. It is the only writer of
// its Membership.
type Classifier struct {
	members *Membership
}

// NewClassifier creates a classifier over members.
func NewClassifier(members *Membership) *Classifier {
	return &Classifier{members: members}
}

// Classify updates membership from one cycle's sightings. It returns true if
// at least one device's tier assignment differs from the previous cycle.
func (c *Classifier) Classify(sightings []Sighting) bool {
	return len(c.classify(sightings)) > 0
}

// classify applies the sightings in order and returns the transitions. A
// device seen in the tier it already occupies produces no transition.
func (c *Classifier) classify(sightings []Sighting) []Transition {
	var transitions []Transition
	for _, s := range sightings {
		if s.DeviceID == "" || !s.Tier.valid() {
			continue
		}
		removed, present := c.members.place(s.DeviceID, s.Tier, s.ObservedAt)
		if present {
			continue
		}
		transitions = append(transitions, Transition{
			DeviceID: s.DeviceID,
			From:     removed,
			To:       s.Tier,
		})
	}
	return transitions
}

// Expire removes devices not sighted within window of now.
func (c *Classifier) Expire(now time.Time, window time.Duration) []Departure {
	return c.members.expire(now.Add(-window))
}
