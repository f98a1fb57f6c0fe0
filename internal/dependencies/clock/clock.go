package clock

import "time"

// Clock provides the current time. Presence expiry, challenge timeouts and
// move timestamps all read it, so tests can step time by hand.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time in UTC
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}

