package testutil

import "time"

// ManualClock is a settable time source for cache-expiry tests.
//
// Unlike the real clock it only moves when told to, so a test can expire a
// cached entry without sleeping. The zero value starts at the Unix epoch;
// use NewManualClock to pick a base time.
type ManualClock struct {
	now time.Time
}

// NewManualClock creates a clock frozen at base.
func NewManualClock(base time.Time) *ManualClock {
	return &ManualClock{now: base}
}

// Now returns the frozen time. Implements resolver.Clock.
func (c *ManualClock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) { c.now = t }
