package ratelimit

import (
	"sync"
	"time"
)

// Clock is the time source a Limiter measures elapsed time against. Only
// differences between readings matter, so implementations should return
// monotonic readings. Now must be safe to call from multiple goroutines.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process clock. time.Now carries a monotonic reading,
// so elapsed time is unaffected by wall clock adjustments.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when advanced. It is meant for
// deterministic tests of window behavior.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock stopped at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
