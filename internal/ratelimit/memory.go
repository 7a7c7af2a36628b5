package ratelimit

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

// Limiter is an in-memory fixed-window rate limiter. Windows are aligned to
// multiples of the configured period measured from the limiter's creation, and
// the whole counter table is dropped when a request arrives outside the
// current window, so a rollover triggered by one client resets every client.
//
// A client may therefore send up to 2x Requests across a window boundary in
// less than one period.
//
// All state is guarded by a single mutex that is held for the whole
// read-decide-write sequence, including the clock read.
type Limiter struct {
	cfg   RateConfig
	clock Clock
	start time.Time

	mu          sync.Mutex
	windowStart int64 // seconds since start; math.MinInt64 until the first count
	counts      map[ClientID]int
	tracked     map[ClientID]struct{}
}

// New creates a Limiter enforcing cfg. A nil clock selects SystemClock.
func New(cfg RateConfig, clock Clock) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create limiter: %w", err)
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Limiter{
		cfg:         cfg,
		clock:       clock,
		start:       clock.Now(),
		windowStart: math.MinInt64,
		counts:      make(map[ClientID]int),
		tracked:     make(map[ClientID]struct{}),
	}, nil
}

// TrackClient restricts enforcement to registered clients. Once at least one
// client is tracked, requests from untracked clients are allowed and not
// counted. Registering InvalidClientID is a no-op.
func (l *Limiter) TrackClient(id ClientID) {
	if id == InvalidClientID {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracked[id] = struct{}{}
}

// TrackedClients returns the tracked set in ascending order.
func (l *Limiter) TrackedClients() []ClientID {
	l.mu.Lock()
	ids := make([]ClientID, 0, len(l.tracked))
	for id := range l.tracked {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// RecordAndCheck counts a request from id in the current window. It returns 0
// if the request is allowed, otherwise the whole seconds remaining until the
// window ends. Callers must not pass InvalidClientID.
func (l *Limiter) RecordAndCheck(id ClientID) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tracked) > 0 {
		if _, ok := l.tracked[id]; !ok {
			return 0
		}
	}

	elapsed := l.elapsed()
	period := l.cfg.Period

	if l.inWindow(elapsed) {
		count := l.counts[id]
		if count < l.cfg.Requests {
			l.counts[id] = count + 1
			return 0
		}
		return period - (elapsed - l.windowStart)
	}

	clear(l.counts)
	l.windowStart = elapsed - elapsed%period
	l.counts[id] = 1
	return 0
}

// ActiveClients returns the number of distinct clients counted in the current
// window.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counts)
}

// Rate returns the configured rate.
func (l *Limiter) Rate() RateConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// elapsed returns whole seconds since creation. Must be called with mu held.
func (l *Limiter) elapsed() int64 {
	d := l.clock.Now().Sub(l.start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// inWindow avoids overflow while windowStart is still math.MinInt64.
func (l *Limiter) inWindow(elapsed int64) bool {
	if l.windowStart == math.MinInt64 {
		return false
	}
	return elapsed >= l.windowStart && elapsed < l.windowStart+l.cfg.Period
}
