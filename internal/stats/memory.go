package stats

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps counters in process. Nothing expires, so per-client
// tracking is off unless requested.
type MemoryStore struct {
	mu       sync.Mutex
	total    Totals
	byClient map[string]Totals

	trackClients bool
}

var (
	_ Store          = (*MemoryStore)(nil)
	_ ClientReporter = (*MemoryStore)(nil)
)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClientTracking enables per-client counters.
func WithClientTracking(track bool) MemoryOption {
	return func(s *MemoryStore) { s.trackClients = track }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{byClient: make(map[string]Totals)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements Recorder.
func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome, 1)
	if s.trackClients && ev.Client != "" {
		c := s.byClient[ev.Client]
		c.add(ev.Outcome, 1)
		s.byClient[ev.Client] = c
	}
	return nil
}

// Totals implements Reporter.
func (s *MemoryStore) Totals(_ context.Context) (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}

// ByClient implements ClientReporter. It returns a copy of the per-client
// counters, empty unless client tracking is enabled.
func (s *MemoryStore) ByClient(_ context.Context) (map[string]Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byClient), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
