// Package stats records admission decisions so operators can see how much
// traffic the limiter lets through. Recording is best effort: a failed write
// never affects the decision itself.
package stats

import (
	"context"
	"time"
)

// Outcome is the result of an admission decision.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
	// OutcomeInvalid marks requests whose client identity could not be derived.
	OutcomeInvalid Outcome = "invalid"
)

// Event describes a single decision.
type Event struct {
	Client  string // dotted-quad client address, empty when invalid
	Outcome Outcome
	Method  string
	Path    string
	At      time.Time
}

// Totals are cumulative counters per outcome.
type Totals struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	Invalid int64 `json:"invalid"`
}

// Recorder stores decision events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Reporter exposes aggregated counters.
type Reporter interface {
	Totals(ctx context.Context) (Totals, error)
}

// ClientReporter exposes counters per client address.
type ClientReporter interface {
	ByClient(ctx context.Context) (map[string]Totals, error)
}

// MinuteReporter exposes the counters of the minute containing at.
type MinuteReporter interface {
	Minute(ctx context.Context, at time.Time) (Totals, error)
}

// Store is a Recorder that can also report.
type Store interface {
	Recorder
	Reporter
	Close() error
}

func (t *Totals) add(o Outcome, n int64) {
	switch o {
	case OutcomeAllowed:
		t.Allowed += n
	case OutcomeDenied:
		t.Denied += n
	case OutcomeInvalid:
		t.Invalid += n
	}
}
