package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"ratetracker/internal/ratelimit"
)

var (
	outcomeAllowed = metric.WithAttributes(attribute.String("outcome", "allowed"))
	outcomeDenied  = metric.WithAttributes(attribute.String("outcome", "denied"))
)

// InstrumentedLimiter counts admission decisions and reports limiter
// occupancy as gauges. It satisfies ratelimit.Decider.
type InstrumentedLimiter struct {
	inner      *ratelimit.Limiter
	decisions  metric.Int64Counter
	retryAfter metric.Int64Histogram
	reg        metric.Registration
}

var _ ratelimit.Decider = (*InstrumentedLimiter)(nil)

// NewInstrumentedLimiter wraps inner using instruments from p. Call Close to
// stop the gauge callbacks.
func NewInstrumentedLimiter(inner *ratelimit.Limiter, p *Provider) (*InstrumentedLimiter, error) {
	meter := p.Meter("ratetracker/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Admission decisions by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	retryAfter, err := meter.Int64Histogram(
		"ratelimit.retry_after",
		metric.WithDescription("Seconds until the window ends, reported to denied clients"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 60, 300, 900, 3600, 86400),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64ObservableGauge(
		"ratelimit.active_clients",
		metric.WithDescription("Distinct clients counted in the current window"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, err
	}

	tracked, err := meter.Int64ObservableGauge(
		"ratelimit.tracked_clients",
		metric.WithDescription("Registered clients; zero means every client is limited"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, err
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(active, int64(inner.ActiveClients()))
		o.ObserveInt64(tracked, int64(len(inner.TrackedClients())))
		return nil
	}, active, tracked)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:      inner,
		decisions:  decisions,
		retryAfter: retryAfter,
		reg:        reg,
	}, nil
}

func (l *InstrumentedLimiter) RecordAndCheck(id ratelimit.ClientID) int64 {
	wait := l.inner.RecordAndCheck(id)

	ctx := context.Background()
	if wait > 0 {
		l.decisions.Add(ctx, 1, outcomeDenied)
		l.retryAfter.Record(ctx, wait)
	} else {
		l.decisions.Add(ctx, 1, outcomeAllowed)
	}
	return wait
}

func (l *InstrumentedLimiter) Rate() ratelimit.RateConfig {
	return l.inner.Rate()
}

// Close unregisters the gauge callbacks.
func (l *InstrumentedLimiter) Close() error {
	return l.reg.Unregister()
}
