package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ratetracker/internal/models"
	"ratetracker/internal/storage"
)

// InstrumentedStorage wraps a storage.Storage with a span, a latency sample
// and an error count per call.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// NewInstrumentedStorage wraps inner using instruments from p.
func NewInstrumentedStorage(inner storage.Storage, p *Provider) (*InstrumentedStorage, error) {
	meter := p.Meter("ratetracker/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   p.Tracer("ratetracker/storage"),
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	// A missing client is an answer, not a failure.
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (s *InstrumentedStorage) TrackedClients(ctx context.Context) ([]*models.TrackedClient, error) {
	ctx, span := s.startSpan(ctx, "TrackedClients")
	start := time.Now()
	result, err := s.inner.TrackedClients(ctx)
	span.SetAttributes(attribute.Int("client.count", len(result)))
	s.record(ctx, span, "TrackedClients", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetTrackedClient(ctx context.Context, id uint32) (*models.TrackedClient, error) {
	ctx, span := s.startSpan(ctx, "GetTrackedClient", attribute.Int64("client.id", int64(id)))
	start := time.Now()
	result, err := s.inner.GetTrackedClient(ctx, id)
	s.record(ctx, span, "GetTrackedClient", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveTrackedClient(ctx context.Context, client *models.TrackedClient) error {
	var attrs []attribute.KeyValue
	if client != nil {
		attrs = append(attrs,
			attribute.Int64("client.id", int64(client.ID)),
			attribute.String("client.address", client.Address),
		)
	}
	ctx, span := s.startSpan(ctx, "SaveTrackedClient", attrs...)
	start := time.Now()
	err := s.inner.SaveTrackedClient(ctx, client)
	s.record(ctx, span, "SaveTrackedClient", start, err)
	return err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

// Close is not instrumented.
func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
