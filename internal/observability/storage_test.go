package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratetracker/internal/models"
	"ratetracker/internal/storage"
)

func newInstrumentedStorage(t *testing.T, p *Provider) *InstrumentedStorage {
	t.Helper()
	inner, err := storage.NewMemoryStorage(storage.Config{Type: models.StorageTypeMemory})
	require.NoError(t, err)

	s, err := NewInstrumentedStorage(inner, p)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInstrumentedStorage_Operations(t *testing.T) {
	p := newMetricsProvider(t)
	s := newInstrumentedStorage(t, p)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	client := &models.TrackedClient{ID: 0xC000020A, Address: "192.0.2.10", Label: "edge"}
	require.NoError(t, s.SaveTrackedClient(ctx, client))

	got, err := s.GetTrackedClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "edge", got.Label)

	all, err := s.TrackedClients(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	m := findMetric(t, p.Registry(), "storage_operation_duration", map[string]string{"operation": "SaveTrackedClient"})
	require.NotNil(t, m)
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestInstrumentedStorage_Errors(t *testing.T) {
	p := newMetricsProvider(t)
	s := newInstrumentedStorage(t, p)
	ctx := context.Background()

	_, err := s.GetTrackedClient(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.SaveTrackedClient(ctx, &models.TrackedClient{ID: 0, Address: "0.0.0.0"})
	assert.ErrorIs(t, err, storage.ErrInvalidClient)

	assert.Nil(t, findMetric(t, p.Registry(), "storage_operation_errors", map[string]string{"operation": "GetTrackedClient"}),
		"not found is not counted as an error")

	m := findMetric(t, p.Registry(), "storage_operation_errors", map[string]string{"operation": "SaveTrackedClient"})
	require.NotNil(t, m)
	assert.Equal(t, 1.0, m.GetCounter().GetValue())
}

func TestInstrumentedStorage_NoopProvider(t *testing.T) {
	s := newInstrumentedStorage(t, nil)
	ctx := context.Background()

	require.NoError(t, s.SaveTrackedClient(ctx, &models.TrackedClient{ID: 1, Address: "0.0.0.1"}))
	all, err := s.TrackedClients(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
