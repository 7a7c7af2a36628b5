package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratetracker/internal/models"
	"ratetracker/internal/stats"
)

func TestNewStatsStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		cfg       models.StatsConfig
		expectNil bool
		expectErr bool
	}{
		{"disabled", models.StatsConfig{Enabled: false, Type: models.StatsTypeMemory}, true, false},
		{"memory", models.StatsConfig{Enabled: true, Type: models.StatsTypeMemory}, false, false},
		{"unknown type", models.StatsConfig{Enabled: true, Type: "kafka"}, true, true},
		{"redis unreachable", models.StatsConfig{
			Enabled: true,
			Type:    models.StatsTypeRedis,
			Redis:   models.RedisConfig{Addr: "127.0.0.1:1"},
		}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newStatsStore(ctx, tt.cfg)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.expectNil {
				assert.Nil(t, s)
			} else {
				assert.IsType(t, &stats.MemoryStore{}, s)
			}
		})
	}
}

func TestNewStatsStore_PerClient(t *testing.T) {
	ctx := context.Background()

	s, err := newStatsStore(ctx, models.StatsConfig{Enabled: true, Type: models.StatsTypeMemory, PerClient: true})
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, stats.Event{Client: "10.0.0.1", Outcome: stats.OutcomeAllowed}))

	byClient, err := s.(stats.ClientReporter).ByClient(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]stats.Totals{"10.0.0.1": {Allowed: 1}}, byClient)
}
