package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ratetracker/internal/models"

	"github.com/jpillora/backoff"
)

// Factory creates storage instances from configuration. Database backends are
// retried with exponential backoff so the service can start alongside its
// database in a compose stack.
type Factory struct {
	logger   *slog.Logger
	retryMin time.Duration
	retryMax time.Duration
}

// NewFactory creates a new storage factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		logger:   logger,
		retryMin: 200 * time.Millisecond,
		retryMax: 10 * time.Second,
	}
}

// Create instantiates a storage provider based on the provided configuration.
// Supported providers:
//   - json: JSON file-based storage
//   - memory: In-memory storage (for testing/development)
//   - postgres: PostgreSQL database storage
//   - sqlite: SQLite database storage
func (f *Factory) Create(ctx context.Context, config models.StorageConfig) (Storage, error) {
	storageConfig := Config{
		Type:             config.Type,
		Path:             config.Path,
		ConnectionString: config.Database.DSN,
		MaxOpenConns:     config.Database.MaxOpenConns,
		ConnMaxLifetime:  config.Database.ConnMaxLifetime,
	}

	switch config.Type {
	case models.StorageTypeJSON:
		return NewJSONStorage(storageConfig)
	case models.StorageTypeMemory:
		return NewMemoryStorage(storageConfig)
	case models.StorageTypePostgres:
		return f.withRetry(ctx, config.Type, config.ConnectRetries, func() (Storage, error) {
			return NewPostgresStorage(ctx, storageConfig)
		})
	case models.StorageTypeSQLite:
		return f.withRetry(ctx, config.Type, config.ConnectRetries, func() (Storage, error) {
			return NewSQLiteStorage(storageConfig)
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (supported: %s)",
			config.Type, strings.Join(f.GetSupportedProviders(), ", "))
	}
}

// withRetry calls open up to retries+1 times, sleeping between attempts. Each
// call has its own backoff.
func (f *Factory) withRetry(ctx context.Context, kind string, retries int, open func() (Storage, error)) (Storage, error) {
	b := &backoff.Backoff{
		Min:    f.retryMin,
		Max:    f.retryMax,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 0; ; attempt++ {
		s, err := open()
		if err == nil {
			return s, nil
		}
		if attempt >= retries {
			return nil, fmt.Errorf("failed to open %s storage after %d attempts: %w", kind, attempt+1, err)
		}

		wait := b.Duration()
		f.logger.Warn("Storage not ready, retrying",
			"type", kind,
			"attempt", attempt+1,
			"retry_in", wait.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("storage connect cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

// GetSupportedProviders returns a list of all supported storage provider types
func (f *Factory) GetSupportedProviders() []string {
	return []string{models.StorageTypeJSON, models.StorageTypeMemory, models.StorageTypePostgres, models.StorageTypeSQLite}
}
