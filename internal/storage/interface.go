package storage

import (
	"context"
	"fmt"
	"time"

	"ratetracker/internal/models"
)

// Storage persists tracked-client registrations so the allow-list survives
// restarts. Request counters are never stored here.
type Storage interface {
	// TrackedClients returns every registered client ordered by ID.
	TrackedClients(ctx context.Context) ([]*models.TrackedClient, error)

	// GetTrackedClient retrieves a client by its packed ID. Returns ErrNotFound
	// when the client is not registered.
	GetTrackedClient(ctx context.Context, id uint32) (*models.TrackedClient, error)

	// SaveTrackedClient inserts or updates a client keyed by ID. A zero
	// CreatedAt is set to the current time; on update the existing value is kept.
	SaveTrackedClient(ctx context.Context, client *models.TrackedClient) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
}

// prepare validates a client and fills CreatedAt before it is written.
func prepare(client *models.TrackedClient) error {
	if client == nil {
		return ErrInvalidClient
	}
	if err := client.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClient, err)
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	return nil
}
