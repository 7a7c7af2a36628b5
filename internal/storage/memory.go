package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"ratetracker/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// Registrations are lost on restart, which suits development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	clients map[uint32]*models.TrackedClient
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		clients: make(map[uint32]*models.TrackedClient),
	}, nil
}

// TrackedClients returns all registered clients
func (m *MemoryStorage) TrackedClients(ctx context.Context) ([]*models.TrackedClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]*models.TrackedClient, 0, len(m.clients))
	for _, c := range m.clients {
		// Return a copy to prevent external modification
		cp := *c
		clients = append(clients, &cp)
	}
	sortClients(clients)
	return clients, nil
}

// GetTrackedClient retrieves a client by ID
func (m *MemoryStorage) GetTrackedClient(ctx context.Context, id uint32) (*models.TrackedClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.clients[id]
	if !exists {
		return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
	}

	cp := *c
	return &cp, nil
}

// SaveTrackedClient stores or updates a client
func (m *MemoryStorage) SaveTrackedClient(ctx context.Context, client *models.TrackedClient) error {
	if err := prepare(client); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *client
	if existing, ok := m.clients[client.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.clients[client.ID] = &cp
	return nil
}

// Ping always succeeds.
func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error { return nil }

func sortClients(clients []*models.TrackedClient) {
	slices.SortFunc(clients, func(a, b *models.TrackedClient) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
