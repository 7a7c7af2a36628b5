package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ratetracker/internal/models"
)

// JSONStorage implements the Storage interface using a single JSON file. The
// file is read once at startup; afterwards the in-memory copy is authoritative
// and every save rewrites the file atomically.
type JSONStorage struct {
	filePath string
	mu       sync.RWMutex
	data     *JSONData
}

// JSONData represents the structure of data stored in JSON format
type JSONData struct {
	Clients     []*models.TrackedClient `json:"clients"`
	LastUpdated time.Time               `json:"last_updated"`
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required for JSON storage")
	}

	storage := &JSONStorage{filePath: config.Path}

	// Initialize with empty data if file doesn't exist
	if err := storage.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	if err := storage.loadData(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}

	return storage, nil
}

// ensureFileExists creates the JSON file with empty data if it doesn't exist
func (j *JSONStorage) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return j.saveData(&JSONData{Clients: []*models.TrackedClient{}})
	}
	return nil
}

func (j *JSONStorage) loadData() error {
	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data JSONData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	for _, c := range data.Clients {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid client %d in %s: %w", c.ID, j.filePath, err)
		}
	}

	j.data = &data
	return nil
}

// saveData writes to a temporary file and renames it over the target so a
// crash never leaves a truncated file behind.
func (j *JSONStorage) saveData(data *JSONData) error {
	data.LastUpdated = time.Now().UTC()

	fileData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp := j.filePath + ".tmp"
	if err := os.WriteFile(tmp, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, j.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}

// TrackedClients returns all registered clients
func (j *JSONStorage) TrackedClients(ctx context.Context) ([]*models.TrackedClient, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	clients := make([]*models.TrackedClient, 0, len(j.data.Clients))
	for _, c := range j.data.Clients {
		cp := *c
		clients = append(clients, &cp)
	}
	sortClients(clients)
	return clients, nil
}

// GetTrackedClient retrieves a client by ID
func (j *JSONStorage) GetTrackedClient(ctx context.Context, id uint32) (*models.TrackedClient, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, c := range j.data.Clients {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
}

// SaveTrackedClient stores or updates a client
func (j *JSONStorage) SaveTrackedClient(ctx context.Context, client *models.TrackedClient) error {
	if err := prepare(client); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	cp := *client
	next := &JSONData{Clients: make([]*models.TrackedClient, 0, len(j.data.Clients)+1)}
	replaced := false
	for _, existing := range j.data.Clients {
		if existing.ID == cp.ID {
			cp.CreatedAt = existing.CreatedAt
			next.Clients = append(next.Clients, &cp)
			replaced = true
			continue
		}
		next.Clients = append(next.Clients, existing)
	}
	if !replaced {
		next.Clients = append(next.Clients, &cp)
	}

	if err := j.saveData(next); err != nil {
		return err
	}
	j.data = next
	return nil
}

// Ping checks that the backing file is still present.
func (j *JSONStorage) Ping(ctx context.Context) error {
	if _, err := os.Stat(j.filePath); err != nil {
		return fmt.Errorf("storage file unavailable: %w", err)
	}
	return nil
}

// Close is a no-op; every save is already on disk.
func (j *JSONStorage) Close() error { return nil }
