package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ratetracker/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tracked_clients (
	id         INTEGER PRIMARY KEY,
	address    TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`

// SQLiteStorage stores tracked clients in a SQLite database through the
// pure-Go modernc.org/sqlite driver.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database and creates the schema if needed.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// TrackedClients returns all registered clients
func (ss *SQLiteStorage) TrackedClients(ctx context.Context) ([]*models.TrackedClient, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, address, label, created_at FROM tracked_clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	clients := []*models.TrackedClient{}
	for rows.Next() {
		c, err := scanSQLiteClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// GetTrackedClient retrieves a client by ID
func (ss *SQLiteStorage) GetTrackedClient(ctx context.Context, id uint32) (*models.TrackedClient, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, address, label, created_at FROM tracked_clients WHERE id = ?`, int64(id))
	c, err := scanSQLiteClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
	}
	return c, err
}

// SaveTrackedClient stores or updates a client
func (ss *SQLiteStorage) SaveTrackedClient(ctx context.Context, client *models.TrackedClient) error {
	if err := prepare(client); err != nil {
		return err
	}

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO tracked_clients (id, address, label, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET address = excluded.address, label = excluded.label`,
		int64(client.ID), client.Address, client.Label, client.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save client %d: %w", client.ID, err)
	}
	return nil
}

// Ping checks the database connection.
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteClient(row rowScanner) (*models.TrackedClient, error) {
	var (
		id        int64
		c         models.TrackedClient
		createdAt string
	)
	if err := row.Scan(&id, &c.Address, &c.Label, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for client %d: %w", id, err)
	}
	c.ID = uint32(id)
	c.CreatedAt = ts
	return &c, nil
}
