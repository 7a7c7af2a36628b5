package storage

import (
	"context"
	"errors"
	"fmt"

	"ratetracker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client IDs span the full uint32 range, so the column is BIGINT.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS tracked_clients (
	id         BIGINT PRIMARY KEY,
	address    TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresStorage implements the Storage interface using PostgreSQL via pgx.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a connection pool, verifies it and ensures the
// schema exists.
func NewPostgresStorage(ctx context.Context, config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolCfg, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = config.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// TrackedClients returns all registered clients.
func (ps *PostgresStorage) TrackedClients(ctx context.Context) ([]*models.TrackedClient, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, address, label, created_at FROM tracked_clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}

	clients, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.TrackedClient])
	if err != nil {
		return nil, fmt.Errorf("failed to read clients: %w", err)
	}
	if clients == nil {
		clients = []*models.TrackedClient{}
	}
	return clients, nil
}

// GetTrackedClient retrieves a client by ID.
func (ps *PostgresStorage) GetTrackedClient(ctx context.Context, id uint32) (*models.TrackedClient, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, address, label, created_at FROM tracked_clients WHERE id = $1`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query client: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.TrackedClient])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read client: %w", err)
	}
	return c, nil
}

// SaveTrackedClient stores or updates a client (upsert).
func (ps *PostgresStorage) SaveTrackedClient(ctx context.Context, client *models.TrackedClient) error {
	if err := prepare(client); err != nil {
		return err
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO tracked_clients (id, address, label, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET address = EXCLUDED.address, label = EXCLUDED.label`,
		int64(client.ID), client.Address, client.Label, client.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save client %d: %w", client.ID, err)
	}
	return nil
}

// Ping checks the pool.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}
