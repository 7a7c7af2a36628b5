// Package tracking manages which clients the limiter enforces. Registrations
// are persisted through storage and applied to the live limiter.
package tracking

import (
	"context"

	"ratetracker/internal/models"
	"ratetracker/internal/ratelimit"
)

// ServiceInterface defines tracked-client operations used by the API.
type ServiceInterface interface {
	// Register persists a client and starts limiting it.
	Register(ctx context.Context, req *models.RegisterClientRequest) (*models.RegisterClientResponse, error)

	// List returns persisted clients ordered by ID.
	List(ctx context.Context) (*models.ListClientsResponse, error)
}

// Registrar is the part of the limiter that holds the tracked set.
type Registrar interface {
	TrackClient(id ratelimit.ClientID)
	TrackedClients() []ratelimit.ClientID
}

var (
	_ ServiceInterface = (*Service)(nil)
	_ Registrar        = (*ratelimit.Limiter)(nil)
)
