package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ratetracker/internal/models"
	"ratetracker/internal/ratelimit"
	"ratetracker/internal/storage"
)

// BootstrapLabel marks clients registered from configuration.
const BootstrapLabel = "config"

// Service applies tracked-client registrations to storage and the limiter.
type Service struct {
	storage storage.Storage
	limiter Registrar
	logger  *slog.Logger
}

// NewService creates a tracking service. A nil logger selects slog.Default().
func NewService(store storage.Storage, limiter Registrar, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage: store,
		limiter: limiter,
		logger:  logger,
	}
}

// Register derives the client identity from req.Address, persists the client
// and adds it to the limiter's tracked set. Re-registering a client updates
// its label and keeps its creation time.
func (s *Service) Register(ctx context.Context, req *models.RegisterClientRequest) (*models.RegisterClientResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError(err.Error(), err)
	}

	id := ratelimit.ParseClientID(req.Address)
	if id == ratelimit.InvalidClientID {
		return nil, NewInvalidClientError(req.Address)
	}

	client := &models.TrackedClient{
		ID:      uint32(id),
		Address: id.String(),
		Label:   req.Label,
	}
	if err := s.storage.SaveTrackedClient(ctx, client); err != nil {
		if errors.Is(err, storage.ErrInvalidClient) {
			return nil, NewInvalidRequestError("invalid client", err)
		}
		return nil, NewInternalError("failed to save client", err)
	}

	// Storage keeps the first CreatedAt on update.
	saved, err := s.storage.GetTrackedClient(ctx, client.ID)
	if err != nil {
		return nil, NewInternalError("failed to read back client", err)
	}

	s.limiter.TrackClient(id)
	s.logger.Info("Client registered", "client", saved.Address, "label", saved.Label)

	return &models.RegisterClientResponse{
		ID:        saved.ID,
		Address:   saved.Address,
		Message:   fmt.Sprintf("Client %s is now rate limited", saved.Address),
		CreatedAt: saved.CreatedAt,
	}, nil
}

// List returns persisted clients.
func (s *Service) List(ctx context.Context) (*models.ListClientsResponse, error) {
	stored, err := s.storage.TrackedClients(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list clients", err)
	}

	clients := make([]models.TrackedClient, 0, len(stored))
	for _, c := range stored {
		clients = append(clients, *c)
	}
	return &models.ListClientsResponse{Clients: clients, TotalCount: len(clients)}, nil
}

// Bootstrap loads persisted clients into the limiter, then registers each
// configured address that is not stored yet. Stored registrations win over
// configuration.
func (s *Service) Bootstrap(ctx context.Context, addresses []string) error {
	stored, err := s.storage.TrackedClients(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tracked clients: %w", err)
	}
	for _, c := range stored {
		s.limiter.TrackClient(ratelimit.ClientID(c.ID))
	}

	for _, addr := range addresses {
		id := ratelimit.ParseClientID(addr)
		if id == ratelimit.InvalidClientID {
			return fmt.Errorf("rate_limit.tracked_clients: %w", NewInvalidClientError(addr))
		}

		_, err := s.storage.GetTrackedClient(ctx, uint32(id))
		switch {
		case errors.Is(err, storage.ErrNotFound):
			client := &models.TrackedClient{ID: uint32(id), Address: id.String(), Label: BootstrapLabel}
			if err := s.storage.SaveTrackedClient(ctx, client); err != nil {
				return fmt.Errorf("failed to persist tracked client %s: %w", id, err)
			}
		case err != nil:
			return fmt.Errorf("failed to look up tracked client %s: %w", id, err)
		}
		s.limiter.TrackClient(id)
	}

	if n := len(s.limiter.TrackedClients()); n > 0 {
		s.logger.Info("Limiting tracked clients only", "count", n)
	} else {
		s.logger.Info("No tracked clients; limiting every client")
	}
	return nil
}
