// Package models - Tracked client records.
// A tracked client is a client the operator has explicitly put under rate
// limiting. While at least one client is tracked, every other client bypasses
// the limiter.
package models

import (
	"errors"
	"strings"
	"time"
)

// TrackedClient is the persisted form of a tracked-client registration.
// ID is the packed IPv4 identity and is the primary key.
type TrackedClient struct {
	ID        uint32    `json:"id" db:"id"`
	Address   string    `json:"address" db:"address"`
	Label     string    `json:"label,omitempty" db:"label"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Validate checks the fields storage backends rely on.
func (c *TrackedClient) Validate() error {
	if c.ID == 0 {
		return errors.New("client id cannot be zero")
	}
	if strings.TrimSpace(c.Address) == "" {
		return errors.New("client address cannot be empty")
	}
	if len(c.Label) > 255 {
		return errors.New("client label must be at most 255 characters")
	}
	return nil
}
