// Package models - API request types and input validation.
package models

import (
	"errors"
	"strings"
)

// RegisterClientRequest asks the service to start tracking a client address.
// The address may carry a port ("10.0.0.5:443"); only the dotted quad is used.
type RegisterClientRequest struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// Normalize trims surrounding whitespace.
func (r *RegisterClientRequest) Normalize() {
	r.Address = strings.TrimSpace(r.Address)
	r.Label = strings.TrimSpace(r.Label)
}

// Validate checks required fields. Whether the address yields a usable
// identity is decided by the caller.
func (r *RegisterClientRequest) Validate() error {
	if r.Address == "" {
		return errors.New("address is required")
	}
	if len(r.Label) > 255 {
		return errors.New("label must be at most 255 characters")
	}
	return nil
}
