package storage

import "errors"

// ErrNotFound is returned when a tracked client is not registered.
var ErrNotFound = errors.New("tracked client not found")

// ErrInvalidClient is returned when a client record fails validation.
var ErrInvalidClient = errors.New("invalid tracked client")
