// Package ratelimit provides per-client admission control for HTTP requests
// using a fixed-window counter. Clients are keyed by a numeric identity derived
// from their IPv4 address, and enforcement can be narrowed to an explicit set of
// tracked clients. The package also includes HTTP middleware that maps a
// decision to a 429 or 503 response.
package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"ratetracker/internal/models"
)

// ErrInvalidRate is returned when a RateConfig has a non-positive request
// count or period.
var ErrInvalidRate = errors.New("invalid rate configuration")

// RateConfig is the immutable rate a Limiter enforces: at most Requests
// requests per client in each window of Period seconds.
type RateConfig struct {
	Requests int   `json:"requests"`
	Period   int64 `json:"period"` // seconds
}

// Validate reports whether both the request count and the period are positive
// and the period fits in a time.Duration.
func (c RateConfig) Validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("%w: requests must be positive, got %d", ErrInvalidRate, c.Requests)
	}
	if c.Period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %d", ErrInvalidRate, c.Period)
	}
	if c.Period > models.MaxRateLimitPeriod {
		return fmt.Errorf("%w: period must not exceed %d seconds, got %d", ErrInvalidRate, models.MaxRateLimitPeriod, c.Period)
	}
	return nil
}

// Window returns the period as a duration.
func (c RateConfig) Window() time.Duration {
	return time.Duration(c.Period) * time.Second
}

// Decider is the contract the HTTP middleware depends on. *Limiter implements
// it; observability wrappers decorate it. Implementations must be safe for
// concurrent use.
type Decider interface {
	// RecordAndCheck counts a request from id and returns 0 when it is
	// allowed, or the number of seconds to wait before retrying.
	RecordAndCheck(id ClientID) int64

	// Rate returns the configured rate.
	Rate() RateConfig
}
