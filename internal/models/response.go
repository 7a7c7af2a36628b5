// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Machine-readable error codes alongside human-readable messages
// - RFC3339 timestamps
package models

import (
	"time"
)

// ErrorResponse provides structured error information.
//
// RetryAfter is set only on rate limit rejections and mirrors the Retry-After
// header in seconds.
type ErrorResponse struct {
	Error      string            `json:"error"`                 // Error type (always "error")
	Message    string            `json:"message"`               // Human-readable error description
	Code       string            `json:"code,omitempty"`        // Machine-readable error code
	Details    map[string]string `json:"details,omitempty"`     // Field-specific error details
	RetryAfter int64             `json:"retry_after,omitempty"` // Seconds until the window ends
	Timestamp  time.Time         `json:"timestamp"`             // Error occurrence time
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// LimiterStatusResponse describes the live limiter.
type LimiterStatusResponse struct {
	Requests       int    `json:"requests"`
	Period         int64  `json:"period"`
	Window         string `json:"window"`
	ActiveClients  int    `json:"active_clients"`
	TrackedClients int    `json:"tracked_clients"`
	EnforceAll     bool   `json:"enforce_all"`
}

type ListClientsResponse struct {
	Clients    []TrackedClient `json:"clients"`
	TotalCount int             `json:"total_count"`
}

type RegisterClientResponse struct {
	ID        uint32    `json:"id"`
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// StatsResponse reports cumulative decision counters. Clients is present when
// per-client statistics are enabled; CurrentMinute when the backend keeps
// minute buckets.
type StatsResponse struct {
	Allowed       int64                  `json:"allowed"`
	Denied        int64                  `json:"denied"`
	Invalid       int64                  `json:"invalid"`
	Backend       string                 `json:"backend"`
	Clients       map[string]StatsCounts `json:"clients,omitempty"`
	CurrentMinute *StatsCounts           `json:"current_minute,omitempty"`
}

// StatsCounts are decision counters for one client or one minute.
type StatsCounts struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	Invalid int64 `json:"invalid"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
	StatusUnknown   = "unknown"   // Status indeterminate
)

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidClient      = "INVALID_CLIENT"      // 400: Address yields no client identity
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Authentication required
	ErrorCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED" // 429: Client exceeded its rate
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Client identity unavailable
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
	if status == StatusUnhealthy {
		h.Status = StatusUnhealthy
	} else if status == StatusDegraded && h.Status == StatusHealthy {
		h.Status = StatusDegraded
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
