package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ratetracker/internal/models"
	"ratetracker/internal/stats"
)

// MiddlewareConfig controls how the admission middleware identifies clients
// and where it reports decisions.
type MiddlewareConfig struct {
	// TrustProxyHeaders derives the client from X-Forwarded-For or X-Real-IP
	// before falling back to the connection's remote address.
	TrustProxyHeaders bool

	// Recorder receives every decision. Failures are logged and ignored.
	Recorder stats.Recorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Middleware returns HTTP middleware that admits or rejects requests using d.
// Requests whose client identity cannot be derived are rejected with 503.
// Requests over the limit are rejected with 429 and a Retry-After header.
func Middleware(d Decider, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Denials arrive in bursts; log the first few and then one per second.
	denyLog := &rate.Sometimes{First: 5, Interval: time.Second}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddress(r, cfg.TrustProxyHeaders)
			id := ParseClientID(addr)

			if id == InvalidClientID {
				record(r, cfg.Recorder, logger, "", stats.OutcomeInvalid)
				logger.Warn("Rejecting request without client identity",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusServiceUnavailable,
					models.NewErrorResponse("Client address unavailable", models.ErrorCodeServiceUnavailable))
				return
			}

			wait := d.RecordAndCheck(id)
			rc := d.Rate()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rc.Requests))
			w.Header().Set("X-RateLimit-Window", strconv.FormatInt(rc.Period, 10))

			if wait > 0 {
				record(r, cfg.Recorder, logger, id.String(), stats.OutcomeDenied)
				denyLog.Do(func() {
					logger.Warn("Rate limit exceeded",
						"client", id.String(),
						"limit", rc.Requests,
						"retry_after", wait,
					)
				})

				w.Header().Set("Retry-After", strconv.FormatInt(wait, 10))
				resp := models.NewErrorResponse(
					fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", wait),
					models.ErrorCodeRateLimitExceeded,
				)
				resp.RetryAfter = wait
				writeError(w, http.StatusTooManyRequests, resp)
				return
			}

			record(r, cfg.Recorder, logger, id.String(), stats.OutcomeAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func record(r *http.Request, rec stats.Recorder, logger *slog.Logger, client string, outcome stats.Outcome) {
	if rec == nil {
		return
	}
	ev := stats.Event{
		Client:  client,
		Outcome: outcome,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	}
	if err := rec.Record(r.Context(), ev); err != nil {
		logger.Debug("Failed to record decision", "error", err, "outcome", string(outcome))
	}
}

func writeError(w http.ResponseWriter, status int, resp *models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// clientAddress returns the text the client identity is derived from.
func clientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	return r.RemoteAddr
}
