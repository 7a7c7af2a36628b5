package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"

	"ratetracker/internal/models"
)

// loggingMiddleware logs each request with its status and latency.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			level := slog.LevelInfo
			if m.Code >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", m.Code,
				"bytes", m.Written,
				"duration", m.Duration,
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// recoveryMiddleware turns handler panics into 500 responses.
func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered", "error", err, "path", r.URL.Path)
					writeJSONError(w, http.StatusInternalServerError, "Internal server error", models.ErrorCodeInternalError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// protectPaths applies admission to requests whose path is listed. An entry
// ending in "*" matches by prefix.
func protectPaths(paths []string, admission func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	exact := make(map[string]struct{}, len(paths))
	var prefixes []string
	for _, p := range paths {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			prefixes = append(prefixes, prefix)
			continue
		}
		exact[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		limited := admission(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exact[r.URL.Path]; ok {
				limited.ServeHTTP(w, r)
				return
			}
			for _, prefix := range prefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					limited.ServeHTTP(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.NewErrorResponse(message, code))
}
