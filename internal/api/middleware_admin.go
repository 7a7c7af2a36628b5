package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"ratetracker/internal/models"
)

// adminTokenMiddleware requires "Authorization: Bearer <token>" on admin
// routes. An empty token leaves the routes open.
func adminTokenMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "Authorization required", models.ErrorCodeUnauthorized)
				return
			}

			presented, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Invalid authorization format", models.ErrorCodeUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "Invalid admin token", models.ErrorCodeUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
