package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminTokenMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		token          string
		authHeader     string
		expectedStatus int
	}{
		{"no token configured leaves routes open", "", "", http.StatusOK},
		{"valid token", "s3cret", "Bearer s3cret", http.StatusOK},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer guess", http.StatusUnauthorized},
		{"token prefix only", "s3cret", "Bearer s3c", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/limiter", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			adminTokenMiddleware(tt.token)(okHandler()).ServeHTTP(rr, req)
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}
