package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratetracker/internal/logger"
	"ratetracker/internal/models"
	"ratetracker/internal/ratelimit"
	"ratetracker/internal/stats"
)

func newTestRouter(t *testing.T, mutate func(*models.Config)) (http.Handler, *ratelimit.Limiter, *stats.MemoryStore) {
	t.Helper()
	cfg := models.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	l := newTestLimiter(t)
	rec := stats.NewMemoryStore()
	store := newMemoryStorage(t)
	h := newTestHandlers(t, l, store,
		WithStorage(store),
		WithStats(rec, models.StatsTypeMemory),
	)
	admission := ratelimit.Middleware(l, ratelimit.MiddlewareConfig{Recorder: rec, Logger: logger.Nop()})

	router := SetupRoutes(h, cfg, WithAdmission(admission), WithRouteLogger(logger.Nop()))
	return router, l, rec
}

func serve(h http.Handler, method, path, remote, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRoutes_TimePageIsLimited(t *testing.T) {
	router, _, rec := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/", "10.0.0.1:5000", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/", "10.0.0.1:5001", "").Code)

	rr := serve(router, http.MethodGet, "/", "10.0.0.1:5002", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// Another client has its own budget.
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/", "10.0.0.2:5000", "").Code)

	assert.Equal(t, http.StatusServiceUnavailable, serve(router, http.MethodGet, "/", "[::1]:5000", "").Code)

	totals, err := rec.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats.Totals{Allowed: 3, Denied: 1, Invalid: 1}, totals)
}

func TestRoutes_UnprotectedPathsBypassLimiter(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "10.0.0.1:5000", "").Code)
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/limiter", "10.0.0.1:5000", "").Code)
	}
}

func TestRoutes_RegisteredClientIsTheOnlyOneLimited(t *testing.T) {
	router, l, _ := newTestRouter(t, nil)

	rr := serve(router, http.MethodPost, "/api/v1/clients", "127.0.0.1:1", `{"address": "10.0.0.1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, []ratelimit.ClientID{ratelimit.ParseClientID("10.0.0.1")}, l.TrackedClients())

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/", "10.0.0.2:5000", "").Code)
	}
	serve(router, http.MethodGet, "/", "10.0.0.1:5000", "")
	serve(router, http.MethodGet, "/", "10.0.0.1:5000", "")
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/", "10.0.0.1:5000", "").Code)
}

func TestRoutes_AdminToken(t *testing.T) {
	router, _, _ := newTestRouter(t, func(c *models.Config) {
		c.Security.AdminToken = "s3cret"
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/stats", "127.0.0.1:1", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/health", "127.0.0.1:1", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRoutes_NotFoundAndMethodNotAllowed(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	tests := []struct {
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, "/nope", http.StatusNotFound, models.ErrorCodeNotFound},
		{http.MethodGet, "/api/v1/nope", http.StatusNotFound, models.ErrorCodeNotFound},
		{http.MethodPost, "/", http.StatusMethodNotAllowed, models.ErrorCodeBadRequest},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed, models.ErrorCodeBadRequest},
		{http.MethodDelete, "/api/v1/clients", http.StatusMethodNotAllowed, models.ErrorCodeBadRequest},
		{http.MethodPut, "/api/v1/limiter", http.StatusMethodNotAllowed, models.ErrorCodeBadRequest},
		{http.MethodPost, "/api/v1/stats", http.StatusMethodNotAllowed, models.ErrorCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := serve(router, tt.method, tt.path, "10.0.0.1:5000", "")
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}
