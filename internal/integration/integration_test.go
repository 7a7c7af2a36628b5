package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratetracker/internal/api"
	"ratetracker/internal/config"
	"ratetracker/internal/logger"
	"ratetracker/internal/models"
	"ratetracker/internal/observability"
	"ratetracker/internal/ratelimit"
	"ratetracker/internal/stats"
	"ratetracker/internal/storage"
	"ratetracker/internal/tracking"
	"ratetracker/internal/version"
)

// stack is the service wired the way cmd/ratetracker wires it, with a manual
// clock and metrics on a private registry.
type stack struct {
	server   *httptest.Server
	limiter  *ratelimit.Limiter
	clock    *ratelimit.ManualClock
	provider *observability.Provider
	cfg      *models.Config
}

func newStack(t *testing.T, cfg *models.Config) *stack {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()

	provider, err := observability.Setup(models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090},
		models.ObservabilityConfig{ServiceName: "ratetracker-it"}, version.Info{Version: "integration"})
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	base, err := storage.NewFactory(log).Create(ctx, cfg.Storage)
	require.NoError(t, err)
	t.Cleanup(func() { base.Close() })

	store, err := observability.NewInstrumentedStorage(base, provider)
	require.NoError(t, err)

	clock := ratelimit.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter, err := ratelimit.New(ratelimit.RateConfig{Requests: cfg.RateLimit.Requests, Period: cfg.RateLimit.Period}, clock)
	require.NoError(t, err)

	clients := tracking.NewService(store, limiter, log)
	require.NoError(t, clients.Bootstrap(ctx, cfg.RateLimit.TrackedClients))

	decider, err := observability.NewInstrumentedLimiter(limiter, provider)
	require.NoError(t, err)
	t.Cleanup(func() { decider.Close() })

	rec := stats.NewMemoryStore()
	handlers := api.NewHandlers(limiter, clients,
		api.WithStorage(store),
		api.WithStats(rec, models.StatsTypeMemory),
		api.WithLogger(log),
		api.WithClock(clock.Now),
	)
	admission := ratelimit.Middleware(decider, ratelimit.MiddlewareConfig{
		TrustProxyHeaders: cfg.RateLimit.TrustProxyHeaders,
		Recorder:          rec,
		Logger:            log,
	})
	router := api.SetupRoutes(handlers, cfg, api.WithAdmission(admission), api.WithRouteLogger(log))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &stack{server: server, limiter: limiter, clock: clock, provider: provider, cfg: cfg}
}

func (s *stack) do(t *testing.T, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if s.cfg.Security.AdminToken != "" && strings.HasPrefix(path, "/api/v1/") {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Security.AdminToken)
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func jsonConfig(t *testing.T, requests int, period int64) *models.Config {
	t.Helper()
	cfg := models.NewDefaultConfig()
	cfg.RateLimit.Requests = requests
	cfg.RateLimit.Period = period
	cfg.Storage.Type = models.StorageTypeJSON
	cfg.Storage.Path = filepath.Join(t.TempDir(), "clients.json")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestIntegration_FixedWindowFlow(t *testing.T) {
	s := newStack(t, jsonConfig(t, 2, 10))

	for i := 0; i < 2; i++ {
		resp := s.do(t, http.MethodGet, "/", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), ">"+s.clock.Now().Format(api.SortableTimeFormat)+"</p>")
	}

	s.clock.Advance(4 * time.Second)
	resp := s.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "6", resp.Header.Get("Retry-After"))
	assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "10", resp.Header.Get("X-RateLimit-Window"))

	errResp := decodeBody[models.ErrorResponse](t, resp)
	assert.Equal(t, "Rate limit exceeded. Try again in 6 seconds.", errResp.Message)
	assert.Equal(t, models.ErrorCodeRateLimitExceeded, errResp.Code)
	assert.Equal(t, int64(6), errResp.RetryAfter)

	// Next window.
	s.clock.Advance(6 * time.Second)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/", "", nil).StatusCode)

	totals := decodeBody[models.StatsResponse](t, s.do(t, http.MethodGet, "/api/v1/stats", "", nil))
	assert.Equal(t, int64(3), totals.Allowed)
	assert.Equal(t, int64(1), totals.Denied)

	status := decodeBody[models.LimiterStatusResponse](t, s.do(t, http.MethodGet, "/api/v1/limiter", "", nil))
	assert.Equal(t, 1, status.ActiveClients)
	assert.True(t, status.EnforceAll)
}

func TestIntegration_TrackedClientsSurviveRestart(t *testing.T) {
	cfg := jsonConfig(t, 1, 60)

	first := newStack(t, cfg)
	resp := first.do(t, http.MethodPost, "/api/v1/clients", `{"address": "127.0.0.1", "label": "loopback"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first.server.Close()

	_, err := os.Stat(cfg.Storage.Path)
	require.NoError(t, err, "registration persisted to the JSON file")

	second := newStack(t, cfg)
	assert.Equal(t, []ratelimit.ClientID{ratelimit.ParseClientID("127.0.0.1")}, second.limiter.TrackedClients())

	list := decodeBody[models.ListClientsResponse](t, second.do(t, http.MethodGet, "/api/v1/clients", "", nil))
	require.Len(t, list.Clients, 1)
	assert.Equal(t, "loopback", list.Clients[0].Label)

	assert.Equal(t, http.StatusOK, second.do(t, http.MethodGet, "/", "", nil).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, second.do(t, http.MethodGet, "/", "", nil).StatusCode)
}

func TestIntegration_ProxyHeadersAndTrackedSet(t *testing.T) {
	cfg := jsonConfig(t, 1, 60)
	cfg.RateLimit.TrustProxyHeaders = true
	cfg.RateLimit.TrackedClients = []string{"198.51.100.7"}
	s := newStack(t, cfg)

	tracked := map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"}
	other := map[string]string{"X-Forwarded-For": "198.51.100.8"}

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/", "", tracked).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodGet, "/", "", tracked).StatusCode)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/", "", other).StatusCode)
	}

	garbage := map[string]string{"X-Forwarded-For": "unknown"}
	resp := s.do(t, http.MethodGet, "/", "", garbage)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, models.ErrorCodeServiceUnavailable, decodeBody[models.ErrorResponse](t, resp).Code)
}

func TestIntegration_ConfigFileAndAdminToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ratetracker.yaml")
	yaml := fmt.Sprintf(`
rate_limit:
  requests: 5
  period: 30
  protected_paths: ["/"]
storage:
  type: sqlite
  database:
    dsn: "file:%s"
security:
  admin_token: it-token
`, filepath.Join(dir, "clients.db"))
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.LoadWithEnvFile(path, "")
	require.NoError(t, err)
	s := newStack(t, cfg)

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/limiter", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	status := decodeBody[models.LimiterStatusResponse](t, s.do(t, http.MethodGet, "/api/v1/limiter", "", nil))
	assert.Equal(t, 5, status.Requests)
	assert.Equal(t, int64(30), status.Period)

	health := decodeBody[models.HealthCheckResponse](t, s.do(t, http.MethodGet, "/health", "", nil))
	assert.Equal(t, models.StatusHealthy, health.Status)
	assert.Contains(t, health.Components, "storage")
}

func TestIntegration_MetricsExposeDecisions(t *testing.T) {
	s := newStack(t, jsonConfig(t, 1, 60))
	s.do(t, http.MethodGet, "/", "", nil)
	s.do(t, http.MethodGet, "/", "", nil)

	ms := observability.NewMetricsServer(0, "/metrics", s.provider)
	rr := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "ratelimit_decisions")
	assert.Contains(t, body, `outcome="denied"`)
	assert.Contains(t, body, "storage_operation_duration")
}
