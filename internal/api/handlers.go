package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"ratetracker/internal/models"
	"ratetracker/internal/ratelimit"
	"ratetracker/internal/stats"
	"ratetracker/internal/storage"
	"ratetracker/internal/tracking"
	"ratetracker/internal/version"
)

// SortableTimeFormat is the layout of the timestamp on the time page.
const SortableTimeFormat = "2006-01-02 15:04:05"

var timePage = template.Must(template.New("time").Parse(`<html><head><title>{{.Title}}</title></head>` +
	`<body><p style="text-align: center; font-size: 48px;">{{.Now}}</p></body></html>`))

// Limiter is the read side of *ratelimit.Limiter used for status reporting.
type Limiter interface {
	Rate() ratelimit.RateConfig
	TrackedClients() []ratelimit.ClientID
	ActiveClients() int
}

// Handlers contains HTTP handlers for the ratetracker API.
type Handlers struct {
	limiter      Limiter
	clients      tracking.ServiceInterface
	storage      storage.Storage
	stats        stats.Reporter
	statsBackend string
	version      version.Info
	logger       *slog.Logger
	now          func() time.Time
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithStorage adds a storage component to health checks.
func WithStorage(s storage.Storage) HandlerOption {
	return func(h *Handlers) {
		h.storage = s
	}
}

// WithStats exposes decision totals from r under /api/v1/stats. backend names
// the store in responses.
func WithStats(r stats.Reporter, backend string) HandlerOption {
	return func(h *Handlers) {
		h.stats = r
		h.statsBackend = backend
	}
}

func WithVersion(v version.Info) HandlerOption {
	return func(h *Handlers) {
		h.version = v
	}
}

func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handlers) {
		h.logger = l
	}
}

// WithClock replaces the time source of the time page.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handlers) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandlers creates handlers over the live limiter and the tracked-client
// service.
func NewHandlers(limiter Limiter, clients tracking.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		limiter: limiter,
		clients: clients,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TimePage serves the current time as HTML.
// GET /
func (h *Handlers) TimePage(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Serving time page", "remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Title, Now string }{
		Title: "ratetracker",
		Now:   h.now().Format(SortableTimeFormat),
	}
	if err := timePage.Execute(w, data); err != nil {
		h.logger.Error("Failed to render time page", "error", err)
	}
}

// HealthCheck reports service and storage health.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := models.NewHealthCheckResponse(models.StatusHealthy)
	resp.Version = h.version.Version
	resp.Uptime = h.version.Uptime().String()

	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			resp.AddComponent("storage", models.StatusUnhealthy, err.Error())
		} else {
			resp.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}
	resp.AddComponent("limiter", models.StatusHealthy, h.limiter.Rate().Window().String()+" window")

	status := http.StatusOK
	if resp.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, resp)
}

// LimiterStatus describes the live limiter.
// GET /api/v1/limiter
func (h *Handlers) LimiterStatus(w http.ResponseWriter, r *http.Request) {
	rc := h.limiter.Rate()
	tracked := len(h.limiter.TrackedClients())

	h.writeJSONResponse(w, http.StatusOK, models.LimiterStatusResponse{
		Requests:       rc.Requests,
		Period:         rc.Period,
		Window:         rc.Window().String(),
		ActiveClients:  h.limiter.ActiveClients(),
		TrackedClients: tracked,
		EnforceAll:     tracked == 0,
	})
}

// ListClients returns the persisted tracked clients.
// GET /api/v1/clients
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	resp, err := h.clients.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// RegisterClient starts tracking a client address.
// POST /api/v1/clients
func (h *Handlers) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterClientRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	resp, err := h.clients.Register(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, resp)
}

// Stats reports cumulative decision totals.
// GET /api/v1/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Statistics are disabled")
		return
	}

	totals, err := h.stats.Totals(r.Context())
	if err != nil {
		h.logger.Error("Failed to read statistics", "backend", h.statsBackend, "error", err)
		h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Statistics backend unavailable")
		return
	}

	resp := models.StatsResponse{
		Allowed: totals.Allowed,
		Denied:  totals.Denied,
		Invalid: totals.Invalid,
		Backend: h.statsBackend,
	}

	if cr, ok := h.stats.(stats.ClientReporter); ok {
		byClient, err := cr.ByClient(r.Context())
		if err != nil {
			h.logger.Warn("Failed to read per-client statistics", "backend", h.statsBackend, "error", err)
		} else if len(byClient) > 0 {
			resp.Clients = make(map[string]models.StatsCounts, len(byClient))
			for addr, t := range byClient {
				resp.Clients[addr] = statsCounts(t)
			}
		}
	}

	if mr, ok := h.stats.(stats.MinuteReporter); ok {
		minute, err := mr.Minute(r.Context(), h.now())
		if err != nil {
			h.logger.Warn("Failed to read minute statistics", "backend", h.statsBackend, "error", err)
		} else {
			c := statsCounts(minute)
			resp.CurrentMinute = &c
		}
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

func statsCounts(t stats.Totals) models.StatsCounts {
	return models.StatsCounts{Allowed: t.Allowed, Denied: t.Denied, Invalid: t.Invalid}
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written.
		h.logger.Error("Error encoding JSON response", "error", err)
	}
}

func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}

// writeServiceError maps tracking errors to their HTTP status.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var se *tracking.ServiceError
	if errors.As(err, &se) {
		if se.StatusCode >= http.StatusInternalServerError {
			h.logger.Error("Tracked client operation failed", "error", err)
			h.writeErrorResponse(w, se.StatusCode, se.Code, se.Message)
			return
		}
		h.writeErrorResponse(w, se.StatusCode, se.Code, se.Error())
		return
	}
	h.logger.Error("Tracked client operation failed", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}
