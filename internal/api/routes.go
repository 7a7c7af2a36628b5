package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"ratetracker/internal/models"
)

type routeSettings struct {
	serviceName string
	admission   func(http.Handler) http.Handler
	logger      *slog.Logger
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeSettings)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(s *routeSettings) {
		s.serviceName = serviceName
	}
}

// WithAdmission guards the configured protected paths with mw, typically
// ratelimit.Middleware.
func WithAdmission(mw func(http.Handler) http.Handler) RouteOption {
	return func(s *routeSettings) {
		s.admission = mw
	}
}

func WithRouteLogger(l *slog.Logger) RouteOption {
	return func(s *routeSettings) {
		s.logger = l
	}
}

// SetupRoutes configures the HTTP routes.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	settings := routeSettings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&settings)
	}

	router := mux.NewRouter()

	if settings.serviceName != "" {
		router.Use(otelmux.Middleware(settings.serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/api/v1/health"
			}),
		))
	}
	router.Use(loggingMiddleware(settings.logger))
	router.Use(recoveryMiddleware(settings.logger))
	if settings.admission != nil {
		router.Use(protectPaths(config.RateLimit.ProtectedPaths, settings.admission))
	}

	router.HandleFunc("/", handlers.TimePage).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods(http.MethodGet)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not found", models.ErrorCodeNotFound)
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed", models.ErrorCodeBadRequest)
	})
	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = methodNotAllowed

	admin := router.PathPrefix("/api/v1").Subrouter()
	// Subrouters do not inherit the parent's handlers.
	admin.NotFoundHandler = notFound
	admin.MethodNotAllowedHandler = methodNotAllowed
	admin.Use(adminTokenMiddleware(config.Security.AdminToken))
	admin.HandleFunc("/limiter", handlers.LimiterStatus).Methods(http.MethodGet)
	admin.HandleFunc("/clients", handlers.ListClients).Methods(http.MethodGet)
	admin.HandleFunc("/clients", handlers.RegisterClient).Methods(http.MethodPost)
	admin.HandleFunc("/stats", handlers.Stats).Methods(http.MethodGet)

	return router
}
