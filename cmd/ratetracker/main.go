package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

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

const shutdownTimeout = 30 * time.Second

var (
	configFile   = flag.String("config", "", "Path to configuration file")
	envFile      = flag.String("env-file", config.DefaultEnvFile, "Path to an optional .env file")
	writeExample = flag.String("write-example", "", "Write an example configuration to this path and exit")
	showVersion  = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()
	ver := version.GetInfo()

	if *showVersion {
		fmt.Println(ver.String())
		return
	}
	if *writeExample != "" {
		if err := config.SaveExample(*writeExample); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadWithEnvFile(*configFile, *envFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, ver); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server shutdown complete")
}

func run(ctx context.Context, cfg *models.Config, log *slog.Logger, ver version.Info) error {
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown observability", "error", err)
		}
	}()

	baseStore, err := storage.NewFactory(log).Create(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer baseStore.Close()

	store, err := observability.NewInstrumentedStorage(baseStore, otelProvider)
	if err != nil {
		return fmt.Errorf("failed to instrument storage: %w", err)
	}

	limiter, err := ratelimit.New(ratelimit.RateConfig{
		Requests: cfg.RateLimit.Requests,
		Period:   cfg.RateLimit.Period,
	}, nil)
	if err != nil {
		return err
	}
	clients := tracking.NewService(store, limiter, log)
	if err := clients.Bootstrap(ctx, cfg.RateLimit.TrackedClients); err != nil {
		return err
	}

	decider, err := observability.NewInstrumentedLimiter(limiter, otelProvider)
	if err != nil {
		return fmt.Errorf("failed to instrument limiter: %w", err)
	}
	defer decider.Close()

	statsStore, err := newStatsStore(ctx, cfg.Stats)
	if err != nil {
		return err
	}
	handlerOpts := []api.HandlerOption{
		api.WithStorage(store),
		api.WithVersion(ver),
		api.WithLogger(log),
	}
	if statsStore != nil {
		defer statsStore.Close()
		handlerOpts = append(handlerOpts, api.WithStats(statsStore, cfg.Stats.Type))
	}

	admission := ratelimit.Middleware(decider, ratelimit.MiddlewareConfig{
		TrustProxyHeaders: cfg.RateLimit.TrustProxyHeaders,
		Recorder:          statsStore,
		Logger:            log,
	})
	routeOpts := []api.RouteOption{
		api.WithAdmission(admission),
		api.WithRouteLogger(log),
	}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	router := api.SetupRoutes(api.NewHandlers(limiter, clients, handlerOpts...), cfg, routeOpts...)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
	}

	log.Info("Starting ratetracker",
		"addr", server.Addr,
		"requests", cfg.RateLimit.Requests,
		"period", cfg.RateLimit.Period,
		"tracked_clients", len(limiter.TrackedClients()),
		"storage", cfg.Storage.Type,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if cfg.Server.TLSEnabled {
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newStatsStore returns nil when statistics are disabled.
func newStatsStore(ctx context.Context, cfg models.StatsConfig) (stats.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Type {
	case models.StatsTypeMemory:
		return stats.NewMemoryStore(stats.WithClientTracking(cfg.PerClient)), nil
	case models.StatsTypeRedis:
		s, err := stats.NewRedisStoreFromAddr(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			stats.WithPrefix(cfg.Prefix),
			stats.WithTTL(cfg.TTL),
			stats.WithRedisClientTracking(cfg.PerClient),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize stats: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported stats type: %s", cfg.Type)
	}
}
