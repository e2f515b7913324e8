package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"

	"attendx/internal/anomaly"
	"attendx/internal/config"
	apierrors "attendx/internal/errors"
	"attendx/internal/infrastructure"
	customMiddleware "attendx/internal/middleware"
	"attendx/internal/services"
	"attendx/internal/sessions"
	handlers "attendx/internal/transport/http"
	"attendx/internal/validation"
	"attendx/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Store         sessions.Store
	Services      *ServiceContainer

	// memory is set when sessions live in process and need sweeping
	memory         *sessions.MemoryStore
	stopBackground context.CancelFunc
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Uploads   *services.UploadService
	Analytics *services.AnalyticsService
	Health    *services.HealthService
}

// NewApplication wires the store, services and router for cfg
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry, contracts.Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices opens the session store and builds the services on it
func (a *Application) initializeServices(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.Store = store
	if err := infrastructure.RegisterSessionGauge(a.OTelProviders.Meter, store.Count); err != nil {
		return fmt.Errorf("failed to register session gauge: %w", err)
	}

	validator := validation.NewFileValidator(a.Logger, a.Config.Uploads.MaxBytes)
	uploads := services.NewUploadService(store, validator, a.Config.Uploads.SessionTTL, a.Metrics, a.Logger)

	ac := a.Config.Analytics
	detector := anomaly.NewDetector(anomaly.Config{
		Imputer: anomaly.ImputerConfig{
			MaxIterations: ac.ImputerMaxIterations,
			Tolerance:     ac.ImputerTolerance,
		},
		Forest: anomaly.ForestConfig{
			Trees:         ac.ForestTrees,
			MaxSamples:    ac.ForestMaxSamples,
			Contamination: ac.Contamination,
			Seed:          ac.Seed,
		},
	}, a.Logger)

	a.Services = &ServiceContainer{
		Uploads:   uploads,
		Analytics: services.NewAnalyticsService(uploads, detector, ac.Workers, a.Metrics, a.Logger),
		Health:    services.NewHealthService(contracts.Version, store, a.Logger),
	}
	return nil
}

func (a *Application) openStore(ctx context.Context) (sessions.Store, error) {
	switch a.Config.Uploads.Store {
	case "redis":
		rc := a.Config.Uploads.Redis
		store, err := sessions.NewRedisStore(ctx, sessions.RedisOptions{
			Address:  rc.Address,
			Password: rc.Password,
			DB:       rc.DB,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect session store: %w", err)
		}
		a.Logger.InfoContext(ctx, "Using redis session store", slog.String("address", rc.Address))
		return store, nil
	default:
		a.memory = sessions.NewMemoryStore(a.Logger)
		a.Logger.InfoContext(ctx, "Using in-memory session store",
			slog.Duration("ttl", a.Config.Uploads.SessionTTL))
		return a.memory, nil
	}
}

// setupRouter builds the middleware chain and mounts every handler.
// Order: RequestID → RealIP → OTel → Logger → Recoverer → security
// headers → CORS → rate limit → timeout.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// scrapes bypass the instrumented group
	r.Method(http.MethodGet, config.MetricsEndpoint, handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, errorHandler))

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))
		r.Use(customMiddleware.StripSlashes)

		secure := customMiddleware.DefaultSecureHeaders()
		secure.DevMode = a.Config.Logging.Development
		r.Use(secure.Handler)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}

		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, errorHandler, a.Logger).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(customMiddleware.Compress(5))

		a.setupAPIRoutes(r, errorHandler)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler) {
	validator := customMiddleware.NewQueryValidator(a.Logger)
	health := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	uploads := handlers.NewUploadHandler(a.Services.Uploads, validator, a.Config.Uploads.MaxBytes, a.Logger, errorHandler)
	analytics := handlers.NewAnalyticsHandler(a.Services.Analytics, validator, a.Logger, errorHandler)

	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Mount("/health", health.Routes())
		r.Get("/version", health.Version)
		r.Get("/levels", analytics.Levels)

		r.Route("/uploads", func(r chi.Router) {
			r.Use(customMiddleware.AuditLog(a.Logger))
			uploads.Register(r)
			analytics.Register(r)
		})
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port)),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts background work and the HTTP server. A listener failure
// calls cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	bg, stop := context.WithCancel(context.WithoutCancel(ctx))
	a.stopBackground = stop
	if a.memory != nil {
		go a.memory.Run(bg, a.Config.Uploads.CleanupInterval)
	}

	go func() {
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", listener.Addr().String()),
		slog.String("session_store", a.Config.Uploads.Store),
		slog.Int("dashboard_workers", a.Config.Analytics.Workers))
	return nil
}

// Stop drains in-flight requests, then releases the store and telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.stopBackground != nil {
		a.stopBackground()
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session store close error: %w", err))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted or the server fails
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.InfoContext(ctx, "Received shutdown signal")
	return a.Stop(ctx)
}
