package app

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"pupilflow/internal/cache"
	"pupilflow/internal/config"
	"pupilflow/internal/dataprocessing"
	apierrors "pupilflow/internal/errors"
	"pupilflow/internal/files"
	"pupilflow/internal/infrastructure"
	customMiddleware "pupilflow/internal/middleware"
	"pupilflow/internal/services"
	handlers "pupilflow/internal/transport/http"
	"pupilflow/pkg/contracts"
)

// AppName is the name reported in logs and by the version endpoint.
const AppName = "pupilflow"

// Application represents the main application container
type Application struct {
	Config         *config.Config
	Paths          *config.Paths
	Router         *chi.Mux
	Server         *http.Server
	Logger         *slog.Logger
	OTelProviders  *infrastructure.OTelProviders
	Metrics        *infrastructure.PipelineMetrics
	DatasetService *services.DatasetService
	HealthService  *services.HealthService
	Watcher        *cache.Watcher
}

// NewApplication loads the configuration and builds the application relative
// to the working directory.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger, "")
}

// New wires the application from cfg. Relative paths are resolved against
// baseDir, or the working directory when baseDir is empty.
func New(cfg *config.Config, logger *slog.Logger, baseDir string) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	paths, err := cfg.ResolvePaths(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreatePipelineMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	discovery := files.NewDiscovery("")
	if a.Paths.CoordinatesInDataDir() {
		discovery.Exclude(a.Paths.CoordinatesFile)
	}

	loader := dataprocessing.NewLoader(a.Logger, discovery, dataprocessing.LoaderConfig{
		Workers: a.Config.Pipeline.Workers,
		MaxRows: a.Config.Pipeline.MaxRows,
	}, dataprocessing.NewLogObserver(a.Logger, a.Metrics))

	var datasetCache *cache.DatasetCache
	if a.Config.Cache.Enabled {
		c, err := cache.NewDatasetCache(a.Config.Cache.Size, a.Logger, a.Metrics)
		if err != nil {
			return fmt.Errorf("failed to create dataset cache: %w", err)
		}
		datasetCache = c
	}

	datasetCfg := services.DatasetConfig{
		DataDir:         a.Paths.DataDir,
		CoordinatesFile: a.Paths.CoordinatesFile,
	}
	a.DatasetService = services.NewDatasetService(datasetCfg, loader, datasetCache, a.Metrics, a.Logger)
	a.HealthService = services.NewHealthService(contracts.Version, datasetCfg, a.DatasetService, a.Logger)
	return nil
}

// setupRouter builds the middleware chain and mounts the API.
// Order: RequestID, RealIP, OTel, Logger, Recoverer, then the guards.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, false)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// Prometheus scrapes stay outside the logged and rate limited group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(customMiddleware.Compress(flate.DefaultCompression))

		a.setupAPIRoutes(r, errorHandler)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler) {
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	dataHandler := handlers.NewDataHandler(a.DatasetService, a.Logger, errorHandler)

	r.Route("/api", func(r chi.Router) {
		healthHandler.Register(r)
		r.Mount("/", dataHandler.Routes())
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start begins serving on the configured port. A serve failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, cancel, ln)
}

// Serve begins serving on ln, starts the data directory watcher and warms
// the dataset.
func (a *Application) Serve(ctx context.Context, cancel context.CancelFunc, ln net.Listener) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("address", ln.Addr().String()),
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("coordinates_file", a.Paths.CoordinatesFile),
		slog.String("export_dir", a.Paths.ExportDir))

	if a.Config.Cache.Watch {
		a.startWatcher(ctx)
	}

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.DatasetService.WarmUp(ctx)

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", "http://"+ln.Addr().String()))
	return nil
}

// startWatcher reloads the dataset whenever CSV files in the data directory
// change. A missing data directory only disables watching.
func (a *Application) startWatcher(ctx context.Context) {
	w := cache.NewWatcher(a.Paths.DataDir, a.Config.Cache.Debounce, a.Logger, func() {
		a.DatasetService.Invalidate()
		a.DatasetService.WarmUp(ctx)
	})
	if err := w.Start(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Data directory watcher disabled",
			slog.String("dir", a.Paths.DataDir),
			slog.String("error", err.Error()))
		return
	}
	a.Watcher = w
}

// Stop shuts the server down gracefully and releases background resources.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing watcher", slog.String("error", err.Error()))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Run starts the application and blocks until SIGINT, SIGTERM or a serve
// failure, then shuts down.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	cancel()
	return a.Stop(context.Background())
}
