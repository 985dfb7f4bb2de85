package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pvinsight/internal/config"
	"pvinsight/internal/exporter"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/middleware"
	"pvinsight/internal/notify"
	"pvinsight/internal/operations"
	handlers "pvinsight/internal/transport/http"
	ws "pvinsight/internal/websocket"
)

// Options select how much of the application is assembled.
type Options struct {
	// Config is used as is when set; otherwise ConfigFile (or the usual
	// locations when empty) is loaded.
	Config     *config.Config
	ConfigFile string
	// Console receives console logs; nil means stdout.
	Console io.Writer
	// Server builds the websocket hub, job queue, router and HTTP server.
	Server bool
	// OpenBrowser opens the API health page once the server answers.
	OpenBrowser bool
}

// runPublisher is the lifecycle of a run event sink.
type runPublisher interface {
	operations.EventPublisher
	io.Closer
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Registry      *prometheus.Registry
	Exporter      *exporter.Exporter
	Broadcaster   *operations.StatusBroadcaster
	Manager       *operations.Manager
	Publisher     runPublisher

	// Server mode only.
	WebSocketHub *ws.Hub
	JobQueue     *operations.JobQueue
	Router       chi.Router
	Server       *http.Server

	opts   Options
	cancel context.CancelFunc
}

// New creates a new application instance with dependency injection
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if opts.ConfigFile != "" {
			cfg, err = config.LoadFile(opts.ConfigFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging, infrastructure.LoggerOptions{Console: opts.Console})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Bool("server", opts.Server))

	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.Registry = registry
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Registry:      registry,
		opts:          opts,
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if opts.Server {
		if err := a.setupRouter(); err != nil {
			return nil, fmt.Errorf("failed to set up router: %w", err)
		}
		a.createServer()
	}

	return a, nil
}

// initializeServices wires the analysis pipelines behind the manager.
func (a *Application) initializeServices() error {
	cfg := a.Config

	var renderer exporter.Renderer
	if cfg.PDF.Enabled {
		renderer = exporter.NewChromeRenderer(exporter.ChromeOptions{
			ExecPath: cfg.PDF.ChromePath,
			Headless: cfg.PDF.Headless,
			Timeout:  cfg.PDF.Timeout,
		}, a.Logger)
	}
	a.Exporter = exporter.New(renderer, exporter.Options{
		TimestampOutputs: cfg.Analysis.TimestampOutputs,
		SkipHourlyData:   !cfg.Analysis.IncludeHourlyDataSheet,
	}, a.Logger)

	// The hub interface stays nil outside server mode so snapshots are
	// only kept in memory.
	var hub operations.WebSocketHub
	if a.opts.Server {
		metrics, err := ws.NewMetrics(a.Registry)
		if err != nil {
			return fmt.Errorf("failed to register websocket metrics: %w", err)
		}
		a.WebSocketHub = ws.NewHub(ws.HubOptions{
			PingPeriod: cfg.WebSocket.PingPeriod,
			PongWait:   cfg.WebSocket.PongWait,
			Metrics:    metrics,
			Logger:     a.Logger,
		})
		hub = a.WebSocketHub
	}

	a.Broadcaster = operations.NewStatusBroadcaster(hub, a.Logger)

	if cfg.Kafka.Enabled {
		a.Publisher = notify.NewKafkaPublisher(cfg.Kafka, a.Logger, a.OTelProviders.Metrics)
		a.Logger.Info("Run events enabled",
			slog.String("topic", cfg.Kafka.Topic),
			slog.String("brokers", strings.Join(cfg.Kafka.Brokers, ",")))
	} else {
		a.Publisher = notify.NopPublisher{}
	}

	stageOpts := &operations.StageOptions{
		StatusBroadcaster: a.Broadcaster,
		Metrics:           a.OTelProviders.Metrics,
		Logger:            a.Logger,
	}
	pipelines := operations.NewPipelines(operations.PipelineDeps{
		Paths:    a.Paths,
		Analysis: cfg.Analysis,
		Exporter: a.Exporter,
		Options:  stageOpts,
	})
	a.Manager = operations.NewManager(hub, pipelines, operations.ConfigFromJobs(cfg.Jobs), operations.ManagerOptions{
		Broadcaster: a.Broadcaster,
		Publisher:   a.Publisher,
		Metrics:     a.OTelProviders.Metrics,
		Logger:      a.Logger,
	})

	if a.opts.Server {
		a.JobQueue = operations.NewJobQueue(operations.NewMemoryJobStore(), a.Manager, operations.JobQueueOptions{
			Workers:   cfg.Jobs.Workers,
			QueueSize: cfg.Jobs.QueueSize,
			Retention: cfg.Jobs.Retention,
			Metrics:   a.OTelProviders.Metrics,
			Logger:    a.Logger,
		})
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	otelMiddleware, err := middleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return err
	}

	a.Router = handlers.NewRouter(handlers.RouterOptions{
		Config: a.Config,
		Jobs:   a.JobQueue,
		Hub:    a.WebSocketHub,
		WebSocket: ws.NewHandler(a.WebSocketHub, ws.HandlerOptions{
			AllowedOrigins:  a.Config.Security.AllowedOrigins,
			ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
			Logger:          a.Logger,
		}),
		Metrics:    a.OTelProviders.PrometheusHTTP,
		UploadsDir: a.Paths.UploadsDir,
		OTel:       otelMiddleware,
		Logger:     a.Logger,
	})
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Execute runs one tool synchronously. The response is returned even when
// the run fails.
func (a *Application) Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	return a.Manager.Execute(ctx, req)
}

// Start starts the background services and the HTTP server. It returns
// once the listener goroutine is running.
func (a *Application) Start(ctx context.Context) error {
	if a.Server == nil {
		return errors.New("application was built without a server")
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level),
		slog.String("outputs_dir", a.Paths.OutputsDir),
		slog.String("uploads_dir", a.Paths.UploadsDir))

	a.WebSocketHub.Start()
	a.JobQueue.Start(ctx)

	cancel := a.cancel
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	url := fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)
	a.Logger.InfoContext(ctx, "Application started successfully", slog.String("address", url))

	if a.opts.OpenBrowser {
		go a.openWhenReady(ctx, url)
	}
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	if a.JobQueue != nil {
		a.Logger.InfoContext(ctx, "Stopping job queue")
		if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully", slog.String("error", err.Error()))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	a.Broadcaster.Stop()

	if err := a.Publisher.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing run event publisher", slog.String("error", err.Error()))
	}
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the server until interrupted
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.WithoutCancel(ctx))
}

// performStartupHealthCheck verifies the output directories are writable.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"Outputs": a.Paths.OutputsDir,
		"Uploads": a.Paths.UploadsDir,
		"Logs":    a.Paths.LogsDir,
	}
	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
			continue
		}
		os.Remove(testFile)
	}

	if a.Config.PDF.Enabled && a.Config.PDF.ChromePath != "" {
		if _, err := os.Stat(a.Config.PDF.ChromePath); err != nil {
			warnings = append(warnings, fmt.Sprintf("Chrome not found at %s, PDF reports will fail", a.Config.PDF.ChromePath))
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}

// openWhenReady polls the health endpoint and opens the browser once it
// answers.
func (a *Application) openWhenReady(ctx context.Context, url string) {
	healthURL := url + "/api/health"
	const maxRetries = 10

	for i := 0; i < maxRetries; i++ {
		select {
		case <-ctx.Done():
			return
		case <-infrastructure.Clock().After(500 * time.Millisecond):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			continue
		}

		if err := openBrowser(url + "/api/health"); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to open browser",
				slog.String("error", err.Error()),
				slog.String("url", url))
			fmt.Fprintf(os.Stderr, "\nPVInsight is running at %s\n\n", url)
			return
		}
		a.Logger.InfoContext(ctx, "Browser opened", slog.String("url", url))
		return
	}

	a.Logger.ErrorContext(ctx, "Server did not become ready for browser opening",
		slog.String("url", url),
		slog.Int("max_retries", maxRetries))
}
