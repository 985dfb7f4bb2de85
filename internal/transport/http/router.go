package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pvinsight/internal/config"
	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/middleware"
	"pvinsight/internal/operations"
)

// RouterOptions carries the dependencies of the API router.
type RouterOptions struct {
	Config *config.Config
	Jobs   JobService
	// Hub reports websocket statistics on /api/health.
	Hub StatsProvider
	// WebSocket serves /ws. nil leaves the route out.
	WebSocket http.Handler
	// Metrics serves /metrics. nil falls back to the default registry.
	Metrics http.Handler
	// UploadsDir overrides cfg.Paths.UploadsDir with its resolved form.
	UploadsDir string
	// OTel traces requests when set.
	OTel   *middleware.OTelMiddleware
	Logger *slog.Logger
}

// NewRouter builds the PVInsight API.
func NewRouter(opts RouterOptions) chi.Router {
	cfg := opts.Config
	logger := infrastructure.WithComponent(opts.Logger, "router")
	errorHandler := apperrors.NewErrorHandler(logger, cfg.Logging.Level == "debug")
	validator := middleware.NewValidator()
	uploadsDir := opts.UploadsDir
	if uploadsDir == "" {
		uploadsDir = cfg.Paths.UploadsDir
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.OTel != nil {
		r.Use(opts.OTel.Handler)
	}
	r.Use(middleware.StructuredLogger(opts.Logger))
	r.Use(apperrors.RecoveryMiddleware(errorHandler))
	r.Use(middleware.DefaultSecureHeaders().Handler)
	if cfg.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSFromConfig(cfg.Security, opts.Logger)))
	}
	r.Use(middleware.FromConfig(cfg.Security.RateLimit, opts.Logger, "/ws", "/metrics", "/api/health").Handler)
	r.Use(middleware.AuditLog(opts.Logger))

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	health := NewHealthHandler(opts.Jobs, opts.Hub, opts.Logger)
	tools := NewToolsHandler(errorHandler, opts.Logger)
	jobs := NewJobsHandler(opts.Jobs, JobsHandlerOptions{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		UploadsDir:     uploadsDir,
		Defaults:       operations.HourlyOptions(cfg.Analysis),
		Validator:      validator,
		ErrorHandler:   errorHandler,
		Logger:         opts.Logger,
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

		r.Get("/health", health.HealthCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/version", health.Version)

		r.Get("/tools", tools.ListTools)
		r.Get("/tools/{id}", tools.GetTool)
		r.Get("/schemas/{tool}", tools.GetSchema)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeValidator(errorHandler, "multipart/form-data"))
			r.Post("/hourly", jobs.SubmitHourly)
			r.Post("/tmy", jobs.SubmitTMY)
			r.Post("/tmy/compare", jobs.SubmitCompare)
		})

		r.Mount("/jobs", jobs.Routes())
	})

	if opts.WebSocket != nil {
		r.Handle("/ws", opts.WebSocket)
	}
	r.Handle("/metrics", NewMetricsHandler(opts.Metrics))

	return r
}
