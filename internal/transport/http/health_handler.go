package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"pvinsight/internal/config"
	"pvinsight/internal/infrastructure"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	jobs    StatsProvider
	hub     StatsProvider
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. jobs and hub may be nil.
func NewHealthHandler(jobs, hub StatsProvider, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		jobs:    jobs,
		hub:     hub,
		started: infrastructure.Now(),
		logger:  infrastructure.WithComponent(logger, "health_handler"),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"app":       config.AppName,
		"version":   config.AppVersion,
		"timestamp": infrastructure.Now().UTC(),
		"uptime":    infrastructure.Clock().Since(h.started).Round(time.Second).String(),
	}
	if h.jobs != nil {
		resp["jobs"] = h.jobs.Stats()
	}
	if h.hub != nil {
		resp["websocket"] = h.hub.Stats()
	}
	render.JSON(w, r, resp)
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "alive"})
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"app":     config.AppName,
		"version": config.AppVersion,
	})
}
