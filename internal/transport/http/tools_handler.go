package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/operations"
)

// ToolsHandler serves the tool catalogue and result schemas.
type ToolsHandler struct {
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewToolsHandler creates a new tools handler
func NewToolsHandler(errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *ToolsHandler {
	logger = infrastructure.WithComponent(logger, "tools_handler")
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger, false)
	}
	return &ToolsHandler{errorHandler: errorHandler, logger: logger}
}

// ListTools handles GET /api/tools
func (h *ToolsHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	tools := operations.Tools()
	render.JSON(w, r, map[string]interface{}{
		"tools": tools,
		"count": len(tools),
	})
}

// GetTool handles GET /api/tools/{id}
func (h *ToolsHandler) GetTool(w http.ResponseWriter, r *http.Request) {
	tool, err := operations.LookupTool(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrToolNotFound)
		return
	}
	render.JSON(w, r, tool)
}

// GetSchema handles GET /api/schemas/{tool}
func (h *ToolsHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := operations.ResultSchema(chi.URLParam(r, "tool"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrToolNotFound)
		return
	}
	render.JSON(w, r, schema)
}
