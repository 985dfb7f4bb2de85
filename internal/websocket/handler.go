package websocket

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"pvinsight/internal/infrastructure"
)

// HandlerOptions configures the upgrade endpoint.
type HandlerOptions struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	Logger          *slog.Logger
}

// Handler upgrades HTTP requests and attaches the connection to a hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	origins  map[string]bool
	logger   *slog.Logger
}

// NewHandler creates the /ws endpoint for hub.
func NewHandler(hub *Hub, opts HandlerOptions) *Handler {
	h := &Handler{
		hub:     hub,
		origins: make(map[string]bool, len(opts.AllowedOrigins)),
		logger:  infrastructure.WithComponent(opts.Logger, "websocket.handler"),
	}
	for _, o := range opts.AllowedOrigins {
		h.origins[o] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts same-host requests, requests without an Origin
// header and the configured origins. "*" allows everything.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.origins["*"] || h.origins[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && u.Host == r.Host {
		return true
	}
	h.logger.WarnContext(r.Context(), "WebSocket origin not allowed",
		slog.String("origin", origin),
		slog.String("host", r.Host))
	return false
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.ErrorContext(r.Context(), "WebSocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.hub, gorillaConn{conn}, infrastructure.GetTraceID(r.Context()))
	h.logger.InfoContext(r.Context(), "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", client.remoteAddr))
	client.Serve()
}
