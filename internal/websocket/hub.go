package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"pvinsight/internal/infrastructure"
)

// Message types written by the hub. Job snapshots reuse the event type
// passed to BroadcastUpdate.
const (
	TypeConnection = "connection"

	// Client control messages
	TypeHeartbeat   = "heartbeat"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

const defaultBroadcastBuffer = 256

// Message is the envelope of every frame the hub sends.
type Message struct {
	Type      string      `json:"type"`
	RunID     string      `json:"run_id,omitempty"`
	Status    string      `json:"status,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type outbound struct {
	runID   string
	payload []byte
}

// HubOptions configures a Hub. Zero values select defaults.
type HubOptions struct {
	PingPeriod      time.Duration
	PongWait        time.Duration
	BroadcastBuffer int
	Metrics         MetricsCollector
	Logger          *slog.Logger
}

// Hub maintains the set of active clients and fans job snapshots out to
// them. Clients that subscribed to specific runs only receive those runs.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	sent    int64

	pingPeriod time.Duration
	pongWait   time.Duration

	logger  *slog.Logger
	metrics MetricsCollector

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new Hub instance
func NewHub(opts HubOptions) *Hub {
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = (opts.PongWait * 9) / 10
	}
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = defaultBroadcastBuffer
	}
	if opts.Metrics == nil {
		opts.Metrics = (*Metrics)(nil)
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, opts.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pingPeriod: opts.PingPeriod,
		pongWait:   opts.PongWait,
		logger:     infrastructure.WithComponent(opts.Logger, "websocket.hub"),
		metrics:    opts.Metrics,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub's main loop. It owns the client set.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.closeAll()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.RecordConnection()

			h.clientLogger(client).Info("Client registered",
				slog.Int("total_clients", count),
				slog.String("remote_addr", client.remoteAddr))

			h.sendWelcome(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; !ok {
				h.mu.Unlock()
				continue
			}
			delete(h.clients, client)
			close(client.send)
			count := len(h.clients)
			h.mu.Unlock()

			lifetime := infrastructure.Clock().Since(client.connectedAt)
			h.metrics.RecordDisconnection(lifetime)
			h.clientLogger(client).Info("Client unregistered",
				slog.Int("total_clients", count),
				slog.Duration("connection_duration", lifetime))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.wants(msg.runID) {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	failed := 0
	for _, client := range targets {
		select {
		case client.send <- msg.payload:
			h.mu.Lock()
			h.sent++
			h.mu.Unlock()
		default:
			failed++
			h.metrics.RecordDroppedMessage()
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.clientLogger(client).Warn("Client send buffer full, disconnecting")
		}
	}

	if failed > 0 {
		h.logger.Warn("Some clients failed to receive broadcast",
			slog.Int("success_count", len(targets)-failed),
			slog.Int("fail_count", failed))
	}
}

func (h *Hub) sendWelcome(client *Client) {
	payload, err := json.Marshal(Message{
		Type: TypeConnection,
		Data: map[string]interface{}{
			"status":    "connected",
			"message":   "Connected to PVInsight",
			"client_id": client.id,
		},
		Timestamp: infrastructure.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.clientLogger(client).Warn("Failed to send connection message - client buffer full")
	}
}

// BroadcastUpdate queues a message for every client interested in runID.
// The hub never blocks its caller: when the queue is full the message is
// dropped and counted.
func (h *Hub) BroadcastUpdate(eventType, runID, status string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      eventType,
		RunID:     runID,
		Status:    status,
		Data:      data,
		Timestamp: infrastructure.Now().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", eventType))
		return
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- outbound{runID: runID, payload: payload}:
	default:
		h.metrics.RecordDroppedMessage()
		h.logger.Warn("Broadcast queue full, dropping message",
			slog.String("message_type", eventType),
			slog.String("run_id", runID))
	}
}

// Register adds a client to the hub. It returns false once the hub has
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns counters for the health endpoint.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"active_clients": len(h.clients),
		"messages_sent":  h.sent,
		"queued":         len(h.broadcast),
	}
}

// Stop shuts the hub down and disconnects every client. It is safe to
// call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)

		h.mu.RLock()
		running := h.running
		h.mu.RUnlock()

		if running {
			<-h.done
			return
		}
		h.closeAll()
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) clientLogger(c *Client) *slog.Logger {
	logger := h.logger.With(slog.String("client_id", c.id))
	if c.traceID != "" {
		logger = logger.With(slog.String("trace_id", c.traceID))
	}
	return logger
}
