package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pvinsight/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 256
)

// controlMessage is what browsers send to the hub.
type controlMessage struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	// Runs this client subscribed to. Empty means every run.
	subMu sync.RWMutex
	runs  map[string]bool

	logger *slog.Logger
}

// NewClient creates a client for conn. traceID may be empty.
func NewClient(hub *Hub, conn Connection, traceID string) *Client {
	id := uuid.New().String()
	logger := hub.logger.With(slog.String("client_id", id))
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: infrastructure.Now(),
		runs:        make(map[string]bool),
		logger:      logger,
	}
}

// ID returns the client identifier sent in the welcome message.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) wants(runID string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.runs) == 0 || runID == "" {
		return true
	}
	return c.runs[runID]
}

func (c *Client) subscribe(runID string) {
	c.subMu.Lock()
	c.runs[runID] = true
	c.subMu.Unlock()
}

func (c *Client) unsubscribe(runID string) {
	c.subMu.Lock()
	if runID == "" {
		c.runs = make(map[string]bool)
	} else {
		delete(c.runs, runID)
	}
	c.subMu.Unlock()
}

// handleControl applies one client frame. Unknown frames are ignored.
func (c *Client) handleControl(raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Debug("Ignoring malformed client message", slog.String("error", err.Error()))
		return
	}
	switch msg.Type {
	case TypeHeartbeat:
	case TypeSubscribe:
		if msg.RunID != "" {
			c.subscribe(msg.RunID)
			c.logger.Debug("Client subscribed", slog.String("run_id", msg.RunID))
		}
	case TypeUnsubscribe:
		c.unsubscribe(msg.RunID)
	default:
		c.logger.Debug("Ignoring client message", slog.String("type", msg.Type))
	}
}

// ReadPump pumps messages from the websocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	pongWait := c.hub.pongWait
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("Unexpected WebSocket close error", slog.String("error", err.Error()))
			}
			return
		}
		c.hub.metrics.RecordMessage(DirectionReceived, len(message))
		c.handleControl(message)
	}
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Error writing message to WebSocket", slog.String("error", err.Error()))
				return
			}
			c.hub.metrics.RecordMessage(DirectionSent, len(message))

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping message", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Serve registers the client and starts both pumps. It returns
// immediately.
func (c *Client) Serve() {
	if !c.hub.Register(c) {
		c.conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}

type gorillaConn struct {
	*websocket.Conn
}

func (g gorillaConn) RemoteAddr() string {
	if addr := g.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
