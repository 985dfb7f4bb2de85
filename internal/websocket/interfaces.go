package websocket

import (
	"time"
)

// Connection is the subset of a websocket connection used by Client.
// Tests substitute an in-memory implementation.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// MetricsCollector records hub activity. *Metrics is the production
// implementation; a nil *Metrics discards everything.
type MetricsCollector interface {
	RecordConnection()
	RecordDisconnection(duration time.Duration)
	RecordMessage(direction string, size int)
	RecordDroppedMessage()
}
