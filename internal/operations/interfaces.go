package operations

import (
	"context"

	"pvinsight/internal/notify"
)

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// EventPublisher publishes run-completed events.
type EventPublisher interface {
	PublishRun(ctx context.Context, event notify.RunEvent) error
}
