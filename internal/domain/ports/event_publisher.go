package ports

import (
	"context"

	"github.com/formsage/backend/internal/domain/events"
)

// EventHandler handles one published event payload
type EventHandler func(ctx context.Context, payload interface{}) error

// EventPublisher is the in-process lifecycle event fabric. The pipeline
// publishes, the action dispatcher subscribes.
type EventPublisher interface {
	// Subscribe registers a handler and returns an unsubscribe func.
	Subscribe(eventType events.EventType, handler EventHandler) func()

	// Publish delivers the payload to every subscriber of the event type.
	Publish(ctx context.Context, eventType events.EventType, payload interface{}) error
}
