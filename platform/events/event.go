// Package events is the in-process publish/subscribe layer the routing
// pipeline uses for post-commit notifications. It carries no business
// logic; the routing event definitions live in internal/events.
package events

import (
	"context"
	"time"
)

// Bus fans domain events out to subscribed handlers.
type Bus interface {
	// Publish dispatches asynchronously. The routing service uses this
	// for post-commit notifications that must never block or fail the
	// assignment call.
	Publish(ctx context.Context, event Event)

	// PublishSync dispatches inline and returns the joined handler errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for events whose EventName matches.
	Subscribe(eventName string, handler Handler)
}

// Event is anything the bus can carry: a name to route on and the time
// the underlying change committed.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// Handler consumes events from the bus.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler, the way the alerts
// module subscribes.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// BaseEvent supplies the occurred-at timestamp routing events embed.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}
