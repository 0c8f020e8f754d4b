// Package eventbus provides the notification dispatch infrastructure for
// workflow lifecycle intents.
package eventbus

import (
	"context"

	"github.com/gateflow/gateflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// Dispatcher is the fire-and-forget intent sink consumed by the engine and
// the approval coordinator. Delivery failures are logged by implementations
// and never surfaced to the caller's transition path.
type Dispatcher interface {
	Enqueue(ctx context.Context, key string, event Event) error
}

type EventHandler func(ctx context.Context, event any) error

// EventBus is a dispatcher that also supports consuming intents, used by
// delivery workers.
type EventBus interface {
	Dispatcher
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
	Close() error
	GenerateID() string
}
