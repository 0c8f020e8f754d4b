package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateflow/gateflow/pkg/channels/gochannel"
	"github.com/gateflow/gateflow/pkg/events"
)

func testEventBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestEventBusDeliversTypedEvents(t *testing.T) {
	bus := testEventBus(t)

	received := make(chan *events.TransitionCommitted, 1)

	require.NoError(t, bus.Handle(events.TransitionCommittedEvent, func(_ context.Context, event any) error {
		committed, ok := event.(*events.TransitionCommitted)
		if ok {
			received <- committed
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	sent := events.TransitionCommitted{
		BaseEvent:    events.NewBaseEvent(events.TransitionCommittedEvent, "inst-1"),
		TransitionID: "submit",
		FromStateID:  "draft",
		ToStateID:    "review",
		Actor:        "user:alice",
	}
	require.NoError(t, bus.Enqueue(t.Context(), "inst-1", sent))

	select {
	case committed := <-received:
		assert.Equal(t, "inst-1", committed.InstanceID)
		assert.Equal(t, "submit", committed.TransitionID)
		assert.Equal(t, "draft", committed.FromStateID)
		assert.Equal(t, "review", committed.ToStateID)
		assert.Equal(t, "user:alice", committed.Actor)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestEventBusIgnoresUnsubscribedTypes(t *testing.T) {
	bus := testEventBus(t)

	received := make(chan any, 2)

	require.NoError(t, bus.Handle(events.ApprovalRequestedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler is registered for notification intents; they are acked and
	// dropped without blocking later events.
	require.NoError(t, bus.Enqueue(t.Context(), "inst-1", events.NotificationIntent{
		BaseEvent: events.NewBaseEvent(events.NotificationIntentEvent, "inst-1"),
		Channel:   "email",
		Recipient: "ops@example.com",
	}))
	require.NoError(t, bus.Enqueue(t.Context(), "inst-1", events.ApprovalRequested{
		BaseEvent:  events.NewBaseEvent(events.ApprovalRequestedEvent, "inst-1"),
		ApprovalID: "a1",
	}))

	select {
	case event := <-received:
		requested, ok := event.(*events.ApprovalRequested)
		require.True(t, ok)
		assert.Equal(t, "a1", requested.ApprovalID)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribed event was not delivered")
	}

	assert.Empty(t, received)
}

func TestEventBusGenerateID(t *testing.T) {
	bus := testEventBus(t)

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
