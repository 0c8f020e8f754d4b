// Package mocks provides testify mocks and fakes for the engine's
// collaborator interfaces.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/gateflow/gateflow/pkg/eventbus"
	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/protocol"
)

// MockEntityStore is a mock implementation of protocol.EntityStore.
type MockEntityStore struct {
	mock.Mock
}

func (m *MockEntityStore) LoadEntitySnapshot(ctx context.Context, entityType, entityID string) (map[string]any, error) {
	args := m.Called(ctx, entityType, entityID)

	snapshot, _ := args.Get(0).(map[string]any)

	return snapshot, args.Error(1)
}

// MockPermissionResolver is a mock implementation of
// protocol.PermissionResolver.
type MockPermissionResolver struct {
	mock.Mock
}

func (m *MockPermissionResolver) ResolveCallerPermissions(ctx context.Context, caller protocol.CallerContext) ([]string, error) {
	args := m.Called(ctx, caller)

	permissions, _ := args.Get(0).([]string)

	return permissions, args.Error(1)
}

func (m *MockPermissionResolver) ResolveApprovers(ctx context.Context, approverType models.ApproverType, approverID string) ([]string, error) {
	args := m.Called(ctx, approverType, approverID)

	approvers, _ := args.Get(0).([]string)

	return approvers, args.Error(1)
}

// CapturingDispatcher records every enqueued event for assertion. Safe for
// concurrent use.
type CapturingDispatcher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (d *CapturingDispatcher) Enqueue(_ context.Context, _ string, event eventbus.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events = append(d.events, event)

	return nil
}

// Events returns a snapshot of the captured events.
func (d *CapturingDispatcher) Events() []eventbus.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]eventbus.Event, len(d.events))
	copy(out, d.events)

	return out
}

// Reset drops the captured events.
func (d *CapturingDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events = nil
}

// FakeClock is a manually advanced protocol.Clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at the given time.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
