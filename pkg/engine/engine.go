// Package engine orchestrates workflow instances: creation, transition
// execution, approval gating and the audit trail. It is the sole writer of
// instance state; every mutation happens inside the per-instance lock.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"

	"github.com/gateflow/gateflow/pkg/approvals"
	"github.com/gateflow/gateflow/pkg/eventbus"
	"github.com/gateflow/gateflow/pkg/history"
	"github.com/gateflow/gateflow/pkg/lock"
	"github.com/gateflow/gateflow/pkg/persistence"
	"github.com/gateflow/gateflow/pkg/protocol"
	"github.com/gateflow/gateflow/pkg/registry"
	"github.com/gateflow/gateflow/pkg/rules"
)

const defaultLockTTL = 30 * time.Second

// Engine is the workflow orchestrator. All exported operations return
// explicit results or errors; expected business outcomes (denials, pending
// approvals, rejections) are results, never errors.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.DefinitionRegistry
	evaluator   *rules.Evaluator
	recorder    *history.Recorder
	coordinator *approvals.Coordinator

	entities    protocol.EntityStore
	permissions protocol.PermissionResolver
	dispatcher  eventbus.Dispatcher
	locker      lock.InstanceLocker
	clock       protocol.Clock

	validator *validator.Validate
	logger    *slog.Logger
	tracer    trace.Tracer
	lockTTL   time.Duration
}

// NewEngine wires the orchestrator. The tracer may be nil; spans are then
// skipped.
func NewEngine(
	persist persistence.Persistence,
	defRegistry *registry.DefinitionRegistry,
	evaluator *rules.Evaluator,
	recorder *history.Recorder,
	coordinator *approvals.Coordinator,
	entities protocol.EntityStore,
	permissions protocol.PermissionResolver,
	dispatcher eventbus.Dispatcher,
	locker lock.InstanceLocker,
	clock protocol.Clock,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Engine {
	return &Engine{
		persistence: persist,
		registry:    defRegistry,
		evaluator:   evaluator,
		recorder:    recorder,
		coordinator: coordinator,
		entities:    entities,
		permissions: permissions,
		dispatcher:  dispatcher,
		locker:      locker,
		clock:       clock,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "engine"),
		tracer:      tracer,
		lockTTL:     defaultLockTTL,
	}
}

// lockKey namespaces the per-instance lock so shared lock backends do not
// collide with other keyspaces.
func lockKey(instanceID string) string {
	return "gateflow:instance:" + instanceID
}

// dispatch enqueues lifecycle events after the instance lock is released.
// Dispatch is best effort; failures are logged with enough context to retry
// manually and never affect the already-committed operation.
func (e *Engine) dispatch(ctx context.Context, instanceID string, events []eventbus.Event) {
	for _, event := range events {
		if err := e.dispatcher.Enqueue(ctx, instanceID, event); err != nil {
			e.logger.Error("Failed to dispatch lifecycle event",
				"instance_id", instanceID,
				"event_type", event.GetType(),
				"error", err)
		}
	}
}
