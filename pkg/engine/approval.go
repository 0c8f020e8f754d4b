package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gateflow/gateflow/pkg/approvals"
	"github.com/gateflow/gateflow/pkg/eventbus"
	"github.com/gateflow/gateflow/pkg/events"
	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/otelhelper"
	"github.com/gateflow/gateflow/pkg/protocol"
	"github.com/gateflow/gateflow/pkg/rules"
)

const (
	abandonCauseRejected = "rejected"
	abandonCauseExpired  = "expired"

	// sweepActor is recorded on transitions settled by the expiration sweep
	// rather than by a caller.
	sweepActor = "system:sweeper"
)

// ApprovalResult is the caller-facing outcome of ResolveApproval.
type ApprovalResult struct {
	Approval *models.Approval         `json:"approval"`
	Outcome  approvals.Outcome        `json:"outcome"`
	Instance *models.WorkflowInstance `json:"instance,omitempty"`
}

// ResolveApproval applies a decision to one pending approval. A completed
// quorum commits the gated transition; a rejection abandons it. Either way
// the instance mutation happens inside the per-instance lock, serialized
// against concurrent transition requests and the expiration sweep.
func (e *Engine) ResolveApproval(
	ctx context.Context,
	approvalID string,
	decision approvals.Decision,
	caller protocol.CallerContext,
	comments string,
) (*ApprovalResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.resolve_approval",
		attribute.String(otelhelper.ApprovalIDKey, approvalID),
		attribute.String(otelhelper.ActorKey, caller.SubjectID))
	defer span.End()

	if err := e.validator.Struct(caller); err != nil {
		return nil, fmt.Errorf("invalid caller context: %w", err)
	}

	approval, err := e.persistence.Approvals().GetByID(ctx, approvalID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	var (
		result    *ApprovalResult
		lifecycle []eventbus.Event
	)

	err = e.locker.Synchronized(ctx, lockKey(approval.InstanceID), e.lockTTL, func(ctx context.Context) error {
		resolution, err := e.coordinator.Resolve(ctx, approvalID, decision, caller.SubjectID, comments)
		if err != nil {
			return err
		}

		result = &ApprovalResult{Approval: resolution.Approval, Outcome: resolution.Outcome}

		switch resolution.Outcome {
		case approvals.OutcomeQuorum:
			lifecycle, err = e.commitPendingTransition(ctx, resolution, caller.SubjectID, comments)
		case approvals.OutcomeRejected:
			lifecycle, err = e.abandonPendingTransition(ctx, resolution, abandonCauseRejected, comments)
		case approvals.OutcomePending, approvals.OutcomeExpired:
		}
		if err != nil {
			return err
		}

		if result.Instance == nil {
			instance, err := e.persistence.Instances().GetByID(ctx, resolution.InstanceID)
			if err != nil {
				return err
			}

			result.Instance = instance
		}

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.dispatch(ctx, approval.InstanceID, lifecycle)

	return result, nil
}

// HandleApprovalExpiry is the sweeper callback for an overdue approval. It
// expires the approval under the instance lock, enqueues one escalation
// intent, and settles the pending transition when the round is decided:
// hard deadlines abandon it, and a soft lapse that ends the round either
// commits on an approved sibling or abandons an unapproved round.
func (e *Engine) HandleApprovalExpiry(ctx context.Context, approval *models.Approval) error {
	var lifecycle []eventbus.Event

	err := e.locker.Synchronized(ctx, lockKey(approval.InstanceID), e.lockTTL, func(ctx context.Context) error {
		resolution, err := e.coordinator.Expire(ctx, approval.ID)
		if err != nil {
			// A concurrent Resolve won the race; nothing left to expire.
			if errors.Is(err, approvals.ErrApprovalAlreadyResolved) {
				return nil
			}

			return err
		}

		lifecycle = append(lifecycle, events.ApprovalEscalated{
			BaseEvent:    events.NewBaseEvent(events.ApprovalEscalatedEvent, approval.InstanceID),
			ApprovalID:   approval.ID,
			TransitionID: approval.TransitionID,
			ApproverID:   approval.ApproverID,
			HardDeadline: approval.HardDeadline,
		})

		switch resolution.Outcome {
		case approvals.OutcomeExpired:
			abandoned, err := e.abandonPendingTransition(ctx, resolution, abandonCauseExpired, "")
			if err != nil {
				return err
			}

			lifecycle = append(lifecycle, abandoned...)
		case approvals.OutcomeQuorum:
			// The lapsed row was the last pending one and a sibling had
			// already approved; the round is complete.
			committed, err := e.commitPendingTransition(ctx, resolution, sweepActor, "")
			if err != nil {
				return err
			}

			lifecycle = append(lifecycle, committed...)
		case approvals.OutcomePending, approvals.OutcomeRejected:
		}

		return nil
	})
	if err != nil {
		return err
	}

	e.dispatch(ctx, approval.InstanceID, lifecycle)

	return nil
}

// HandleApprovalReminder is the sweeper callback for a reminder-due approval.
func (e *Engine) HandleApprovalReminder(ctx context.Context, approval *models.Approval) error {
	fresh, err := e.persistence.Approvals().GetByID(ctx, approval.ID)
	if err != nil {
		return err
	}

	if fresh.Resolved() || fresh.ReminderSent {
		return nil
	}

	if err := e.coordinator.MarkReminderSent(ctx, fresh.ID); err != nil {
		return err
	}

	e.dispatch(ctx, fresh.InstanceID, []eventbus.Event{events.ApprovalReminder{
		BaseEvent:    events.NewBaseEvent(events.ApprovalReminderEvent, fresh.InstanceID),
		ApprovalID:   fresh.ID,
		TransitionID: fresh.TransitionID,
		ApproverID:   fresh.ApproverID,
		DueDate:      fresh.DueDate,
	}})

	return nil
}

// commitPendingTransition re-enters the commit step once an approval quorum
// is reached.
func (e *Engine) commitPendingTransition(
	ctx context.Context,
	resolution *approvals.Resolution,
	actor string,
	comments string,
) ([]eventbus.Event, error) {
	instance, err := e.persistence.Instances().GetByID(ctx, resolution.InstanceID)
	if err != nil {
		return nil, err
	}

	pendingID, pending := instance.PendingTransitionID()
	if !pending || pendingID != resolution.TransitionID {
		e.logger.Warn("Quorum reached for a transition no longer pending",
			"instance_id", instance.ID,
			"transition_id", resolution.TransitionID)

		return nil, nil
	}

	definition, err := e.registry.GetByID(ctx, instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	transition := definition.TransitionByID(resolution.TransitionID)
	if transition == nil {
		return nil, fmt.Errorf("transition %s: %w", resolution.TransitionID, ErrTransitionNotFound)
	}

	snapshot, err := e.entities.LoadEntitySnapshot(ctx, instance.EntityType, instance.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity snapshot: %w", err)
	}

	evalCtx := rules.Context{StateData: instance.StateData, Entity: snapshot}

	return e.commitLocked(ctx, instance, definition, transition, actor, comments, evalCtx)
}

// abandonPendingTransition clears the pending marker after a rejection or a
// hard-deadline expiry.
func (e *Engine) abandonPendingTransition(
	ctx context.Context,
	resolution *approvals.Resolution,
	cause string,
	comments string,
) ([]eventbus.Event, error) {
	instance, err := e.persistence.Instances().GetByID(ctx, resolution.InstanceID)
	if err != nil {
		return nil, err
	}

	pendingID, pending := instance.PendingTransitionID()
	if !pending || pendingID != resolution.TransitionID {
		return nil, nil
	}

	return e.abandonLocked(ctx, instance, resolution.TransitionID, cause, comments)
}
