package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gateflow/gateflow/pkg/eventbus"
	"github.com/gateflow/gateflow/pkg/events"
	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/otelhelper"
	"github.com/gateflow/gateflow/pkg/protocol"
	"github.com/gateflow/gateflow/pkg/rules"
)

// ResultKind is the outcome class of a transition request.
type ResultKind string

const (
	// ResultCommitted means the instance moved to the transition's target
	// state and the move is durably recorded.
	ResultCommitted ResultKind = "committed"
	// ResultPendingApproval means the transition is gated; approvals were
	// requested and the instance stays in its current state.
	ResultPendingApproval ResultKind = "pending_approval"
	// ResultDenied means a permission or validation rule refused the request.
	// Nothing changed.
	ResultDenied ResultKind = "denied"
)

// TransitionResult is the caller-facing outcome of RequestTransition.
type TransitionResult struct {
	Kind   ResultKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`

	Instance  *models.WorkflowInstance `json:"instance"`
	Approvals []*models.Approval       `json:"approvals,omitempty"`
}

// RequestTransition attempts to move an instance along one of its
// definition's transitions. The whole decision runs inside the per-instance
// lock; lifecycle events and notification intents are dispatched after the
// lock is released.
func (e *Engine) RequestTransition(
	ctx context.Context,
	instanceID string,
	transitionID string,
	caller protocol.CallerContext,
	comments string,
) (*TransitionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.request_transition",
		attribute.String(otelhelper.InstanceIDKey, instanceID),
		attribute.String(otelhelper.TransitionIDKey, transitionID),
		attribute.String(otelhelper.ActorKey, caller.SubjectID))
	defer span.End()

	if err := e.validator.Struct(caller); err != nil {
		return nil, fmt.Errorf("invalid caller context: %w", err)
	}

	var (
		result    *TransitionResult
		lifecycle []eventbus.Event
	)

	err := e.locker.Synchronized(ctx, lockKey(instanceID), e.lockTTL, func(ctx context.Context) error {
		var err error
		result, lifecycle, err = e.requestTransitionLocked(ctx, instanceID, transitionID, caller, comments)

		return err
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	e.dispatch(ctx, instanceID, lifecycle)

	return result, nil
}

// requestTransitionLocked runs steps 1-5 of the transition algorithm under
// the instance lock.
func (e *Engine) requestTransitionLocked(
	ctx context.Context,
	instanceID string,
	transitionID string,
	caller protocol.CallerContext,
	comments string,
) (*TransitionResult, []eventbus.Event, error) {
	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	definition, err := e.registry.GetByID(ctx, instance.DefinitionID)
	if err != nil {
		return nil, nil, err
	}

	transition := definition.TransitionByID(transitionID)
	if transition == nil {
		return nil, nil, fmt.Errorf("transition %s: %w", transitionID, ErrTransitionNotFound)
	}

	currentState := definition.StateByID(instance.CurrentStateID)
	if currentState == nil {
		return nil, nil, fmt.Errorf("instance %s current state %s missing from definition %s",
			instance.ID, instance.CurrentStateID, definition.ID)
	}

	if currentState.IsTerminal || instance.Status == models.InstanceStatusArchived {
		return nil, nil, fmt.Errorf("state %s is terminal: %w", currentState.ID, ErrIllegalTransition)
	}

	if transition.FromStateID != instance.CurrentStateID {
		return nil, nil, fmt.Errorf("transition %s starts at %s, instance is at %s: %w",
			transition.ID, transition.FromStateID, instance.CurrentStateID, ErrIllegalTransition)
	}

	if pendingID, pending := instance.PendingTransitionID(); pending {
		return nil, nil, fmt.Errorf("transition %s is pending: %w", pendingID, ErrTransitionAlreadyPending)
	}

	evalCtx, err := e.evaluationContext(ctx, instance, caller)
	if err != nil {
		return nil, nil, err
	}

	if decision := e.checkRules(definition, transition, evalCtx); !decision.Allowed {
		e.logger.With(
			"instance_id", instance.ID,
			"transition_id", transition.ID,
			"actor", caller.SubjectID,
			"reason", decision.Reason,
		).Info("Transition denied")

		return &TransitionResult{
			Kind:     ResultDenied,
			Reason:   decision.Reason,
			Instance: instance,
		}, nil, nil
	}

	if transition.RequiresApproval() {
		return e.gateTransition(ctx, instance, transition)
	}

	lifecycle, err := e.commitLocked(ctx, instance, definition, transition, caller.SubjectID, comments, evalCtx)
	if err != nil {
		return nil, nil, err
	}

	return &TransitionResult{Kind: ResultCommitted, Instance: instance}, lifecycle, nil
}

// gateTransition requests approvals for a gated transition and marks the
// instance as pending. The current state does not change.
func (e *Engine) gateTransition(
	ctx context.Context,
	instance *models.WorkflowInstance,
	transition *models.WorkflowTransition,
) (*TransitionResult, []eventbus.Event, error) {
	pending, err := e.coordinator.RequestApprovals(ctx, instance.ID, transition.ID, transition.Approvers)
	if err != nil {
		return nil, nil, err
	}

	instance.SetPendingTransition(transition.ID)
	instance.UpdatedAt = e.clock.Now()

	if err := e.persistence.Instances().Update(ctx, instance); err != nil {
		return nil, nil, err
	}

	lifecycle := make([]eventbus.Event, 0, len(pending))

	for _, approval := range pending {
		lifecycle = append(lifecycle, events.ApprovalRequested{
			BaseEvent:    events.NewBaseEvent(events.ApprovalRequestedEvent, instance.ID),
			ApprovalID:   approval.ID,
			TransitionID: transition.ID,
			ApproverID:   approval.ApproverID,
			DueDate:      approval.DueDate,
		})
	}

	return &TransitionResult{
		Kind:      ResultPendingApproval,
		Instance:  instance,
		Approvals: pending,
	}, lifecycle, nil
}

// commitLocked performs step 5: moves the instance, runs automation, archives
// on terminal states, persists, and appends the history record. The history
// append happens before the result is returned, inside the same critical
// section as the state change.
func (e *Engine) commitLocked(
	ctx context.Context,
	instance *models.WorkflowInstance,
	definition *models.WorkflowDefinition,
	transition *models.WorkflowTransition,
	actor string,
	comments string,
	evalCtx rules.Context,
) ([]eventbus.Event, error) {
	target := definition.StateByID(transition.ToStateID)
	if target == nil {
		return nil, fmt.Errorf("transition %s targets state %s missing from definition %s",
			transition.ID, transition.ToStateID, definition.ID)
	}

	fromStateID := instance.CurrentStateID
	instance.CurrentStateID = target.ID
	instance.ClearPendingTransition()

	actions := make([]*models.Action, 0, len(transition.AutomationRules)+len(target.EntryRules))
	actions = append(actions, transition.AutomationRules...)
	actions = append(actions, target.EntryRules...)

	evalCtx.StateData = instance.StateData
	intents := e.evaluator.Apply(actions, evalCtx)
	stateData, remaining := rules.ApplySetFields(intents, instance.StateData)
	instance.StateData = stateData

	if target.IsTerminal {
		instance.Status = models.InstanceStatusArchived
	}

	instance.UpdatedAt = e.clock.Now()

	if err := e.persistence.Instances().Update(ctx, instance); err != nil {
		return nil, err
	}

	if _, err := e.recorder.Record(ctx, &models.HistoryEntry{
		InstanceID:   instance.ID,
		Kind:         models.HistoryTransitionCommitted,
		TransitionID: transition.ID,
		FromStateID:  fromStateID,
		ToStateID:    target.ID,
		Actor:        actor,
		Comments:     comments,
	}); err != nil {
		return nil, err
	}

	e.logger.With(
		"instance_id", instance.ID,
		"transition_id", transition.ID,
		"from_state", fromStateID,
		"to_state", target.ID,
		"actor", actor,
	).Info("Transition committed")

	lifecycle := []eventbus.Event{events.TransitionCommitted{
		BaseEvent:    events.NewBaseEvent(events.TransitionCommittedEvent, instance.ID),
		TransitionID: transition.ID,
		FromStateID:  fromStateID,
		ToStateID:    target.ID,
		Actor:        actor,
	}}

	return append(lifecycle, e.intentEvents(instance.ID, remaining)...), nil
}

// abandonLocked clears the pending marker and records the abandonment. The
// instance's current state is untouched; a fresh request for the same
// transition may follow later.
func (e *Engine) abandonLocked(
	ctx context.Context,
	instance *models.WorkflowInstance,
	transitionID string,
	cause string,
	comments string,
) ([]eventbus.Event, error) {
	instance.ClearPendingTransition()
	instance.UpdatedAt = e.clock.Now()

	if err := e.persistence.Instances().Update(ctx, instance); err != nil {
		return nil, err
	}

	if _, err := e.recorder.Record(ctx, &models.HistoryEntry{
		InstanceID:   instance.ID,
		Kind:         models.HistoryTransitionAbandoned,
		TransitionID: transitionID,
		Comments:     comments,
		Metadata:     map[string]any{"cause": cause},
	}); err != nil {
		return nil, err
	}

	e.logger.With(
		"instance_id", instance.ID,
		"transition_id", transitionID,
		"cause", cause,
	).Info("Pending transition abandoned")

	return []eventbus.Event{events.TransitionAbandoned{
		BaseEvent:    events.NewBaseEvent(events.TransitionAbandonedEvent, instance.ID),
		TransitionID: transitionID,
		Cause:        cause,
		Comments:     comments,
	}}, nil
}

// checkRules evaluates permission rules for the transition and its target
// state, then the definition's instance rules and the transition's validation
// rules. The first failing check wins.
func (e *Engine) checkRules(
	definition *models.WorkflowDefinition,
	transition *models.WorkflowTransition,
	evalCtx rules.Context,
) rules.Decision {
	if decision := e.evaluator.EvaluatePermissions(transition.RequiredPermissions, evalCtx); !decision.Allowed {
		return decision
	}

	if target := definition.StateByID(transition.ToStateID); target != nil {
		if decision := e.evaluator.EvaluatePermissions(target.RequiredPermissions, evalCtx); !decision.Allowed {
			return decision
		}
	}

	if decision := e.evaluator.EvaluateConditions(definition.InstanceRules, evalCtx); !decision.Allowed {
		return decision
	}

	return e.evaluator.EvaluateConditions(transition.ValidationRules, evalCtx)
}

// evaluationContext assembles the rule evaluation context for a caller.
func (e *Engine) evaluationContext(
	ctx context.Context,
	instance *models.WorkflowInstance,
	caller protocol.CallerContext,
) (rules.Context, error) {
	callerPermissions, err := e.permissions.ResolveCallerPermissions(ctx, caller)
	if err != nil {
		return rules.Context{}, fmt.Errorf("failed to resolve caller permissions: %w", err)
	}

	snapshot, err := e.entities.LoadEntitySnapshot(ctx, instance.EntityType, instance.EntityID)
	if err != nil {
		return rules.Context{}, fmt.Errorf("failed to load entity snapshot: %w", err)
	}

	return rules.Context{
		CallerPermissions: callerPermissions,
		StateData:         instance.StateData,
		Entity:            snapshot,
	}, nil
}

// intentEvents converts post-commit automation intents into dispatchable
// lifecycle events.
func (e *Engine) intentEvents(instanceID string, intents []rules.Intent) []eventbus.Event {
	lifecycle := make([]eventbus.Event, 0, len(intents))

	for _, intent := range intents {
		switch it := intent.(type) {
		case rules.NotifyIntent:
			base := events.NewBaseEvent(events.NotificationIntentEvent, instanceID)
			base.Metadata = it.Metadata
			lifecycle = append(lifecycle, events.NotificationIntent{
				BaseEvent: base,
				Channel:   it.Channel,
				Recipient: it.Recipient,
				Template:  it.Template,
			})
		case rules.ApprovalRequestIntent:
			base := events.NewBaseEvent(events.NotificationIntentEvent, instanceID)
			base.Metadata = it.Metadata
			lifecycle = append(lifecycle, events.NotificationIntent{
				BaseEvent: base,
				Channel:   "approval",
				Recipient: it.Recipient,
				Template:  it.Template,
			})
		}
	}

	return lifecycle
}
