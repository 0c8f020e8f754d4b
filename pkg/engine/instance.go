package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gateflow/gateflow/pkg/eventbus"
	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/otelhelper"
	"github.com/gateflow/gateflow/pkg/rules"
)

// InstanceView is the read model returned by GetInstanceStatus.
type InstanceView struct {
	Instance     *models.WorkflowInstance `json:"instance"`
	CurrentState *models.WorkflowState    `json:"current_state"`

	PendingTransitionID string             `json:"pending_transition_id,omitempty"`
	PendingApprovals    []*models.Approval `json:"pending_approvals,omitempty"`
}

// CreateInstance starts the lifecycle for one entity. The definition is the
// explicit one when definitionID is given, otherwise the default for the
// entity type. The new instance begins in the definition's initial state and
// the initial state's entry rules run immediately.
func (e *Engine) CreateInstance(
	ctx context.Context,
	entityType string,
	entityID string,
	definitionID string,
) (*models.WorkflowInstance, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.create_instance",
		attribute.String(otelhelper.EntityTypeKey, entityType),
		attribute.String(otelhelper.EntityIDKey, entityID))
	defer span.End()

	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("entity type and entity id are required")
	}

	definition, err := e.resolveDefinition(ctx, entityType, definitionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	initial := definition.InitialState()
	now := e.clock.Now()

	instance := &models.WorkflowInstance{
		ID:             uuid.New().String(),
		DefinitionID:   definition.ID,
		EntityType:     entityType,
		EntityID:       entityID,
		CurrentStateID: initial.ID,
		Status:         models.InstanceStatusActive,
		StateData:      make(map[string]any),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.validator.Struct(instance); err != nil {
		return nil, fmt.Errorf("invalid instance: %w", err)
	}

	if err := e.persistence.Instances().Create(ctx, instance); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if _, err := e.recorder.Record(ctx, &models.HistoryEntry{
		InstanceID: instance.ID,
		Kind:       models.HistoryInstanceCreated,
		ToStateID:  initial.ID,
	}); err != nil {
		return nil, err
	}

	var events []eventbus.Event

	if len(initial.EntryRules) > 0 {
		events = e.runEntryAutomation(ctx, instance, initial)

		if err := e.persistence.Instances().Update(ctx, instance); err != nil {
			return nil, err
		}
	}

	e.logger.With(
		"instance_id", instance.ID,
		"entity_type", entityType,
		"entity_id", entityID,
		"definition_id", definition.ID,
	).Info("Created workflow instance")

	e.dispatch(ctx, instance.ID, events)

	return instance, nil
}

// GetInstanceStatus returns the instance, its current state, and any pending
// gated transition with its outstanding approvals.
func (e *Engine) GetInstanceStatus(ctx context.Context, instanceID string) (*InstanceView, error) {
	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	definition, err := e.registry.GetByID(ctx, instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	view := &InstanceView{
		Instance:     instance,
		CurrentState: definition.StateByID(instance.CurrentStateID),
	}

	if pendingID, ok := instance.PendingTransitionID(); ok {
		view.PendingTransitionID = pendingID

		pending, err := e.coordinator.ListPending(ctx, instance.ID, pendingID)
		if err != nil {
			return nil, err
		}

		view.PendingApprovals = pending
	}

	return view, nil
}

// GetHistory returns the instance's audit trail, oldest entry first.
func (e *Engine) GetHistory(ctx context.Context, instanceID string) ([]*models.HistoryEntry, error) {
	if _, err := e.persistence.Instances().GetByID(ctx, instanceID); err != nil {
		return nil, err
	}

	return e.recorder.ListByInstance(ctx, instanceID)
}

// resolveDefinition picks the definition for a new instance and rejects a
// definition bound to a different entity type.
func (e *Engine) resolveDefinition(
	ctx context.Context,
	entityType string,
	definitionID string,
) (*models.WorkflowDefinition, error) {
	if definitionID == "" {
		return e.registry.DefaultForEntityType(ctx, entityType)
	}

	definition, err := e.registry.GetByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	if definition.EntityType != entityType {
		return nil, fmt.Errorf("definition %s targets entity type %q, not %q",
			definition.ID, definition.EntityType, entityType)
	}

	return definition, nil
}

// runEntryAutomation applies a state's entry rules to the instance and
// returns the resulting lifecycle events for post-persist dispatch.
func (e *Engine) runEntryAutomation(
	ctx context.Context,
	instance *models.WorkflowInstance,
	state *models.WorkflowState,
) []eventbus.Event {
	if len(state.EntryRules) == 0 {
		return nil
	}

	snapshot, err := e.entities.LoadEntitySnapshot(ctx, instance.EntityType, instance.EntityID)
	if err != nil {
		e.logger.Error("Failed to load entity snapshot for entry automation",
			"instance_id", instance.ID, "error", err)

		snapshot = nil
	}

	intents := e.evaluator.Apply(state.EntryRules, rules.Context{
		StateData: instance.StateData,
		Entity:    snapshot,
	})
	stateData, remaining := rules.ApplySetFields(intents, instance.StateData)
	instance.StateData = stateData

	return e.intentEvents(instance.ID, remaining)
}
