package models

import "time"

// InstanceStatus is the lifecycle state of a workflow instance record itself,
// independent of the workflow state the instance is in.
type InstanceStatus string

const (
	InstanceStatusActive   InstanceStatus = "active"
	InstanceStatusArchived InstanceStatus = "archived" // Reached a terminal state
)

// StateDataPendingTransition is the state-data key holding the ID of the
// transition currently awaiting approvals. Absent while no transition is
// pending.
const StateDataPendingTransition = "pending_transition"

// WorkflowInstance is the live lifecycle record bound to one concrete entity.
// There is exactly one instance per (entity type, entity ID) pair. Instances
// are mutated only through the engine and soft-archived, never deleted, when
// a terminal state is reached.
type WorkflowInstance struct {
	ID           string `json:"id"`
	DefinitionID string `json:"definition_id" validate:"required"`
	EntityType   string `json:"entity_type"   validate:"required"`
	EntityID     string `json:"entity_id"     validate:"required"`

	CurrentStateID string         `json:"current_state_id"`
	Status         InstanceStatus `json:"status"`

	// StateData is the free-form structured payload read and written by the
	// rule evaluator and automation rules.
	StateData map[string]any `json:"state_data,omitempty"`

	// Version is the optimistic concurrency token bumped on every update.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingTransitionID returns the transition awaiting approvals, if any.
func (i *WorkflowInstance) PendingTransitionID() (string, bool) {
	if i.StateData == nil {
		return "", false
	}

	id, ok := i.StateData[StateDataPendingTransition].(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

// SetPendingTransition marks the instance as waiting on approvals for the
// given transition.
func (i *WorkflowInstance) SetPendingTransition(transitionID string) {
	if i.StateData == nil {
		i.StateData = make(map[string]any)
	}

	i.StateData[StateDataPendingTransition] = transitionID
}

// ClearPendingTransition removes the pending-transition marker.
func (i *WorkflowInstance) ClearPendingTransition() {
	if i.StateData == nil {
		return
	}

	delete(i.StateData, StateDataPendingTransition)
}
