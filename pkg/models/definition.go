// Package models defines the core domain models for entity lifecycle workflows.
package models

import "time"

// WorkflowDefinition is the configured graph of states and transitions for one
// entity type. Definitions are immutable once published: changes are saved as
// new versioned records so in-flight instances keep the graph they started on.
type WorkflowDefinition struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"        validate:"required,min=3"`
	EntityType  string                `json:"entity_type" validate:"required"`
	Version     int                   `json:"version"`
	IsDefault   bool                  `json:"is_default"`
	States      []*WorkflowState      `json:"states"`
	Transitions []*WorkflowTransition `json:"transitions"`

	// InstanceRules are validation rules checked on every transition of every
	// instance of this definition, in addition to the transition's own rules.
	InstanceRules *Condition `json:"instance_rules,omitempty"`

	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// StateByID resolves a state of this definition by ID.
func (d *WorkflowDefinition) StateByID(id string) *WorkflowState {
	for _, state := range d.States {
		if state.ID == id {
			return state
		}
	}

	return nil
}

// TransitionByID resolves a transition of this definition by ID.
func (d *WorkflowDefinition) TransitionByID(id string) *WorkflowTransition {
	for _, transition := range d.Transitions {
		if transition.ID == id {
			return transition
		}
	}

	return nil
}

// InitialState returns the state flagged as initial, or nil when the
// definition is malformed. Registry validation guarantees exactly one initial
// state for any definition served to the engine.
func (d *WorkflowDefinition) InitialState() *WorkflowState {
	for _, state := range d.States {
		if state.IsInitial {
			return state
		}
	}

	return nil
}

// TransitionsFrom returns all transitions originating in the given state.
func (d *WorkflowDefinition) TransitionsFrom(stateID string) []*WorkflowTransition {
	transitions := make([]*WorkflowTransition, 0)

	for _, transition := range d.Transitions {
		if transition.FromStateID == stateID {
			transitions = append(transitions, transition)
		}
	}

	return transitions
}
