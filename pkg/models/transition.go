package models

// WorkflowTransition is a directed edge between two states of one definition.
type WorkflowTransition struct {
	ID           string `json:"id"            validate:"required"`
	DefinitionID string `json:"definition_id"`
	Name         string `json:"name"          validate:"required"`
	FromStateID  string `json:"from_state_id" validate:"required"`
	ToStateID    string `json:"to_state_id"   validate:"required"`

	// RequiredPermissions must all be held by the caller invoking this
	// transition. Empty means any caller may invoke it.
	RequiredPermissions []string `json:"required_permissions,omitempty"`

	// ValidationRules is a predicate tree evaluated against the instance
	// state data and the entity snapshot before the transition is allowed.
	ValidationRules *Condition `json:"validation_rules,omitempty"`

	// AutomationRules run after the transition commits. Failures are logged
	// and never roll the committed transition back.
	AutomationRules []*Action `json:"automation_rules,omitempty"`

	// Approvers gates the transition: when non-empty the transition stays
	// pending until every resolved approval is approved.
	Approvers []*ApproverSpec `json:"approvers,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// RequiresApproval reports whether this transition is gated behind approvals.
func (t *WorkflowTransition) RequiresApproval() bool {
	return len(t.Approvers) > 0
}
