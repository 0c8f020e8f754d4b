package models

// WorkflowState is one named state in a workflow definition. State IDs are
// unique within their definition; relationships are resolved by ID lookup,
// never by embedded pointers.
type WorkflowState struct {
	ID           string `json:"id"            validate:"required"`
	DefinitionID string `json:"definition_id"`
	Name         string `json:"name"          validate:"required"`
	IsInitial    bool   `json:"is_initial"`
	IsTerminal   bool   `json:"is_terminal"`

	// RequiredPermissions must all be held by a caller for a transition into
	// this state. Empty means no restriction.
	RequiredPermissions []string `json:"required_permissions,omitempty"`

	// EntryRules are automation rules applied after a transition into this
	// state commits.
	EntryRules []*Action `json:"entry_rules,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}
