package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateflow/gateflow/pkg/models"
)

func validDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:         "doc-lifecycle",
		Name:       "Document Lifecycle",
		EntityType: "document",
		Version:    1,
		IsDefault:  true,
		States: []*models.WorkflowState{
			{ID: "draft", Name: "Draft", IsInitial: true},
			{ID: "review", Name: "In Review"},
			{ID: "published", Name: "Published", IsTerminal: true},
		},
		Transitions: []*models.WorkflowTransition{
			{ID: "submit", Name: "Submit", FromStateID: "draft", ToStateID: "review"},
			{ID: "publish", Name: "Publish", FromStateID: "review", ToStateID: "published"},
			{ID: "send-back", Name: "Send Back", FromStateID: "review", ToStateID: "draft"},
		},
	}
}

func TestValidateDefinitionAcceptsValidGraph(t *testing.T) {
	assert.NoError(t, ValidateDefinition(validDefinition()))
}

func TestValidateDefinitionFindings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.WorkflowDefinition)
		finding string
	}{
		{
			name:    "missing entity type",
			mutate:  func(d *models.WorkflowDefinition) { d.EntityType = "" },
			finding: "entity type is required",
		},
		{
			name:    "no states",
			mutate:  func(d *models.WorkflowDefinition) { d.States = nil },
			finding: "definition has no states",
		},
		{
			name:    "no initial state",
			mutate:  func(d *models.WorkflowDefinition) { d.States[0].IsInitial = false },
			finding: "exactly one initial state, found 0",
		},
		{
			name:    "two initial states",
			mutate:  func(d *models.WorkflowDefinition) { d.States[1].IsInitial = true },
			finding: "exactly one initial state, found 2",
		},
		{
			name: "initial state is terminal",
			mutate: func(d *models.WorkflowDefinition) {
				d.States[0].IsTerminal = true
			},
			finding: "both initial and terminal",
		},
		{
			name: "duplicate state id",
			mutate: func(d *models.WorkflowDefinition) {
				d.States[1].ID = "draft"
			},
			finding: `duplicate state id "draft"`,
		},
		{
			name: "duplicate state name",
			mutate: func(d *models.WorkflowDefinition) {
				d.States[1].Name = "Draft"
			},
			finding: `duplicate state name "Draft"`,
		},
		{
			name: "transition to unknown state",
			mutate: func(d *models.WorkflowDefinition) {
				d.Transitions[0].ToStateID = "archived"
			},
			finding: `unknown to state "archived"`,
		},
		{
			name: "transition from terminal state",
			mutate: func(d *models.WorkflowDefinition) {
				d.Transitions = append(d.Transitions, &models.WorkflowTransition{
					ID: "reopen", Name: "Reopen", FromStateID: "published", ToStateID: "draft",
				})
			},
			finding: `originates in terminal state "published"`,
		},
		{
			name: "unreachable state",
			mutate: func(d *models.WorkflowDefinition) {
				d.States = append(d.States, &models.WorkflowState{ID: "orphan", Name: "Orphan"})
			},
			finding: `state "orphan" is unreachable`,
		},
		{
			name: "malformed validation rule",
			mutate: func(d *models.WorkflowDefinition) {
				d.Transitions[0].ValidationRules = &models.Condition{Kind: models.ConditionCompare, Op: models.OpEqual}
			},
			finding: "validation rules",
		},
		{
			name: "malformed entry rule",
			mutate: func(d *models.WorkflowDefinition) {
				d.States[1].EntryRules = []*models.Action{{Kind: models.ActionNotify}}
			},
			finding: "entry rule",
		},
		{
			name: "approver without id",
			mutate: func(d *models.WorkflowDefinition) {
				d.Transitions[1].Approvers = []*models.ApproverSpec{{Type: models.ApproverRole}}
			},
			finding: "approver without an id",
		},
		{
			name: "unknown approver type",
			mutate: func(d *models.WorkflowDefinition) {
				d.Transitions[1].Approvers = []*models.ApproverSpec{{Type: "team", ID: "finance"}}
			},
			finding: `unknown approver type "team"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			definition := validDefinition()
			tt.mutate(definition)

			err := ValidateDefinition(definition)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrDefinitionInvalid)
			assert.Contains(t, err.Error(), tt.finding)
		})
	}
}

func TestValidateDefinitionNil(t *testing.T) {
	err := ValidateDefinition(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefinitionInvalid)
}

func TestValidateDefinitionCollectsMultipleFindings(t *testing.T) {
	definition := validDefinition()
	definition.EntityType = ""
	definition.Transitions[0].ToStateID = "nowhere"

	err := ValidateDefinition(definition)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity type is required")
	assert.Contains(t, err.Error(), `unknown to state "nowhere"`)
}
