package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateflow/gateflow/pkg/models"
)

const validDocument = `{
	"id": "expense-approval",
	"name": "Expense Approval",
	"entity_type": "expense",
	"is_default": true,
	"states": [
		{"id": "submitted", "name": "Submitted", "is_initial": true},
		{"id": "approved", "name": "Approved", "is_terminal": true}
	],
	"transitions": [
		{
			"id": "approve",
			"name": "Approve",
			"from_state_id": "submitted",
			"to_state_id": "approved",
			"validation_rules": {
				"kind": "compare",
				"field": "state.amount",
				"op": "lte",
				"value": 5000
			},
			"approvers": [
				{"type": "role", "id": "finance-lead", "due_in": "72h", "hard_deadline": true}
			]
		}
	]
}`

func TestParseDefinitionValidDocument(t *testing.T) {
	definition, err := ParseDefinition([]byte(validDocument))
	require.NoError(t, err)

	assert.Equal(t, "expense-approval", definition.ID)
	assert.Equal(t, "expense", definition.EntityType)
	assert.True(t, definition.IsDefault)

	// Version defaults to 1 when the document omits it.
	assert.Equal(t, 1, definition.Version)

	transition := definition.TransitionByID("approve")
	require.NotNil(t, transition)
	require.NotNil(t, transition.ValidationRules)
	assert.Equal(t, models.ConditionCompare, transition.ValidationRules.Kind)
	assert.True(t, transition.RequiresApproval())

	require.Len(t, transition.Approvers, 1)
	assert.Equal(t, 72*time.Hour, transition.Approvers[0].DueIn.Std())
	assert.True(t, transition.Approvers[0].HardDeadline)
}

func TestParseDefinitionRejectsInvalidJSON(t *testing.T) {
	_, err := ParseDefinition([]byte(`{"id": `))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestParseDefinitionRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		document string
	}{
		{"missing required fields", `{"id": "x"}`},
		{"empty states", `{"id": "x", "name": "X", "entity_type": "doc", "states": []}`},
		{"state without name", `{"id": "x", "name": "X", "entity_type": "doc", "states": [{"id": "a"}]}`},
		{"wrong type for states", `{"id": "x", "name": "X", "entity_type": "doc", "states": "draft"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.document))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDefinitionInvalid)
		})
	}
}

func TestParseDefinitionRejectsInvalidGraph(t *testing.T) {
	// Schema-valid but structurally broken: no initial state.
	document := `{
		"id": "broken",
		"name": "Broken",
		"entity_type": "doc",
		"states": [{"id": "a", "name": "A"}]
	}`

	_, err := ParseDefinition([]byte(document))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "exactly one initial state")
}
