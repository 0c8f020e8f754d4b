package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateflow/gateflow/pkg/models"
)

func TestApplyMapsActionsToIntents(t *testing.T) {
	evaluator := testEvaluator()

	intents := evaluator.Apply([]*models.Action{
		{Kind: models.ActionSetField, Field: "state.review.score", Value: 42},
		{Kind: models.ActionNotify, Channel: "email", Recipient: "ops@example.com", Template: "escalation", Metadata: map[string]any{"priority": "high"}},
		{Kind: models.ActionRequestApproval, Recipient: "role:finance-lead", Template: "prepare-signoff"},
	}, Context{})

	require.Len(t, intents, 3)

	setField, ok := intents[0].(SetFieldIntent)
	require.True(t, ok)
	assert.Equal(t, "review.score", setField.Field)
	assert.Equal(t, 42, setField.Value)

	notify, ok := intents[1].(NotifyIntent)
	require.True(t, ok)
	assert.Equal(t, "email", notify.Channel)
	assert.Equal(t, "ops@example.com", notify.Recipient)
	assert.Equal(t, "escalation", notify.Template)
	assert.Equal(t, "high", notify.Metadata["priority"])

	approval, ok := intents[2].(ApprovalRequestIntent)
	require.True(t, ok)
	assert.Equal(t, "role:finance-lead", approval.Recipient)
	assert.Equal(t, "prepare-signoff", approval.Template)
}

func TestApplySkipsMalformedActions(t *testing.T) {
	evaluator := testEvaluator()

	intents := evaluator.Apply([]*models.Action{
		nil,
		{Kind: models.ActionSetField},
		{Kind: models.ActionNotify, Template: "no-recipient"},
		{Kind: "escalate"},
		{Kind: models.ActionSetField, Field: "status", Value: "done"},
	}, Context{})

	require.Len(t, intents, 1)
	assert.Equal(t, SetFieldIntent{Field: "status", Value: "done"}, intents[0])
}

func TestApplySetFieldsMutatesStateData(t *testing.T) {
	stateData := map[string]any{
		"review": map[string]any{"round": 1},
	}

	stateData, remaining := ApplySetFields([]Intent{
		SetFieldIntent{Field: "review.score", Value: 95},
		NotifyIntent{Channel: "email", Recipient: "ops@example.com"},
		SetFieldIntent{Field: "audit.last.actor", Value: "system"},
	}, stateData)

	// Notification intents survive for post-release dispatch.
	require.Len(t, remaining, 1)
	assert.IsType(t, NotifyIntent{}, remaining[0])

	review, ok := stateData["review"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 95, review["score"])
	assert.Equal(t, 1, review["round"])

	audit, ok := stateData["audit"].(map[string]any)
	require.True(t, ok)
	last, ok := audit["last"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "system", last["actor"])
}

func TestApplySetFieldsOverwritesNonMapSegment(t *testing.T) {
	stateData := map[string]any{"review": "shallow"}

	stateData, remaining := ApplySetFields([]Intent{
		SetFieldIntent{Field: "review.score", Value: 7},
	}, stateData)

	assert.Empty(t, remaining)

	review, ok := stateData["review"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 7, review["score"])
}

func TestApplySetFieldsAllocatesNilStateData(t *testing.T) {
	var stateData map[string]any

	stateData, remaining := ApplySetFields([]Intent{
		SetFieldIntent{Field: "review.score", Value: 3},
	}, stateData)

	assert.Empty(t, remaining)
	require.NotNil(t, stateData)

	review, ok := stateData["review"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, review["score"])
}
