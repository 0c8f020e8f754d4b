package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionValidate(t *testing.T) {
	tests := []struct {
		name      string
		condition *Condition
		wantErr   string
	}{
		{
			name:      "nil condition is valid",
			condition: nil,
		},
		{
			name:      "compare with operator and field",
			condition: &Condition{Kind: ConditionCompare, Field: "state.amount", Op: OpGreaterThan, Value: 100},
		},
		{
			name:      "compare without field",
			condition: &Condition{Kind: ConditionCompare, Op: OpEqual},
			wantErr:   "requires a field",
		},
		{
			name:      "compare with unknown operator",
			condition: &Condition{Kind: ConditionCompare, Field: "state.amount", Op: "between"},
			wantErr:   "unknown operator",
		},
		{
			name:      "present with field",
			condition: &Condition{Kind: ConditionPresent, Field: "entity.owner"},
		},
		{
			name:      "present without field",
			condition: &Condition{Kind: ConditionPresent},
			wantErr:   "requires a field",
		},
		{
			name: "all with valid children",
			condition: &Condition{Kind: ConditionAll, Conditions: []*Condition{
				{Kind: ConditionPresent, Field: "state.reviewer"},
				{Kind: ConditionCompare, Field: "state.amount", Op: OpLessOrEqual, Value: 500},
			}},
		},
		{
			name:      "any without children",
			condition: &Condition{Kind: ConditionAny},
			wantErr:   "at least one child",
		},
		{
			name:      "all with nil child",
			condition: &Condition{Kind: ConditionAll, Conditions: []*Condition{nil}},
			wantErr:   "nil child",
		},
		{
			name: "invalid nested child surfaces",
			condition: &Condition{Kind: ConditionAny, Conditions: []*Condition{
				{Kind: ConditionCompare, Op: OpEqual},
			}},
			wantErr: "requires a field",
		},
		{
			name:      "unknown kind",
			condition: &Condition{Kind: "regex", Field: "state.name"},
			wantErr:   "unknown condition kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.condition.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  *Action
		wantErr string
	}{
		{name: "nil action", action: nil, wantErr: "is nil"},
		{name: "set_field with field", action: &Action{Kind: ActionSetField, Field: "status"}},
		{name: "set_field without field", action: &Action{Kind: ActionSetField}, wantErr: "requires a field"},
		{name: "notify with recipient", action: &Action{Kind: ActionNotify, Recipient: "ops@example.com"}},
		{name: "notify without recipient", action: &Action{Kind: ActionNotify}, wantErr: "requires a recipient"},
		{name: "request_approval with recipient", action: &Action{Kind: ActionRequestApproval, Recipient: "role:lead"}},
		{name: "request_approval without recipient", action: &Action{Kind: ActionRequestApproval}, wantErr: "requires a recipient"},
		{name: "unknown kind", action: &Action{Kind: "webhook"}, wantErr: "unknown action kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationJSON(t *testing.T) {
	type doc struct {
		DueIn Duration `json:"due_in"`
	}

	var parsed doc

	require.NoError(t, json.Unmarshal([]byte(`{"due_in":"72h"}`), &parsed))
	assert.Equal(t, 72*time.Hour, parsed.DueIn.Std())

	encoded, err := json.Marshal(doc{DueIn: Duration(30 * time.Minute)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due_in":"30m0s"}`, string(encoded))

	assert.Error(t, json.Unmarshal([]byte(`{"due_in":3600}`), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`{"due_in":"three days"}`), &parsed))
}
