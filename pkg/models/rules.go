package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConditionKind discriminates the typed validation rule AST. Rule documents
// are parsed into this form once at definition load time and never re-parsed
// per evaluation.
type ConditionKind string

const (
	ConditionCompare ConditionKind = "compare" // Field <op> Value
	ConditionPresent ConditionKind = "present" // Field exists and is non-empty
	ConditionAll     ConditionKind = "all"     // Every child condition holds
	ConditionAny     ConditionKind = "any"     // At least one child holds
)

// CompareOp is the comparison operator for ConditionCompare nodes.
type CompareOp string

const (
	OpEqual          CompareOp = "eq"
	OpNotEqual       CompareOp = "ne"
	OpGreaterThan    CompareOp = "gt"
	OpGreaterOrEqual CompareOp = "gte"
	OpLessThan       CompareOp = "lt"
	OpLessOrEqual    CompareOp = "lte"
	OpContains       CompareOp = "contains"
)

// Condition is one node of a validation rule tree. Field paths are dotted,
// with the first segment selecting the evaluation source: "state." reads the
// instance state data, "entity." reads the entity snapshot.
type Condition struct {
	Kind       ConditionKind `json:"kind"`
	Field      string        `json:"field,omitempty"`
	Op         CompareOp     `json:"op,omitempty"`
	Value      any           `json:"value,omitempty"`
	Conditions []*Condition  `json:"conditions,omitempty"`
}

// Validate checks the rule tree for structural problems. The registry refuses
// definitions whose rules fail this check; the evaluator additionally fails
// closed when handed a malformed tree at runtime.
func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}

	switch c.Kind {
	case ConditionCompare:
		if c.Field == "" {
			return fmt.Errorf("compare condition requires a field")
		}

		switch c.Op {
		case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpContains:
		default:
			return fmt.Errorf("compare condition has unknown operator %q", c.Op)
		}
	case ConditionPresent:
		if c.Field == "" {
			return fmt.Errorf("present condition requires a field")
		}
	case ConditionAll, ConditionAny:
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%s condition requires at least one child", c.Kind)
		}

		for _, child := range c.Conditions {
			if child == nil {
				return fmt.Errorf("%s condition has a nil child", c.Kind)
			}

			if err := child.Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}

	return nil
}

// ActionKind discriminates automation rule actions.
type ActionKind string

const (
	// ActionSetField writes a value into the instance state data.
	ActionSetField ActionKind = "set_field"
	// ActionNotify emits a notification intent to the dispatcher.
	ActionNotify ActionKind = "notify"
	// ActionRequestApproval emits an approval-request intent, used to ask a
	// party to prepare the next gated transition.
	ActionRequestApproval ActionKind = "request_approval"
)

// Action is one declarative post-commit side effect.
type Action struct {
	Kind ActionKind `json:"kind"`

	// set_field
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`

	// notify / request_approval
	Channel   string `json:"channel,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Template  string `json:"template,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks a single automation action for structural problems.
func (a *Action) Validate() error {
	if a == nil {
		return fmt.Errorf("automation action is nil")
	}

	switch a.Kind {
	case ActionSetField:
		if a.Field == "" {
			return fmt.Errorf("set_field action requires a field")
		}
	case ActionNotify:
		if a.Recipient == "" {
			return fmt.Errorf("notify action requires a recipient")
		}
	case ActionRequestApproval:
		if a.Recipient == "" {
			return fmt.Errorf("request_approval action requires a recipient")
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}

	return nil
}

// Duration is a time.Duration that marshals to and from the Go duration
// string form ("72h", "30m") in JSON documents.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the standard library form of the duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
