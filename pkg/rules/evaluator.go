// Package rules evaluates declarative permission, validation and automation
// rules against a snapshot of instance state and caller context.
package rules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gateflow/gateflow/pkg/models"
)

// Source prefixes for condition field paths.
const (
	sourceStateData = "state"
	sourceEntity    = "entity"
)

// Context is the evaluation context a rule set runs against.
type Context struct {
	CallerPermissions []string
	StateData         map[string]any
	Entity            map[string]any
}

// Decision is the outcome of a permission or validation check. Denials are
// expected business outcomes, not errors.
type Decision struct {
	Allowed bool
	Reason  string
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func denied(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Evaluator evaluates rule trees. It holds no per-evaluation state and is
// safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates a rule evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{logger: logger.With("module", "rules")}
}

// EvaluatePermissions checks that the caller's permission set is a superset
// of the required set. An empty requirement always passes.
func (e *Evaluator) EvaluatePermissions(required []string, evalCtx Context) Decision {
	if len(required) == 0 {
		return allowed()
	}

	held := make(map[string]struct{}, len(evalCtx.CallerPermissions))
	for _, permission := range evalCtx.CallerPermissions {
		held[permission] = struct{}{}
	}

	for _, permission := range required {
		if _, ok := held[permission]; !ok {
			return denied(fmt.Sprintf("missing permission %q", permission))
		}
	}

	return allowed()
}

// EvaluateConditions evaluates a validation rule tree. A nil tree passes.
// Malformed trees fail closed: the decision is a denial, never a silent pass.
func (e *Evaluator) EvaluateConditions(condition *models.Condition, evalCtx Context) Decision {
	if condition == nil {
		return allowed()
	}

	ok, err := e.evaluate(condition, evalCtx)
	if err != nil {
		e.logger.Warn("Malformed validation rule, failing closed", "error", err)

		return denied("malformed validation rule: " + err.Error())
	}

	if !ok {
		return denied(describeCondition(condition))
	}

	return allowed()
}

func (e *Evaluator) evaluate(condition *models.Condition, evalCtx Context) (bool, error) {
	switch condition.Kind {
	case models.ConditionCompare:
		value, present := resolveField(condition.Field, evalCtx)
		if !present {
			// A comparison against an absent field never holds.
			return false, nil
		}

		return compare(condition.Op, value, condition.Value)
	case models.ConditionPresent:
		value, present := resolveField(condition.Field, evalCtx)
		if !present {
			return false, nil
		}

		return !isEmpty(value), nil
	case models.ConditionAll:
		if len(condition.Conditions) == 0 {
			return false, fmt.Errorf("all condition has no children")
		}

		for _, child := range condition.Conditions {
			ok, err := e.evaluate(child, evalCtx)
			if err != nil || !ok {
				return false, err
			}
		}

		return true, nil
	case models.ConditionAny:
		if len(condition.Conditions) == 0 {
			return false, fmt.Errorf("any condition has no children")
		}

		for _, child := range condition.Conditions {
			ok, err := e.evaluate(child, evalCtx)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, fmt.Errorf("unknown condition kind %q", condition.Kind)
	}
}

// resolveField resolves a dotted field path against the evaluation context.
// The first segment selects the source: "state" reads instance state data,
// "entity" reads the entity snapshot.
func resolveField(path string, evalCtx Context) (any, bool) {
	segments := strings.Split(path, ".")
	if len(segments) < 2 {
		return nil, false
	}

	var current any

	switch segments[0] {
	case sourceStateData:
		current = evalCtx.StateData
	case sourceEntity:
		current = evalCtx.Entity
	default:
		return nil, false
	}

	for _, segment := range segments[1:] {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func describeCondition(condition *models.Condition) string {
	switch condition.Kind {
	case models.ConditionCompare:
		return fmt.Sprintf("condition %s %s %v not satisfied", condition.Field, condition.Op, condition.Value)
	case models.ConditionPresent:
		return fmt.Sprintf("required field %s is missing", condition.Field)
	default:
		return fmt.Sprintf("%s condition not satisfied", condition.Kind)
	}
}
