package rules

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gateflow/gateflow/pkg/models"
)

// compare applies a comparison operator to a resolved field value and the
// rule's literal value. Numeric comparisons coerce both sides to float64,
// matching how JSON documents decode numbers.
func compare(op models.CompareOp, left, right any) (bool, error) {
	switch op {
	case models.OpEqual:
		return looseEqual(left, right), nil
	case models.OpNotEqual:
		return !looseEqual(left, right), nil
	case models.OpGreaterThan, models.OpGreaterOrEqual, models.OpLessThan, models.OpLessOrEqual:
		leftNum, leftOK := toFloat(left)
		rightNum, rightOK := toFloat(right)

		if !leftOK || !rightOK {
			return false, fmt.Errorf("operator %s requires numeric operands, got %T and %T", op, left, right)
		}

		switch op {
		case models.OpGreaterThan:
			return leftNum > rightNum, nil
		case models.OpGreaterOrEqual:
			return leftNum >= rightNum, nil
		case models.OpLessThan:
			return leftNum < rightNum, nil
		default:
			return leftNum <= rightNum, nil
		}
	case models.OpContains:
		return contains(left, right)
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

func looseEqual(left, right any) bool {
	if leftNum, ok := toFloat(left); ok {
		if rightNum, ok := toFloat(right); ok {
			return leftNum == rightNum
		}
	}

	return reflect.DeepEqual(left, right)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// contains matches substrings for strings and membership for slices.
func contains(haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string requires a string value, got %T", needle)
		}

		return strings.Contains(h, n), nil
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, fmt.Errorf("contains requires a string or list field, got %T", haystack)
	}
}

// isEmpty reports whether a present value should still fail a presence check.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
