package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/formsage/backend/internal/domain/models"
)

// ConditionEvaluator evaluates workflow conditions against submission data.
// It is stateless and safe to call concurrently without coordination.
//
// Missing-field policy: a condition referencing a field absent from the data
// evaluates to false for equals/contains/greater_than/less_than (and its
// complement true for not_equals), true for is_empty, false for is_not_empty.
// Evaluation never returns an error and never panics.
type ConditionEvaluator struct{}

// NewConditionEvaluator creates a new ConditionEvaluator
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{}
}

// Evaluate checks a single condition against the data
func (e *ConditionEvaluator) Evaluate(cond models.Condition, data map[string]interface{}) bool {
	value, present := data[cond.Field]

	switch cond.Operator {
	case models.OpIsEmpty:
		return !present || isEmptyValue(value)
	case models.OpIsNotEmpty:
		return present && !isEmptyValue(value)
	}

	if !present || value == nil {
		// not_equals holds vacuously: an absent field differs from any value
		return cond.Operator == models.OpNotEquals
	}

	switch cond.Operator {
	case models.OpEquals:
		return looseEqual(value, cond.Value)
	case models.OpNotEquals:
		return !looseEqual(value, cond.Value)
	case models.OpContains:
		return contains(value, cond.Value)
	case models.OpGreaterThan:
		left, lok := toNumber(value)
		right, rok := toNumber(cond.Value)
		return lok && rok && left > right
	case models.OpLessThan:
		left, lok := toNumber(value)
		right, rok := toNumber(cond.Value)
		return lok && rok && left < right
	default:
		return false
	}
}

// EvaluateAll is a logical AND over the condition set.
// An empty set evaluates to true: no constraint always matches, which is
// the basis for unconditional auto-approval rules and unconditional actions.
func (e *ConditionEvaluator) EvaluateAll(conds []models.Condition, data map[string]interface{}) bool {
	for _, cond := range conds {
		if !e.Evaluate(cond, data) {
			return false
		}
	}
	return true
}

// looseEqual compares numerically when both sides coerce to numbers,
// otherwise by string rendering. Form data arrives as JSON, so "5" and 5
// must compare equal.
func looseEqual(a, b interface{}) bool {
	if an, aok := toNumber(a); aok {
		if bn, bok := toNumber(b); bok {
			return an == bn
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// contains is a substring test for strings and a member test for slices
func contains(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprintf("%v", needle))
	case []interface{}:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		n := fmt.Sprintf("%v", needle)
		for _, item := range h {
			if item == n {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	case bool:
		return 0, false
	default:
		return 0, false
	}
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}
