package rules

import (
	"fmt"
	"strconv"
	"time"

	"github.com/savegress/clinicpulse/internal/anonymization"
	"github.com/savegress/clinicpulse/pkg/models"
)

// Engine applies validation and transformation rule chains to events.
// It is stateless apart from its configured rules and safe for
// concurrent use.
type Engine struct {
	validation     []ValidationRule
	transformation []TransformationRule
	anon           *anonymization.Engine
}

// NewEngine creates a rule engine. Rules must already be validated
// (config.Validate does this at construction). A nil anon falls back
// to an unsalted engine so a configured anonymize op always masks.
func NewEngine(validation []ValidationRule, transformation []TransformationRule, anon *anonymization.Engine) *Engine {
	if anon == nil {
		anon = anonymization.NewEngine("")
	}
	return &Engine{
		validation:     validation,
		transformation: transformation,
		anon:           anon,
	}
}

// Apply runs the validation chain and, if the event survives, the
// transformation chain. The input event is never mutated; the result
// carries a processed clone.
func (e *Engine) Apply(event *models.IngestionEvent) Result {
	out := event.Clone()
	if out.Data == nil {
		out.Data = make(map[string]any)
	}

	result := Result{Event: out}

	for _, rule := range e.validation {
		value, present := out.Data[rule.Field]
		if e.satisfies(rule, value, present) {
			continue
		}

		violation := Violation{
			Rule:    rule.Name,
			Field:   rule.Field,
			Action:  rule.OnViolation,
			Message: violationMessage(rule, value, present),
		}

		switch rule.OnViolation {
		case ActionReject:
			result.Violations = append(result.Violations, violation)
			result.Rejected = true
			return result
		case ActionTransform:
			coerced, ok := coerce(rule, value)
			if ok {
				out.Data[rule.Field] = coerced
			} else {
				// Uncoercible values are omitted rather than left to
				// corrupt downstream aggregation.
				delete(out.Data, rule.Field)
				violation.Message += " (uncoercible, field omitted)"
			}
			result.Violations = append(result.Violations, violation)
		case ActionSkip:
			delete(out.Data, rule.Field)
			result.Violations = append(result.Violations, violation)
		case ActionWarn:
			result.Violations = append(result.Violations, violation)
		}
	}

	for _, rule := range e.transformation {
		if !e.applicable(rule, out.Data) {
			continue
		}
		e.transform(rule, out.Data)
	}

	return result
}

func (e *Engine) satisfies(rule ValidationRule, value any, present bool) bool {
	switch rule.Constraint {
	case ConstraintRequired:
		if !present || value == nil {
			return false
		}
		if s, ok := value.(string); ok && s == "" {
			return false
		}
		return true
	case ConstraintFormat:
		if !present {
			// Format rules only constrain present fields.
			return true
		}
		return matchesFormat(rule.Format, value)
	case ConstraintRange:
		if !present {
			return true
		}
		n, ok := toFloat(value)
		if !ok {
			return false
		}
		if rule.Min != nil && n < *rule.Min {
			return false
		}
		if rule.Max != nil && n > *rule.Max {
			return false
		}
		return true
	case ConstraintCustom:
		return rule.Check(value, present)
	}
	return true
}

func matchesFormat(format Format, value any) bool {
	switch format {
	case FormatNumber:
		_, ok := toFloat(value)
		return ok
	case FormatString:
		_, ok := value.(string)
		return ok
	case FormatBool:
		_, ok := value.(bool)
		return ok
	case FormatDate:
		s, ok := value.(string)
		if !ok {
			return false
		}
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	case FormatIdentifier:
		s, ok := value.(string)
		return ok && s != ""
	}
	return false
}

// coerce attempts the corrective mapping for a transform-action
// violation, e.g. a stringified number becoming numeric.
func coerce(rule ValidationRule, value any) (any, bool) {
	switch rule.Constraint {
	case ConstraintFormat:
		switch rule.Format {
		case FormatNumber:
			if s, ok := value.(string); ok {
				if n, err := strconv.ParseFloat(s, 64); err == nil {
					return n, true
				}
			}
			if b, ok := value.(bool); ok {
				if b {
					return float64(1), true
				}
				return float64(0), true
			}
		case FormatString:
			return fmt.Sprintf("%v", value), true
		case FormatBool:
			if s, ok := value.(string); ok {
				if b, err := strconv.ParseBool(s); err == nil {
					return b, true
				}
			}
		}
	case ConstraintRange:
		// Clamp into bounds.
		n, ok := toFloat(value)
		if !ok {
			return nil, false
		}
		if rule.Min != nil && n < *rule.Min {
			n = *rule.Min
		}
		if rule.Max != nil && n > *rule.Max {
			n = *rule.Max
		}
		return n, true
	}
	return nil, false
}

// applicable evaluates a transformation's condition. A condition
// referencing an absent field makes the rule non-applicable.
func (e *Engine) applicable(rule TransformationRule, data map[string]any) bool {
	if _, ok := data[rule.SourceField]; !ok {
		return false
	}
	if rule.Condition == nil {
		return true
	}

	value, present := data[rule.Condition.Field]
	if !present {
		return false
	}

	switch rule.Condition.Op {
	case CondExists:
		return true
	case CondEq:
		return equalValues(value, rule.Condition.Value)
	case CondNe:
		return !equalValues(value, rule.Condition.Value)
	case CondGt:
		a, ok1 := toFloat(value)
		b, ok2 := toFloat(rule.Condition.Value)
		return ok1 && ok2 && a > b
	case CondLt:
		a, ok1 := toFloat(value)
		b, ok2 := toFloat(rule.Condition.Value)
		return ok1 && ok2 && a < b
	}
	return false
}

func (e *Engine) transform(rule TransformationRule, data map[string]any) {
	value := data[rule.SourceField]
	target := rule.TargetField
	if target == "" {
		target = rule.SourceField
	}

	switch rule.Op {
	case OpMap:
		data[target] = value
		if target != rule.SourceField {
			delete(data, rule.SourceField)
		}
	case OpFilter:
		delete(data, rule.SourceField)
	case OpAnonymize:
		data[target] = e.anon.MaskValue(value)
		if target != rule.SourceField {
			delete(data, rule.SourceField)
		}
	case OpCalculate:
		n, ok := toFloat(value)
		if !ok {
			return
		}
		data[target] = n**rule.Factor + rule.Offset
	case OpAggregate:
		items, ok := value.([]any)
		if !ok {
			return
		}
		if agg, ok := aggregate(rule.Func, items); ok {
			data[target] = agg
		}
	}
}

func aggregate(fn AggregateFunc, items []any) (float64, bool) {
	if fn == AggCount {
		return float64(len(items)), true
	}

	var nums []float64
	for _, item := range items {
		if n, ok := toFloat(item); ok {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return 0, false
	}

	switch fn {
	case AggSum, AggAvg:
		sum := 0.0
		for _, n := range nums {
			sum += n
		}
		if fn == AggAvg {
			return sum / float64(len(nums)), true
		}
		return sum, true
	case AggMin:
		min := nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
		}
		return min, true
	case AggMax:
		max := nums[0]
		for _, n := range nums[1:] {
			if n > max {
				max = n
			}
		}
		return max, true
	}
	return 0, false
}

func violationMessage(rule ValidationRule, value any, present bool) string {
	if !present {
		return fmt.Sprintf("field %q is missing", rule.Field)
	}
	switch rule.Constraint {
	case ConstraintFormat:
		return fmt.Sprintf("field %q is not a valid %s", rule.Field, rule.Format)
	case ConstraintRange:
		return fmt.Sprintf("field %q value %v is out of range", rule.Field, value)
	case ConstraintCustom:
		return fmt.Sprintf("field %q failed custom check", rule.Field)
	}
	return fmt.Sprintf("field %q is invalid", rule.Field)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
