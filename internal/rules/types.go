package rules

import (
	"fmt"

	"github.com/savegress/clinicpulse/pkg/models"
)

// Constraint defines what a validation rule checks
type Constraint string

const (
	ConstraintRequired Constraint = "required"
	ConstraintFormat   Constraint = "format"
	ConstraintRange    Constraint = "range"
	ConstraintCustom   Constraint = "custom"
)

// ViolationAction defines what happens when a rule is violated
type ViolationAction string

const (
	ActionReject    ViolationAction = "reject"
	ActionTransform ViolationAction = "transform"
	ActionSkip      ViolationAction = "skip"
	ActionWarn      ViolationAction = "warn"
)

// Format identifies the expected shape of a field value
type Format string

const (
	FormatNumber     Format = "number"
	FormatString     Format = "string"
	FormatBool       Format = "bool"
	FormatDate       Format = "date" // YYYY-MM-DD
	FormatIdentifier Format = "identifier"
)

// ValidationRule checks one field of an event's payload. Rules run in
// declaration order; a reject violation short-circuits the chain.
type ValidationRule struct {
	Name        string          `yaml:"name" json:"name"`
	Field       string          `yaml:"field" json:"field"`
	Constraint  Constraint      `yaml:"constraint" json:"constraint"`
	OnViolation ViolationAction `yaml:"on_violation" json:"on_violation"`

	// Format constraint
	Format Format `yaml:"format,omitempty" json:"format,omitempty"`

	// Range constraint
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// Custom constraint, programmatic only. Receives the field value
	// and whether it was present.
	Check func(value any, present bool) bool `yaml:"-" json:"-"`
}

// Validate rejects malformed rules at configuration time.
func (r ValidationRule) Validate() error {
	if r.Field == "" {
		return fmt.Errorf("validation rule %q: field is required", r.Name)
	}
	switch r.Constraint {
	case ConstraintRequired:
	case ConstraintFormat:
		switch r.Format {
		case FormatNumber, FormatString, FormatBool, FormatDate, FormatIdentifier:
		default:
			return fmt.Errorf("validation rule %q: unknown format %q", r.Name, r.Format)
		}
	case ConstraintRange:
		if r.Min == nil && r.Max == nil {
			return fmt.Errorf("validation rule %q: range constraint needs min or max", r.Name)
		}
	case ConstraintCustom:
		if r.Check == nil {
			return fmt.Errorf("validation rule %q: custom constraint needs a check function", r.Name)
		}
	default:
		return fmt.Errorf("validation rule %q: unknown constraint %q", r.Name, r.Constraint)
	}
	switch r.OnViolation {
	case ActionReject, ActionTransform, ActionSkip, ActionWarn:
	default:
		return fmt.Errorf("validation rule %q: unknown violation action %q", r.Name, r.OnViolation)
	}
	return nil
}

// TransformOp identifies a transformation operation
type TransformOp string

const (
	OpMap       TransformOp = "map"
	OpAggregate TransformOp = "aggregate"
	OpFilter    TransformOp = "filter"
	OpAnonymize TransformOp = "anonymize"
	OpCalculate TransformOp = "calculate"
)

// AggregateFunc folds a list-valued field into a single number
type AggregateFunc string

const (
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
	AggCount AggregateFunc = "count"
)

// ConditionOp compares a field against a value
type ConditionOp string

const (
	CondExists ConditionOp = "exists"
	CondEq     ConditionOp = "eq"
	CondNe     ConditionOp = "ne"
	CondGt     ConditionOp = "gt"
	CondLt     ConditionOp = "lt"
)

// Condition gates a transformation. A condition whose field is absent
// from the payload makes the transformation non-applicable, never an
// error.
type Condition struct {
	Field string      `yaml:"field" json:"field"`
	Op    ConditionOp `yaml:"op" json:"op"`
	Value any         `yaml:"value,omitempty" json:"value,omitempty"`
}

// TransformationRule rewrites one field of a validated event.
type TransformationRule struct {
	Name        string      `yaml:"name" json:"name"`
	Op          TransformOp `yaml:"op" json:"op"`
	SourceField string      `yaml:"source_field" json:"source_field"`
	TargetField string      `yaml:"target_field,omitempty" json:"target_field,omitempty"`
	Condition   *Condition  `yaml:"condition,omitempty" json:"condition,omitempty"`

	// Aggregate op
	Func AggregateFunc `yaml:"func,omitempty" json:"func,omitempty"`

	// Calculate op: target = source*Factor + Offset
	Factor *float64 `yaml:"factor,omitempty" json:"factor,omitempty"`
	Offset float64  `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// Validate rejects malformed rules at configuration time.
func (r TransformationRule) Validate() error {
	if r.SourceField == "" {
		return fmt.Errorf("transformation rule %q: source_field is required", r.Name)
	}
	switch r.Op {
	case OpMap:
		if r.TargetField == "" {
			return fmt.Errorf("transformation rule %q: map needs target_field", r.Name)
		}
	case OpAggregate:
		switch r.Func {
		case AggSum, AggAvg, AggMin, AggMax, AggCount:
		default:
			return fmt.Errorf("transformation rule %q: unknown aggregate func %q", r.Name, r.Func)
		}
	case OpFilter, OpAnonymize:
	case OpCalculate:
		if r.Factor == nil {
			return fmt.Errorf("transformation rule %q: calculate needs factor", r.Name)
		}
	default:
		return fmt.Errorf("transformation rule %q: unknown op %q", r.Name, r.Op)
	}
	if r.Condition != nil {
		switch r.Condition.Op {
		case CondExists, CondEq, CondNe, CondGt, CondLt:
		default:
			return fmt.Errorf("transformation rule %q: unknown condition op %q", r.Name, r.Condition.Op)
		}
	}
	return nil
}

// Violation records one rule outcome for an event
type Violation struct {
	Rule    string          `json:"rule"`
	Field   string          `json:"field"`
	Action  ViolationAction `json:"action"`
	Message string          `json:"message"`
}

// Result carries the processed event and any violations recorded along
// the way. A rejected event must never be enqueued.
type Result struct {
	Event      *models.IngestionEvent `json:"event"`
	Rejected   bool                   `json:"rejected"`
	Violations []Violation            `json:"violations,omitempty"`
}
