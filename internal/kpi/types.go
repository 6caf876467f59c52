package kpi

import (
	"fmt"

	"github.com/savegress/clinicpulse/pkg/models"
)

// CategorySet selects which report categories to compute.
type CategorySet struct {
	PatientFlow     bool `json:"patient_flow"`
	ClinicalQuality bool `json:"clinical_quality"`
	Operational     bool `json:"operational"`
	Financial       bool `json:"financial"`
	SystemHealth    bool `json:"system_health"`
}

// AllCategories returns a set with every category enabled.
func AllCategories() CategorySet {
	return CategorySet{
		PatientFlow:     true,
		ClinicalQuality: true,
		Operational:     true,
		Financial:       true,
		SystemHealth:    true,
	}
}

// Options controls one KPI computation. The zero value means: infer
// the time range from the events, no type or source filter, all
// categories, non-strict.
type Options struct {
	// TimeRange limits the events considered. Defaults to the min/max
	// timestamp found in the input.
	TimeRange *models.TimeRange `json:"time_range,omitempty"`

	// EventTypes limits the events considered. Empty means all.
	EventTypes []string `json:"event_types,omitempty"`

	// Sources limits the events considered. Empty means all.
	Sources []string `json:"sources,omitempty"`

	// Categories selects report sections. Nil means all.
	Categories *CategorySet `json:"categories,omitempty"`

	// Strict aborts the whole computation on the first malformed
	// event instead of skipping it.
	Strict bool `json:"strict,omitempty"`

	// MinEventCount marks the report low-confidence when the filtered
	// set is smaller. Computation still proceeds.
	MinEventCount int `json:"min_event_count,omitempty"`
}

// ComputationError aborts a strict-mode computation when a malformed
// event is encountered. Non-strict mode downgrades the same condition
// to a skip.
type ComputationError struct {
	EventID string
	Reason  string
}

func (e *ComputationError) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("malformed event %s: %s", e.EventID, e.Reason)
	}
	return fmt.Sprintf("malformed event: %s", e.Reason)
}
