package models

import (
	"time"
)

// EventType identifies the domain action an event records
type EventType string

const (
	EventAppointmentScheduled EventType = "appointment_scheduled"
	EventAppointmentConfirmed EventType = "appointment_confirmed"
	EventAppointmentCompleted EventType = "appointment_completed"
	EventAppointmentCancelled EventType = "appointment_cancelled"
	EventAppointmentNoShow    EventType = "appointment_no_show"

	EventPatientRegistered  EventType = "patient_registered"
	EventPatientCheckedIn   EventType = "patient_checked_in"
	EventPatientCheckedOut  EventType = "patient_checked_out"

	EventTreatmentStarted   EventType = "treatment_started"
	EventTreatmentCompleted EventType = "treatment_completed"
	EventPrescriptionIssued EventType = "prescription_issued"
	EventFollowUpScheduled  EventType = "follow_up_scheduled"

	EventPaymentReceived EventType = "payment_received"
	EventPaymentRefunded EventType = "payment_refunded"
	EventInvoiceIssued   EventType = "invoice_issued"
	EventClaimSubmitted  EventType = "claim_submitted"
	EventClaimDenied     EventType = "claim_denied"

	EventSystemError EventType = "system_error"
	EventAPIRequest  EventType = "api_request"
)

// Event type prefixes used to route events to KPI categories
const (
	PrefixAppointment = "appointment_"
	PrefixPatient     = "patient_"
	PrefixTreatment   = "treatment_"
	PrefixPayment     = "payment_"
	PrefixInvoice     = "invoice_"
	PrefixClaim       = "claim_"
	PrefixSystem      = "system_"
	PrefixAPI         = "api_"
)

// IngestionEvent is the envelope for a single operational occurrence.
// Data is free-form at the boundary; the rule engine validates and
// transforms it before it reaches aggregation.
type IngestionEvent struct {
	ID        string         `json:"id,omitempty"`
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Seq is the collection order, assigned by the collector. Events
	// with identical timestamps aggregate in Seq order.
	Seq uint64 `json:"seq,omitempty"`
}

// Clone returns a deep copy of the event. The collector hands clones to
// the rule engine so a rejected transformation never corrupts the
// producer's copy.
func (e *IngestionEvent) Clone() *IngestionEvent {
	c := *e
	c.Data = cloneMap(e.Data)
	c.Metadata = cloneMap(e.Metadata)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PatientKey returns the patient reference from metadata, if any.
func (e *IngestionEvent) PatientKey() string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata["patientId"].(string); ok {
		return v
	}
	return ""
}

// CollectResult is returned synchronously from every Collect call.
type CollectResult struct {
	Success     bool   `json:"success"`
	AutoFlushed bool   `json:"auto_flushed"`
	Error       string `json:"error,omitempty"`
}

// CollectorStats is a read-only snapshot of collector counters.
type CollectorStats struct {
	QueueLength    int       `json:"queue_length"`
	TotalCollected uint64    `json:"total_collected"`
	TotalFlushed   uint64    `json:"total_flushed"`
	TotalErrors    uint64    `json:"total_errors"`
	EventsLost     uint64    `json:"events_lost"`
	LastFlushAt    time.Time `json:"last_flush_at"`
}

// CategoryStatus marks whether a report category completed
type CategoryStatus string

const (
	CategoryStatusOK          CategoryStatus = "ok"
	CategoryStatusUnavailable CategoryStatus = "unavailable"
)

// MetricValue is a single computed KPI metric. Value is nil when the
// metric is not applicable (e.g. a rate whose denominator is zero).
// Excluded counts events that were relevant to the metric but missing a
// field it requires.
type MetricValue struct {
	Value    *float64 `json:"value"`
	Excluded int      `json:"excluded,omitempty"`
}

// Number builds an applicable MetricValue.
func Number(v float64) MetricValue {
	return MetricValue{Value: &v}
}

// NotApplicable builds a MetricValue with no value.
func NotApplicable() MetricValue {
	return MetricValue{}
}

// CategoryReport holds the metrics of one KPI category.
type CategoryReport struct {
	Status  CategoryStatus         `json:"status"`
	Metrics map[string]MetricValue `json:"metrics"`
}

// TimeRange is an inclusive [Start, End] window over event timestamps.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range (inclusive).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// ReportMetadata describes how a KPI report was computed.
type ReportMetadata struct {
	ComputedAt      time.Time  `json:"computed_at"`
	EventCount      int        `json:"event_count"`
	TotalEvents     int        `json:"total_events"`
	TimeRange       TimeRange  `json:"time_range"`
	RequestedRange  *TimeRange `json:"requested_range,omitempty"`
	CoveragePercent float64    `json:"coverage_percent"`
	LowConfidence   bool       `json:"low_confidence,omitempty"`
}

// KPIReport is the derived, disposable result of one KPI computation.
// It is never mutated after construction.
type KPIReport struct {
	PatientFlow     *CategoryReport `json:"patient_flow,omitempty"`
	ClinicalQuality *CategoryReport `json:"clinical_quality,omitempty"`
	Operational     *CategoryReport `json:"operational,omitempty"`
	Financial       *CategoryReport `json:"financial,omitempty"`
	SystemHealth    *CategoryReport `json:"system_health,omitempty"`
	Metadata        ReportMetadata  `json:"metadata"`
}

// AuditEntry records a collector or aggregation action. Counts only,
// never payloads.
type AuditEntry struct {
	ID       string         `json:"id"`
	Action   string         `json:"action"`
	Counts   map[string]int `json:"counts"`
	Recorded time.Time      `json:"recorded"`
}

// Prediction is the opaque result returned by an external prediction
// provider.
type Prediction struct {
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	ModelID    string  `json:"model_id,omitempty"`
}
