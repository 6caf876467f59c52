package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventRecord is the strongly-typed projection of an IngestionEvent.
// The free-form Data map stays at the ingestion boundary; aggregation
// only ever sees records, so "any" never leaks past this file.
type EventRecord struct {
	EventType string
	Source    string
	Timestamp time.Time
	Seq       uint64

	Status     string
	Department string
	Provider   string
	PatientKey string

	DurationMin float64
	HasDuration bool

	WaitMin float64
	HasWait bool

	AmountCents int64
	HasAmount   bool

	LatencyMs  float64
	HasLatency bool

	Success    bool
	HasSuccess bool
}

// ProjectRecord extracts the typed fields aggregation cares about from
// an event's payload. Missing or mistyped fields leave the
// corresponding Has* flag false; projection itself never fails.
func ProjectRecord(e *IngestionEvent) EventRecord {
	r := EventRecord{
		EventType:  e.EventType,
		Source:     e.Source,
		Timestamp:  e.Timestamp,
		Seq:        e.Seq,
		PatientKey: e.PatientKey(),
	}
	if e.Data == nil {
		return r
	}

	r.Status, _ = asString(e.Data["status"])
	r.Department, _ = asString(e.Data["department"])
	r.Provider, _ = asString(e.Data["provider"])

	r.DurationMin, r.HasDuration = asFloat(e.Data["durationMinutes"])
	r.WaitMin, r.HasWait = asFloat(e.Data["waitMinutes"])
	r.LatencyMs, r.HasLatency = asFloat(e.Data["latencyMs"])
	r.Success, r.HasSuccess = e.Data["success"].(bool)

	if cents, ok := asFloat(e.Data["amountCents"]); ok {
		r.AmountCents = int64(cents)
		r.HasAmount = true
	} else if amount, ok := asFloat(e.Data["amount"]); ok {
		// Currency-unit amounts convert to cents through decimal so
		// 19.99 never becomes 1998.
		r.AmountCents = decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		r.HasAmount = true
	}

	return r
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v any) (float64, bool) {
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
