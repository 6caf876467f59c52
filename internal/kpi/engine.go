package kpi

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/savegress/clinicpulse/internal/audit"
	"github.com/savegress/clinicpulse/pkg/models"
)

// Engine computes KPI reports over arbitrary event batches. It holds
// no mutable state between computations and is safe for concurrent
// use; every report is a fresh, never-mutated value.
type Engine struct {
	minEventCount int
	strict        bool
	auditSink     audit.Sink

	// clock stamps report metadata; overridable in tests.
	clock func() time.Time
}

// NewEngine creates a KPI engine. minEventCount and strict act as
// defaults that per-call Options can override upward (a strict call on
// a lenient engine is strict; the reverse is not).
func NewEngine(minEventCount int, strict bool, auditSink audit.Sink) *Engine {
	if auditSink == nil {
		auditSink = audit.Noop{}
	}
	return &Engine{
		minEventCount: minEventCount,
		strict:        strict,
		auditSink:     auditSink,
		clock:         time.Now,
	}
}

// Compute filters events by the options and derives every enabled
// category independently. Events with identical timestamps aggregate
// in collection order, so the result does not depend on input
// ordering from concurrent producers.
func (e *Engine) Compute(events []*models.IngestionEvent, opts Options) (*models.KPIReport, error) {
	strict := opts.Strict || e.strict
	minCount := opts.MinEventCount
	if minCount == 0 {
		minCount = e.minEventCount
	}

	typeFilter := toSet(opts.EventTypes)
	sourceFilter := toSet(opts.Sources)

	// Single filtering pass.
	var filtered []*models.IngestionEvent
	for _, ev := range events {
		if reason := malformed(ev); reason != "" {
			if strict {
				id := ""
				if ev != nil {
					id = ev.ID
				}
				return nil, &ComputationError{EventID: id, Reason: reason}
			}
			continue
		}
		if typeFilter != nil && !typeFilter[ev.EventType] {
			continue
		}
		if sourceFilter != nil && !sourceFilter[ev.Source] {
			continue
		}
		if opts.TimeRange != nil && !opts.TimeRange.Contains(ev.Timestamp) {
			continue
		}
		filtered = append(filtered, ev)
	}

	// Stable order: timestamp, then collection sequence.
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].Seq < filtered[j].Seq
		}
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	records := make([]models.EventRecord, len(filtered))
	for i, ev := range filtered {
		records[i] = models.ProjectRecord(ev)
	}

	categories := AllCategories()
	if opts.Categories != nil {
		categories = *opts.Categories
	}

	report := &models.KPIReport{}
	if categories.PatientFlow {
		report.PatientFlow = computeCategory(records, patientFlow)
	}
	if categories.ClinicalQuality {
		report.ClinicalQuality = computeCategory(records, clinicalQuality)
	}
	if categories.Operational {
		report.Operational = computeCategory(records, operational)
	}
	if categories.Financial {
		report.Financial = computeCategory(records, financial)
	}
	if categories.SystemHealth {
		report.SystemHealth = computeCategory(records, systemHealth)
	}

	report.Metadata = e.metadata(filtered, len(events), opts, minCount)

	e.auditSink.Log(audit.ActionReportComputed, map[string]int{
		"events_total": len(events),
		"events_used":  len(filtered),
	})

	return report, nil
}

// computeCategory runs one category calculator, converting a panic
// into an unavailable section so no failure ever corrupts the rest of
// the report.
func computeCategory(records []models.EventRecord, calc func([]models.EventRecord) map[string]models.MetricValue) (out *models.CategoryReport) {
	defer func() {
		if r := recover(); r != nil {
			out = &models.CategoryReport{
				Status:  models.CategoryStatusUnavailable,
				Metrics: map[string]models.MetricValue{},
			}
		}
	}()

	return &models.CategoryReport{
		Status:  models.CategoryStatusOK,
		Metrics: calc(records),
	}
}

func (e *Engine) metadata(filtered []*models.IngestionEvent, total int, opts Options, minCount int) models.ReportMetadata {
	meta := models.ReportMetadata{
		ComputedAt:  e.clock(),
		EventCount:  len(filtered),
		TotalEvents: total,
	}
	if opts.TimeRange != nil {
		r := *opts.TimeRange
		meta.RequestedRange = &r
	}
	if len(filtered) > 0 {
		meta.TimeRange = models.TimeRange{
			Start: filtered[0].Timestamp,
			End:   filtered[len(filtered)-1].Timestamp,
		}
	}
	if total > 0 {
		meta.CoveragePercent = round2(float64(len(filtered)) / float64(total) * 100)
	}
	meta.LowConfidence = len(filtered) < minCount
	return meta
}

// malformed returns a non-empty reason when an event cannot take part
// in aggregation at all.
func malformed(ev *models.IngestionEvent) string {
	switch {
	case ev == nil:
		return "event is nil"
	case ev.EventType == "":
		return "event_type is empty"
	case ev.Source == "":
		return "source is empty"
	case ev.Timestamp.IsZero():
		return "timestamp is missing"
	}
	return ""
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// round2 rounds to two decimal places; every rate-style metric is a
// 0-100 percentage at this precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// rate builds a percentage metric, guarding the zero denominator with
// a not-applicable value instead of NaN or Inf.
func rate(num, den float64) models.MetricValue {
	if den == 0 {
		return models.NotApplicable()
	}
	return models.Number(round2(num / den * 100))
}

func count(n int) models.MetricValue {
	return models.Number(float64(n))
}

func hasPrefix(eventType, prefix string) bool {
	return strings.HasPrefix(eventType, prefix)
}
