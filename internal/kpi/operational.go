package kpi

import (
	"github.com/savegress/clinicpulse/pkg/models"
)

// operational derives throughput and utilization metrics across all
// event types in the filtered set.
func operational(records []models.EventRecord) map[string]models.MetricValue {
	total := len(records)
	sources := make(map[string]bool)
	providers := make(map[string]bool)
	byHour := make(map[int]int)

	var visitSum float64
	var visitN, visitExcluded int

	for _, r := range records {
		sources[r.Source] = true
		if r.Provider != "" {
			providers[r.Provider] = true
		}
		byHour[r.Timestamp.Hour()]++

		if r.EventType == string(models.EventPatientCheckedOut) {
			if r.HasDuration {
				visitSum += r.DurationMin
				visitN++
			} else {
				visitExcluded++
			}
		}
	}

	eventsPerDay := models.NotApplicable()
	if total > 0 {
		span := records[len(records)-1].Timestamp.Sub(records[0].Timestamp)
		days := span.Hours() / 24
		if days < 1 {
			days = 1
		}
		eventsPerDay = models.Number(round2(float64(total) / days))
	}

	// Lowest hour wins ties so the metric is deterministic.
	busiest := models.NotApplicable()
	if total > 0 {
		bestHour, bestCount := -1, -1
		for hour := 0; hour < 24; hour++ {
			if byHour[hour] > bestCount {
				bestHour, bestCount = hour, byHour[hour]
			}
		}
		busiest = models.Number(float64(bestHour))
	}

	avgVisit := models.MetricValue{Excluded: visitExcluded}
	if visitN > 0 {
		v := round2(visitSum / float64(visitN))
		avgVisit.Value = &v
	}

	return map[string]models.MetricValue{
		"total_events":               count(total),
		"events_per_day":             eventsPerDay,
		"busiest_hour":               busiest,
		"unique_sources":             count(len(sources)),
		"unique_providers":           count(len(providers)),
		"avg_visit_duration_minutes": avgVisit,
	}
}
