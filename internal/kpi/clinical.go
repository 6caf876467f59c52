package kpi

import (
	"github.com/savegress/clinicpulse/pkg/models"
)

// clinicalQuality derives treatment and follow-up metrics.
func clinicalQuality(records []models.EventRecord) map[string]models.MetricValue {
	var started, completed, prescriptions, followUps int

	var durationSum float64
	var durationN, durationExcluded int

	for _, r := range records {
		switch r.EventType {
		case string(models.EventTreatmentStarted):
			started++
		case string(models.EventTreatmentCompleted):
			completed++
			if r.HasDuration {
				durationSum += r.DurationMin
				durationN++
			} else {
				durationExcluded++
			}
		case string(models.EventPrescriptionIssued):
			prescriptions++
		case string(models.EventFollowUpScheduled):
			followUps++
		}
	}

	avgDuration := models.MetricValue{Excluded: durationExcluded}
	if durationN > 0 {
		v := round2(durationSum / float64(durationN))
		avgDuration.Value = &v
	}

	return map[string]models.MetricValue{
		"treatments_started":             count(started),
		"treatments_completed":           count(completed),
		"prescriptions_issued":           count(prescriptions),
		"follow_ups_scheduled":           count(followUps),
		"treatment_completion_rate":      rate(float64(completed), float64(started)),
		"follow_up_rate":                 rate(float64(followUps), float64(completed)),
		"avg_treatment_duration_minutes": avgDuration,
	}
}
