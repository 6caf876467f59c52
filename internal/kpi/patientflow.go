package kpi

import (
	"github.com/savegress/clinicpulse/pkg/models"
)

// patientFlow derives scheduling and attendance metrics. Rates use the
// total number of appointment events as denominator, so a batch of
// pure outcome events (completed/no-show) still yields rates.
func patientFlow(records []models.EventRecord) map[string]models.MetricValue {
	var scheduled, completed, noShows, cancellations, checkIns, appointments int
	patients := make(map[string]bool)

	var waitSum float64
	var waitN, waitExcluded int

	for _, r := range records {
		if hasPrefix(r.EventType, models.PrefixAppointment) {
			appointments++
		}

		switch r.EventType {
		case string(models.EventAppointmentScheduled):
			scheduled++
		case string(models.EventAppointmentCompleted):
			completed++
		case string(models.EventAppointmentNoShow):
			noShows++
		case string(models.EventAppointmentCancelled):
			cancellations++
		case string(models.EventPatientCheckedIn):
			checkIns++
			if r.HasWait {
				waitSum += r.WaitMin
				waitN++
			} else {
				waitExcluded++
			}
		}

		if r.PatientKey != "" &&
			(hasPrefix(r.EventType, models.PrefixAppointment) || hasPrefix(r.EventType, models.PrefixPatient)) {
			patients[r.PatientKey] = true
		}
	}

	avgWait := models.MetricValue{Excluded: waitExcluded}
	if waitN > 0 {
		v := round2(waitSum / float64(waitN))
		avgWait.Value = &v
	}

	return map[string]models.MetricValue{
		"appointments_scheduled": count(scheduled),
		"appointments_completed": count(completed),
		"no_shows":               count(noShows),
		"cancellations":          count(cancellations),
		"check_ins":              count(checkIns),
		"unique_patients":        count(len(patients)),
		"no_show_rate":           rate(float64(noShows), float64(appointments)),
		"completion_rate":        rate(float64(completed), float64(appointments)),
		"cancellation_rate":      rate(float64(cancellations), float64(appointments)),
		"avg_wait_minutes":       avgWait,
	}
}
