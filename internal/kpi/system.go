package kpi

import (
	"github.com/savegress/clinicpulse/pkg/models"
)

// systemHealth derives platform reliability metrics from system_ and
// api_ events.
func systemHealth(records []models.EventRecord) map[string]models.MetricValue {
	var errors, apiRequests, apiSuccesses, successExcluded int

	var latencySum float64
	var latencyN, latencyExcluded int

	for _, r := range records {
		switch {
		case r.EventType == string(models.EventSystemError):
			errors++
		case hasPrefix(r.EventType, models.PrefixAPI):
			apiRequests++
			if r.HasSuccess {
				if r.Success {
					apiSuccesses++
				}
			} else {
				successExcluded++
			}
			if r.HasLatency {
				latencySum += r.LatencyMs
				latencyN++
			} else {
				latencyExcluded++
			}
		}
	}

	successRate := models.MetricValue{Excluded: successExcluded}
	if measured := apiRequests - successExcluded; measured > 0 {
		v := round2(float64(apiSuccesses) / float64(measured) * 100)
		successRate.Value = &v
	}

	avgLatency := models.MetricValue{Excluded: latencyExcluded}
	if latencyN > 0 {
		v := round2(latencySum / float64(latencyN))
		avgLatency.Value = &v
	}

	return map[string]models.MetricValue{
		"system_errors":    count(errors),
		"api_requests":     count(apiRequests),
		"api_success_rate": successRate,
		"avg_latency_ms":   avgLatency,
		"error_rate":       rate(float64(errors), float64(len(records))),
	}
}
