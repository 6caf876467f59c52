package api

import (
	"encoding/json"
	"net/http"

	"github.com/savegress/clinicpulse/internal/audit"
	"github.com/savegress/clinicpulse/internal/collector"
	"github.com/savegress/clinicpulse/internal/insights"
	"github.com/savegress/clinicpulse/internal/kpi"
	"github.com/savegress/clinicpulse/internal/sink"
	"github.com/savegress/clinicpulse/pkg/models"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	collector *collector.Collector
	kpi       *kpi.Engine
	snapshot  *sink.Memory
	audit     *audit.Logger
	insights  *insights.Client
}

// Response helpers

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CollectEvent ingests a single event
func (h *Handlers) CollectEvent(w http.ResponseWriter, r *http.Request) {
	var event models.IngestionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event payload")
		return
	}

	result := h.collector.Collect(&event)
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// CollectBatch ingests multiple events, returning a result per event
func (h *Handlers) CollectBatch(w http.ResponseWriter, r *http.Request) {
	var events []models.IngestionEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid batch payload")
		return
	}

	results := make([]models.CollectResult, len(events))
	accepted := 0
	for i := range events {
		results[i] = h.collector.Collect(&events[i])
		if results[i].Success {
			accepted++
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": accepted,
		"rejected": len(events) - accepted,
		"results":  results,
	})
}

// GetStats returns the collector counters
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.Stats())
}

// TriggerFlush forces a flush of the buffered events
func (h *Handlers) TriggerFlush(w http.ResponseWriter, r *http.Request) {
	if err := h.collector.Flush(); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.collector.Stats())
}

// ComputeReport computes a KPI report over recently flushed events
func (h *Handlers) ComputeReport(w http.ResponseWriter, r *http.Request) {
	var opts kpi.Options
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid report options")
			return
		}
	}

	report, err := h.kpi.Compute(h.snapshot.Events(), opts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetAuditTrail returns the audit trail snapshot
func (h *Handlers) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, "Audit trail is disabled")
		return
	}
	entries := h.audit.Entries()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"dropped": h.audit.Dropped(),
	})
}

// PredictNoShow computes current patient-flow KPIs and asks the
// prediction provider for a no-show risk estimate
func (h *Handlers) PredictNoShow(w http.ResponseWriter, r *http.Request) {
	if h.insights == nil || !h.insights.Enabled() {
		writeError(w, http.StatusNotFound, "Prediction provider is not configured")
		return
	}

	report, err := h.kpi.Compute(h.snapshot.Events(), kpi.Options{
		Categories: &kpi.CategorySet{PatientFlow: true},
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	features := insights.BuildNoShowFeatures(report)
	prediction, err := h.insights.PredictNoShow(r.Context(), features)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features":   features,
		"prediction": prediction,
	})
}
