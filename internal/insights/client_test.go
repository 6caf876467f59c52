package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/savegress/clinicpulse/internal/config"
	"github.com/savegress/clinicpulse/pkg/models"
)

func TestPredictNoShow(t *testing.T) {
	var gotPath, gotAuth string
	var gotFeatures FeatureVector

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotFeatures); err != nil {
			t.Errorf("decode features: %v", err)
		}
		json.NewEncoder(w).Encode(models.Prediction{
			Label: "elevated", Score: 0.71, Confidence: 0.9, ModelID: "noshow-v2",
		})
	}))
	defer server.Close()

	client := NewClient(config.InsightsConfig{
		ProviderURL: server.URL,
		APIKey:      "key-123",
	})

	rate := 33.33
	prediction, err := client.PredictNoShow(context.Background(), FeatureVector{
		NoShowRate: &rate,
		EventCount: 3,
	})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}

	if gotPath != "/v1/predictions/no-show" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer key-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotFeatures.NoShowRate == nil || *gotFeatures.NoShowRate != 33.33 {
		t.Errorf("features not forwarded: %+v", gotFeatures)
	}
	if prediction.Label != "elevated" || prediction.Score != 0.71 {
		t.Errorf("prediction = %+v", prediction)
	}
}

func TestPredictProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(config.InsightsConfig{ProviderURL: server.URL})
	if _, err := client.PredictNoShow(context.Background(), FeatureVector{}); err == nil {
		t.Fatal("expected error from failing provider")
	}
}

func TestPredictDisabled(t *testing.T) {
	client := NewClient(config.InsightsConfig{})
	if client.Enabled() {
		t.Fatal("client with no URL should be disabled")
	}
	if _, err := client.PredictNoShow(context.Background(), FeatureVector{}); err == nil {
		t.Fatal("expected error when not configured")
	}
}

func TestBuildNoShowFeatures(t *testing.T) {
	rate := 25.0
	report := &models.KPIReport{
		PatientFlow: &models.CategoryReport{
			Status: models.CategoryStatusOK,
			Metrics: map[string]models.MetricValue{
				"no_show_rate":           {Value: &rate},
				"appointments_scheduled": models.Number(4),
				"unique_patients":        models.Number(3),
				"avg_wait_minutes":       models.NotApplicable(),
				"cancellation_rate":      models.NotApplicable(),
			},
		},
		Metadata: models.ReportMetadata{EventCount: 4, CoveragePercent: 100},
	}

	features := BuildNoShowFeatures(report)
	if features.NoShowRate == nil || *features.NoShowRate != 25 {
		t.Errorf("no_show_rate = %v, want 25", features.NoShowRate)
	}
	if features.AppointmentsScheduled != 4 || features.UniquePatients != 3 {
		t.Errorf("counts = %+v", features)
	}
	if features.AvgWaitMinutes != nil {
		t.Error("not-applicable wait should stay nil")
	}

	// Unavailable category degrades to metadata-only features.
	report.PatientFlow.Status = models.CategoryStatusUnavailable
	features = BuildNoShowFeatures(report)
	if features.NoShowRate != nil || features.EventCount != 4 {
		t.Errorf("degraded features = %+v", features)
	}
}
