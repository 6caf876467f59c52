package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/savegress/clinicpulse/internal/config"
	"github.com/savegress/clinicpulse/pkg/models"
)

// FeatureVector is the well-formed input this pipeline supplies to an
// external prediction provider. Rate features may be nil when the
// underlying metric was not applicable.
type FeatureVector struct {
	NoShowRate            *float64 `json:"no_show_rate"`
	CancellationRate      *float64 `json:"cancellation_rate"`
	AvgWaitMinutes        *float64 `json:"avg_wait_minutes"`
	AppointmentsScheduled float64  `json:"appointments_scheduled"`
	UniquePatients        float64  `json:"unique_patients"`
	EventCount            float64  `json:"event_count"`
	CoveragePercent       float64  `json:"coverage_percent"`
}

// Client talks to the prediction provider. The provider's model is
// opaque; this client only ships feature vectors and reads back
// prediction plus confidence.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a prediction provider client.
func NewClient(cfg config.InsightsConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.ProviderURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled reports whether a provider URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// PredictNoShow requests a no-show risk prediction for the given
// features.
func (c *Client) PredictNoShow(ctx context.Context, features FeatureVector) (*models.Prediction, error) {
	return c.predict(ctx, "/v1/predictions/no-show", features)
}

func (c *Client) predict(ctx context.Context, path string, features FeatureVector) (*models.Prediction, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("prediction provider is not configured")
	}

	body, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(data))
	}

	var prediction models.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}

	return &prediction, nil
}

// BuildNoShowFeatures derives a feature vector from a computed KPI
// report. Only aggregate metrics cross this boundary, never event
// payloads.
func BuildNoShowFeatures(report *models.KPIReport) FeatureVector {
	features := FeatureVector{
		EventCount:      float64(report.Metadata.EventCount),
		CoveragePercent: report.Metadata.CoveragePercent,
	}

	if report.PatientFlow == nil || report.PatientFlow.Status != models.CategoryStatusOK {
		return features
	}

	m := report.PatientFlow.Metrics
	features.NoShowRate = m["no_show_rate"].Value
	features.CancellationRate = m["cancellation_rate"].Value
	features.AvgWaitMinutes = m["avg_wait_minutes"].Value
	if v := m["appointments_scheduled"].Value; v != nil {
		features.AppointmentsScheduled = *v
	}
	if v := m["unique_patients"].Value; v != nil {
		features.UniquePatients = *v
	}

	return features
}
