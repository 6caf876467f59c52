package models

import (
	"testing"
	"time"
)

func TestProjectRecordAmountCents(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want int64
		has  bool
	}{
		{"currency units", map[string]any{"amount": 19.99}, 1999, true},
		{"float artifact", map[string]any{"amount": 0.1 + 0.2}, 30, true},
		{"explicit cents", map[string]any{"amountCents": 150.0}, 150, true},
		{"cents win over amount", map[string]any{"amountCents": 100.0, "amount": 9.99}, 100, true},
		{"missing", map[string]any{}, 0, false},
		{"mistyped", map[string]any{"amount": "19.99"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ProjectRecord(&IngestionEvent{
				EventType: string(EventPaymentReceived),
				Source:    "billing",
				Timestamp: time.Now(),
				Data:      tt.data,
			})
			if r.HasAmount != tt.has || r.AmountCents != tt.want {
				t.Errorf("amount = %d (has=%v), want %d (has=%v)", r.AmountCents, r.HasAmount, tt.want, tt.has)
			}
		})
	}
}

func TestProjectRecordTypedFields(t *testing.T) {
	r := ProjectRecord(&IngestionEvent{
		EventType: string(EventPatientCheckedIn),
		Source:    "front-desk",
		Timestamp: time.Now(),
		Data: map[string]any{
			"waitMinutes": 12,
			"provider":    "dr-a",
			"success":     true,
		},
		Metadata: map[string]any{"patientId": "p-1"},
	})

	if !r.HasWait || r.WaitMin != 12 {
		t.Errorf("wait = %v (has=%v), want 12", r.WaitMin, r.HasWait)
	}
	if r.Provider != "dr-a" || r.PatientKey != "p-1" {
		t.Errorf("provider/patient = %q/%q", r.Provider, r.PatientKey)
	}
	if !r.HasSuccess || !r.Success {
		t.Error("success flag not projected")
	}
	if r.HasDuration || r.HasAmount || r.HasLatency {
		t.Error("absent fields should leave Has* flags false")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := &IngestionEvent{
		EventType: string(EventAppointmentScheduled),
		Source:    "scheduling",
		Data:      map[string]any{"status": "booked"},
		Metadata:  map[string]any{"patientId": "p-1"},
	}

	clone := original.Clone()
	clone.Data["status"] = "cancelled"
	clone.Metadata["patientId"] = "p-2"

	if original.Data["status"] != "booked" || original.Metadata["patientId"] != "p-1" {
		t.Error("clone shares maps with the original")
	}
}
