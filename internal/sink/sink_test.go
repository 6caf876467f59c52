package sink

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/savegress/clinicpulse/pkg/models"
)

func batchOf(n int, offset int) []*models.IngestionEvent {
	batch := make([]*models.IngestionEvent, n)
	for i := range batch {
		batch[i] = &models.IngestionEvent{
			ID:        fmt.Sprintf("ev-%d", offset+i),
			EventType: string(models.EventAppointmentScheduled),
			Source:    "test",
		}
	}
	return batch
}

func TestMemoryRetainsFlushOrder(t *testing.T) {
	m := NewMemory(10)

	if err := m.Flush(context.Background(), batchOf(3, 0)); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := m.Flush(context.Background(), batchOf(2, 3)); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	events := m.Events()
	if len(events) != 5 {
		t.Fatalf("len = %d, want 5", len(events))
	}
	if events[0].ID != "ev-0" || events[4].ID != "ev-4" {
		t.Errorf("flush order not retained: %s .. %s", events[0].ID, events[4].ID)
	}
}

func TestMemoryEvictsOldest(t *testing.T) {
	m := NewMemory(4)

	m.Flush(context.Background(), batchOf(3, 0))
	m.Flush(context.Background(), batchOf(3, 3))

	events := m.Events()
	if len(events) != 4 {
		t.Fatalf("len = %d, want capacity 4", len(events))
	}
	if events[0].ID != "ev-2" {
		t.Errorf("oldest retained = %s, want ev-2", events[0].ID)
	}
	if m.Len() != 4 {
		t.Errorf("Len() = %d, want 4", m.Len())
	}
}

func TestFanoutOrderAndFirstError(t *testing.T) {
	var order []string
	record := func(name string, err error) Sink {
		return Func(func(ctx context.Context, batch []*models.IngestionEvent) error {
			order = append(order, name)
			return err
		})
	}

	boom := errors.New("boom")
	f := NewFanout(record("first", nil), record("second", boom), record("third", nil))

	err := f.Flush(context.Background(), batchOf(1, 0))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	// The failing sink stops the chain; earlier sinks already ran.
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("invocation order = %v, want [first second]", order)
	}
}

func TestFuncAdapter(t *testing.T) {
	called := false
	var s Sink = Func(func(ctx context.Context, batch []*models.IngestionEvent) error {
		called = true
		return nil
	})

	if err := s.Flush(context.Background(), batchOf(1, 0)); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if !called {
		t.Error("adapted function not invoked")
	}
}
