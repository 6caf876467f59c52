package audit

import (
	"context"
	"testing"
	"time"

	"github.com/savegress/clinicpulse/pkg/models"
)

func waitForEntries(t *testing.T, l *Logger, want int) []models.AuditEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := l.Entries(); len(entries) >= want {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d audit entries, have %d", want, len(l.Entries()))
	return nil
}

func TestLoggerRecordsActions(t *testing.T) {
	l := NewLogger(true, 100)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer l.Stop()

	l.Log(ActionEventCollected, map[string]int{"events": 1})
	l.Log(ActionBatchFlushed, map[string]int{"events": 100})

	entries := waitForEntries(t, l, 2)
	if entries[0].Action != ActionEventCollected || entries[1].Action != ActionBatchFlushed {
		t.Errorf("unexpected entry order: %s, %s", entries[0].Action, entries[1].Action)
	}
	if entries[1].Counts["events"] != 100 {
		t.Errorf("counts = %v, want events=100", entries[1].Counts)
	}
	if entries[0].ID == "" || entries[0].Recorded.IsZero() {
		t.Error("entry missing id or timestamp")
	}
}

func TestLoggerEvictsOldest(t *testing.T) {
	l := NewLogger(true, 3)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer l.Stop()

	for i := 0; i < 5; i++ {
		l.Log(ActionEventCollected, map[string]int{"n": i})
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries := l.Entries()
		if len(entries) == 3 && entries[0].Counts["n"] == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("trail not trimmed to newest 3: %v", l.Entries())
}

func TestLoggerDisabled(t *testing.T) {
	l := NewLogger(false, 100)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer l.Stop()

	l.Log(ActionEventCollected, nil)
	time.Sleep(20 * time.Millisecond)

	if got := len(l.Entries()); got != 0 {
		t.Errorf("disabled logger recorded %d entries", got)
	}
}

func TestLoggerNeverBlocks(t *testing.T) {
	// Not started: the channel fills up and further logs must drop, not
	// stall.
	l := NewLogger(true, 100)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 2000; i++ {
			l.Log(ActionEventCollected, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Log blocked on a saturated trail writer")
	}
	if l.Dropped() == 0 {
		t.Error("expected dropped entries when the writer is saturated")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	l := NewLogger(true, 100)
	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := l.Start(ctx); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	l.Stop()
	l.Stop() // must not panic
}
