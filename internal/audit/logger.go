package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/savegress/clinicpulse/pkg/models"
)

// Sink receives audit records from the collector and the aggregation
// engine. Implementations must never be handed raw payloads; the
// contract is action names and counts only.
type Sink interface {
	Log(action string, counts map[string]int)
}

// Actions recorded by the pipeline
const (
	ActionEventCollected = "event_collected"
	ActionBatchFlushed   = "batch_flushed"
	ActionReportComputed = "report_computed"
)

// Logger is the default Sink: a bounded in-memory audit trail fed
// through a channel so hot paths never block on trail maintenance.
type Logger struct {
	enabled    bool
	maxEntries int

	entries []models.AuditEntry
	dropped uint64
	mu      sync.RWMutex

	running bool
	stopCh  chan struct{}
	entryCh chan models.AuditEntry
}

// NewLogger creates an audit logger retaining at most maxEntries
// records, oldest evicted first.
func NewLogger(enabled bool, maxEntries int) *Logger {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Logger{
		enabled:    enabled,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
		entryCh:    make(chan models.AuditEntry, 1000),
	}
}

// Start starts the trail writer.
func (l *Logger) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	go l.processEntries(ctx)
	return nil
}

// Stop stops the trail writer.
func (l *Logger) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		close(l.stopCh)
		l.running = false
	}
}

func (l *Logger) processEntries(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case entry := <-l.entryCh:
			l.mu.Lock()
			l.entries = append(l.entries, entry)
			if len(l.entries) > l.maxEntries {
				l.entries = l.entries[len(l.entries)-l.maxEntries:]
			}
			l.mu.Unlock()
		}
	}
}

// Log records an action with its counts. Non-blocking: if the trail
// writer is saturated the entry is counted as dropped instead of
// stalling the caller.
func (l *Logger) Log(action string, counts map[string]int) {
	if !l.enabled {
		return
	}

	entry := models.AuditEntry{
		ID:       uuid.New().String(),
		Action:   action,
		Counts:   counts,
		Recorded: time.Now(),
	}

	select {
	case l.entryCh <- entry:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
	}
}

// Entries returns a snapshot of the trail, oldest first.
func (l *Logger) Entries() []models.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Dropped returns how many entries were lost to writer saturation.
func (l *Logger) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}

// Noop is a Sink that discards everything, for callers that opt out of
// auditing.
type Noop struct{}

// Log implements Sink.
func (Noop) Log(string, map[string]int) {}
