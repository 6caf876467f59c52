package sink

import (
	"context"
	"sync"

	"github.com/savegress/clinicpulse/pkg/models"
)

// Sink consumes flushed event batches. Flush is invoked once per
// collector flush with a non-empty batch and must treat redelivery as
// possible: the collector restores failed batches and retries, it does
// not deduplicate.
type Sink interface {
	Flush(ctx context.Context, batch []*models.IngestionEvent) error
}

// Func adapts a plain function to the Sink interface.
type Func func(ctx context.Context, batch []*models.IngestionEvent) error

// Flush implements Sink.
func (f Func) Flush(ctx context.Context, batch []*models.IngestionEvent) error {
	return f(ctx, batch)
}

// Fanout forwards each batch to several sinks in order and reports the
// first failure. Earlier sinks may have already consumed the batch
// when a later one fails; downstream stores must tolerate redelivery.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a fan-out sink.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Flush implements Sink.
func (f *Fanout) Flush(ctx context.Context, batch []*models.IngestionEvent) error {
	for _, s := range f.sinks {
		if err := s.Flush(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// Memory retains flushed events in memory with a capacity cap so the
// KPI query API can report over recently flushed data without an
// external store. Oldest events are evicted first.
type Memory struct {
	capacity int
	events   []*models.IngestionEvent
	mu       sync.RWMutex
}

// NewMemory creates a memory sink holding at most capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 100000
	}
	return &Memory{capacity: capacity}
}

// Flush implements Sink.
func (m *Memory) Flush(ctx context.Context, batch []*models.IngestionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, batch...)
	if len(m.events) > m.capacity {
		m.events = m.events[len(m.events)-m.capacity:]
	}
	return nil
}

// Events returns a snapshot of retained events in flush order.
func (m *Memory) Events() []*models.IngestionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.IngestionEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Len returns the number of retained events.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
