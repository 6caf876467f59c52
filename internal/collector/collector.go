package collector

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/savegress/clinicpulse/internal/audit"
	"github.com/savegress/clinicpulse/internal/config"
	"github.com/savegress/clinicpulse/internal/rules"
	"github.com/savegress/clinicpulse/internal/sink"
	"github.com/savegress/clinicpulse/pkg/models"
)

// ErrorCallback observes validation failures, queue-full rejections
// and flush failures. Purely observational; its return is ignored.
type ErrorCallback func(err error, event *models.IngestionEvent)

// Collector buffers validated events in a bounded in-memory queue and
// flushes batches to a sink when the batch-size or time threshold is
// reached. Construct one per pipeline; there is no shared default
// instance.
type Collector struct {
	cfg        config.CollectorConfig
	ruleEngine *rules.Engine
	sink       sink.Sink
	auditSink  audit.Sink
	onError    ErrorCallback

	mu          sync.Mutex
	buffer      []*models.IngestionEvent
	lastFlushAt time.Time
	seq         uint64

	totalCollected uint64
	totalFlushed   uint64
	totalErrors    uint64
	eventsLost     uint64

	// Serializes sink deliveries so a restored batch cannot interleave
	// with a concurrent delivery.
	flushMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates and starts a collector. The rule engine may be nil to
// skip configured rule chains; the audit sink may be nil to disable
// auditing; onError may be nil.
func New(cfg config.CollectorConfig, ruleEngine *rules.Engine, s sink.Sink, auditSink audit.Sink, onError ErrorCallback) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if auditSink == nil {
		auditSink = audit.Noop{}
	}

	c := &Collector{
		cfg:         cfg,
		ruleEngine:  ruleEngine,
		sink:        s,
		auditSink:   auditSink,
		onError:     onError,
		buffer:      make([]*models.IngestionEvent, 0, cfg.MaxQueueSize),
		lastFlushAt: time.Now(),
		stopCh:      make(chan struct{}),
	}

	c.wg.Add(1)
	go c.autoFlushLoop()

	return c, nil
}

// Collect validates an event and enqueues it. The result is returned
// synchronously; flush failures are only visible through the error
// callback and Stats, since producers are decoupled from flush timing.
func (c *Collector) Collect(event *models.IngestionEvent) models.CollectResult {
	if err := validate(event); err != nil {
		c.recordError(err, event)
		return models.CollectResult{Success: false, Error: err.Error()}
	}

	processed := event
	if c.ruleEngine != nil {
		res := c.ruleEngine.Apply(event)
		if res.Rejected {
			v := res.Violations[len(res.Violations)-1]
			err := &ValidationError{Field: v.Field, Reason: v.Message}
			c.recordError(err, event)
			return models.CollectResult{Success: false, Error: err.Error()}
		}
		processed = res.Event
	} else {
		processed = event.Clone()
	}

	if processed.Timestamp.IsZero() {
		processed.Timestamp = time.Now()
	}
	if processed.ID == "" {
		processed.ID = uuid.New().String()
	}

	c.mu.Lock()

	// At capacity: flush synchronously before admitting, never evict
	// silently. Two attempts cover a concurrent refill.
	for attempt := 0; len(c.buffer) >= c.cfg.MaxQueueSize; attempt++ {
		if attempt == 2 {
			c.mu.Unlock()
			err := &QueueFullError{Capacity: c.cfg.MaxQueueSize}
			c.recordError(err, processed)
			return models.CollectResult{Success: false, Error: err.Error()}
		}
		batch := c.swapLocked()
		c.mu.Unlock()
		if err := c.deliver(batch); err != nil {
			qerr := &QueueFullError{Capacity: c.cfg.MaxQueueSize, Cause: err}
			c.recordError(qerr, processed)
			return models.CollectResult{Success: false, Error: qerr.Error()}
		}
		c.mu.Lock()
	}

	c.seq++
	processed.Seq = c.seq
	c.buffer = append(c.buffer, processed)
	c.totalCollected++

	interval := time.Duration(c.cfg.AutoFlushIntervalMs) * time.Millisecond
	shouldFlush := len(c.buffer) >= c.cfg.MaxBatchSize || time.Since(c.lastFlushAt) > interval

	var batch []*models.IngestionEvent
	if shouldFlush {
		batch = c.swapLocked()
	}
	c.mu.Unlock()

	c.auditSink.Log(audit.ActionEventCollected, map[string]int{"events": 1})

	result := models.CollectResult{Success: true}
	if shouldFlush {
		result.AutoFlushed = true
		// Failure is reported via the callback; the producer's event
		// was admitted either way.
		_ = c.deliver(batch)
	}
	return result
}

// Flush swaps out the buffer and delivers it to the sink. On sink
// failure the batch is restored to the front of the buffer (bounded,
// oldest evicted with a counted loss) and the error returned.
func (c *Collector) Flush() error {
	c.mu.Lock()
	batch := c.swapLocked()
	c.mu.Unlock()
	return c.deliver(batch)
}

// Stats returns a read-only snapshot of the collector counters.
func (c *Collector) Stats() models.CollectorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CollectorStats{
		QueueLength:    len(c.buffer),
		TotalCollected: c.totalCollected,
		TotalFlushed:   c.totalFlushed,
		TotalErrors:    c.totalErrors,
		EventsLost:     c.eventsLost,
		LastFlushAt:    c.lastFlushAt,
	}
}

// Close stops the auto-flush loop and delivers any buffered events.
func (c *Collector) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	return c.Flush()
}

// swapLocked atomically replaces the buffer with an empty one and
// stamps lastFlushAt. Callers must hold mu.
func (c *Collector) swapLocked() []*models.IngestionEvent {
	batch := c.buffer
	c.buffer = make([]*models.IngestionEvent, 0, c.cfg.MaxQueueSize)
	c.lastFlushAt = time.Now()
	return batch
}

// deliver hands a batch to the sink outside the buffer lock so a slow
// sink never stalls producers.
func (c *Collector) deliver(batch []*models.IngestionEvent) error {
	if len(batch) == 0 {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	ctx := context.Background()
	var cancel context.CancelFunc
	if c.cfg.FlushTimeoutMs > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.FlushTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	if err := c.sink.Flush(ctx, batch); err != nil {
		serr := &SinkError{BatchSize: len(batch), Cause: err}
		c.restore(batch)
		c.recordError(serr, nil)
		return serr
	}

	c.mu.Lock()
	c.totalFlushed += uint64(len(batch))
	c.mu.Unlock()

	c.auditSink.Log(audit.ActionBatchFlushed, map[string]int{"events": len(batch)})
	return nil
}

// restore puts a failed batch back at the front of the buffer. If that
// would overflow the queue, the oldest events are dropped and counted
// as lost.
func (c *Collector) restore(batch []*models.IngestionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	combined := make([]*models.IngestionEvent, 0, len(batch)+len(c.buffer))
	combined = append(combined, batch...)
	combined = append(combined, c.buffer...)

	if overflow := len(combined) - c.cfg.MaxQueueSize; overflow > 0 {
		c.eventsLost += uint64(overflow)
		combined = combined[overflow:]
	}
	c.buffer = combined
}

func (c *Collector) recordError(err error, event *models.IngestionEvent) {
	c.mu.Lock()
	c.totalErrors++
	c.mu.Unlock()
	if c.onError != nil {
		c.onError(err, event)
	}
}

func (c *Collector) autoFlushLoop() {
	defer c.wg.Done()

	interval := time.Duration(c.cfg.AutoFlushIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			due := len(c.buffer) > 0 && time.Since(c.lastFlushAt) >= interval
			var batch []*models.IngestionEvent
			if due {
				batch = c.swapLocked()
			}
			c.mu.Unlock()
			if due {
				_ = c.deliver(batch)
			}
		}
	}
}

// validate applies the structural checks every event must pass before
// it can be buffered.
func validate(event *models.IngestionEvent) error {
	if event == nil {
		return &ValidationError{Field: "event", Reason: "event is nil"}
	}
	if event.EventType == "" {
		return &ValidationError{Field: "event_type", Reason: "must be non-empty"}
	}
	if event.Source == "" {
		return &ValidationError{Field: "source", Reason: "must be non-empty"}
	}
	if event.Data == nil {
		return &ValidationError{Field: "data", Reason: "payload object is required"}
	}
	// A present patientId must be a usable identifier; rejecting beats
	// masking a data-quality problem.
	if event.Metadata != nil {
		if v, ok := event.Metadata["patientId"]; ok {
			s, isString := v.(string)
			if !isString || s == "" {
				return &ValidationError{Field: "metadata.patientId", Reason: "must be a non-empty identifier"}
			}
		}
	}
	return nil
}
