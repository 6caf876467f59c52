package collector

import "fmt"

// ValidationError reports an event that failed required-field or
// healthcare-specific checks. Local to one event; surfaced
// synchronously to the producer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// QueueFullError reports that the buffer was at capacity and the
// synchronous flush also failed. The producer must retry or drop.
type QueueFullError struct {
	Capacity int
	Cause    error
}

func (e *QueueFullError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("queue full at %d events and flush failed: %v", e.Capacity, e.Cause)
	}
	return fmt.Sprintf("queue full at %d events", e.Capacity)
}

func (e *QueueFullError) Unwrap() error { return e.Cause }

// SinkError reports a failed flush delivery. The batch is restored to
// the buffer (bounded) and the error reported through the callback;
// never fatal to the collector.
type SinkError struct {
	BatchSize int
	Cause     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink rejected batch of %d events: %v", e.BatchSize, e.Cause)
}

func (e *SinkError) Unwrap() error { return e.Cause }
