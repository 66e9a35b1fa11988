// Package emit provides event emission and observability for graph execution.
package emit

import "context"

// Emitter receives observability events emitted around a snapshot's
// lifecycle transitions during a run.
//
// Implementations should be non-blocking, safe for concurrent use (the
// engine calls Emit from whatever goroutine is driving the run), and must
// not panic.
type Emitter interface {
	// Emit sends one event to the configured backend.
	Emit(event Event)

	// EmitBatch sends multiple events, preserving order, in one operation.
	// Returns an error only on catastrophic failures (e.g. misconfiguration);
	// individual event failures should be logged internally, not returned.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until every buffered event has been sent, or ctx expires.
	// Safe to call multiple times.
	Flush(ctx context.Context) error
}
