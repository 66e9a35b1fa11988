package graphrun

import (
	"context"
	"time"
)

// Persistence is the contract every backend implements: append node/end
// snapshots, bracket a node's execution with status/timing updates, and
// restore the most recent snapshot.
type Persistence[State, Deps, RunEnd any] interface {
	// SnapshotNode appends a NodeSnapshot with status StatusCreated,
	// capturing state and next per the backend's deep-copy policy, and
	// returns the new snapshot's ID.
	SnapshotNode(ctx context.Context, state *State, next Node[State, Deps, RunEnd]) (string, error)

	// SnapshotEnd appends an EndSnapshot capturing state and end per the
	// backend's deep-copy policy, and returns the new snapshot's ID.
	SnapshotEnd(ctx context.Context, state *State, end End[RunEnd]) (string, error)

	// RecordRun locates the node snapshot with snapshotID and returns a
	// Recording scoped resource. It fails with ErrSnapshotNotFound if no
	// snapshot has that ID, or ErrNotNodeSnapshot if the snapshot is an end
	// snapshot.
	RecordRun(ctx context.Context, snapshotID string) (*Recording, error)

	// Restore returns the most recent snapshot, or nil if the backend is
	// empty.
	Restore(ctx context.Context) (*Snapshot[State, Deps, RunEnd], error)
}

// HistoryPersistence is implemented by full-history backends: in addition to
// the base contract, they retain every snapshot and support JSON round-trip
// through a codec built from a NodeRegistry.
type HistoryPersistence[State, Deps, RunEnd any] interface {
	Persistence[State, Deps, RunEnd]

	// History returns every snapshot recorded so far, in insertion order.
	History(ctx context.Context) ([]Snapshot[State, Deps, RunEnd], error)

	// SetTypes lazily configures the polymorphic codec used by
	// DumpJSON/LoadJSON from the graph's node registry.
	SetTypes(reg *NodeRegistry[State, Deps, RunEnd])

	// DumpJSON serializes the full history to the wire format in §6. indent,
	// if non-empty, is used as the json.MarshalIndent prefix-free indent
	// string. Fails with ErrCodecNotConfigured if SetTypes was never called.
	DumpJSON(indent string) ([]byte, error)

	// LoadJSON replaces the backend's history with the document decoded from
	// data, assigning snapshot IDs to continue after the maximum ID already
	// allocated. Fails with ErrCodecNotConfigured if SetTypes was never
	// called.
	LoadJSON(data []byte) error
}

// Recording is the scoped resource returned by RecordRun. Close must be
// called exactly once, typically via defer, to guarantee the snapshot's
// timing and terminal status are recorded on every exit path — success,
// error, or a cancellation propagating out of the node's Run.
type Recording struct {
	startedAt time.Time
	finish    func(dur time.Duration, err error)
	done      bool
}

// NewRecording is used by Persistence implementations to build a Recording;
// it is not normally called by users of the engine.
func NewRecording(startedAt time.Time, finish func(dur time.Duration, err error)) *Recording {
	return &Recording{startedAt: startedAt, finish: finish}
}

// StartedAt returns the instant the recording region began.
func (r *Recording) StartedAt() time.Time { return r.startedAt }

// Close finalizes the recording: err == nil marks the snapshot success, a
// non-nil err marks it error. Calling Close more than once is a no-op after
// the first call.
func (r *Recording) Close(err error) {
	if r.done {
		return
	}
	r.done = true
	r.finish(time.Since(r.startedAt), err)
}
