// Package persist provides Persistence backends: in-memory latest-only and
// full-history stores, and SQL-backed full-history stores for SQLite and
// MySQL.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/ashbourne/graphrun"
)

// MemoryLatestPersistence keeps at most one snapshot — the current one —
// overwriting it on every new SnapshotNode/SnapshotEnd call. Deep-copy is
// off by default, intended for lightweight inspection rather than audit.
//
// Type parameters mirror graphrun.Node's: State, Deps, RunEnd.
type MemoryLatestPersistence[State, Deps, RunEnd any] struct {
	mu       sync.Mutex
	alloc    graphrun.IDAllocator
	clock    graphrun.Clock
	deepCopy bool
	current  *graphrun.Snapshot[State, Deps, RunEnd]
}

// NewMemoryLatestPersistence constructs a latest-only backend. Pass opts to
// enable deep-copy or override the clock.
func NewMemoryLatestPersistence[State, Deps, RunEnd any](opts ...MemoryOption) *MemoryLatestPersistence[State, Deps, RunEnd] {
	cfg := memoryConfig{clock: graphrun.SystemClock{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryLatestPersistence[State, Deps, RunEnd]{clock: cfg.clock, deepCopy: cfg.deepCopy}
}

func (m *MemoryLatestPersistence[State, Deps, RunEnd]) SnapshotNode(_ context.Context, state *State, next graphrun.Node[State, Deps, RunEnd]) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.alloc.Next(next.ID())
	m.current = &graphrun.Snapshot[State, Deps, RunEnd]{
		ID:     id,
		Kind:   graphrun.KindNode,
		State:  graphrun.CopyState(state, m.deepCopy),
		Node:   graphrun.CopyNode[State, Deps, RunEnd](next, m.deepCopy),
		Status: graphrun.StatusCreated,
	}
	return id, nil
}

func (m *MemoryLatestPersistence[State, Deps, RunEnd]) SnapshotEnd(_ context.Context, state *State, end graphrun.End[RunEnd]) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.alloc.NextEnd()
	now := m.clock.NowUTC()
	m.current = &graphrun.Snapshot[State, Deps, RunEnd]{
		ID:     id,
		Kind:   graphrun.KindEnd,
		State:  graphrun.CopyState(state, m.deepCopy),
		Result: &end,
		Ts:     &now,
	}
	return id, nil
}

// RecordRun asserts snapshotID equals the current snapshot's ID — the one
// requested by a caller must always be the most recently allocated one on
// this backend, since only one snapshot is ever retained. A mismatch, or a
// caller allocating a new snapshot in between, is a programmer error and is
// never reconciled implicitly.
func (m *MemoryLatestPersistence[State, Deps, RunEnd]) RecordRun(_ context.Context, snapshotID string) (*graphrun.Recording, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return nil, graphrun.ErrSnapshotNotFound
	}
	if m.current.ID != snapshotID {
		m.mu.Unlock()
		return nil, graphrun.ErrRecordingIDMismatch
	}
	if m.current.Kind != graphrun.KindNode {
		m.mu.Unlock()
		return nil, graphrun.ErrNotNodeSnapshot
	}
	now := m.clock.NowUTC()
	m.current.Status = graphrun.StatusRunning
	m.current.StartTS = &now
	m.mu.Unlock()

	return graphrun.NewRecording(now, func(dur time.Duration, err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.current == nil || m.current.ID != snapshotID {
			return
		}
		m.current.Duration = &dur
		if err != nil {
			m.current.Status = graphrun.StatusError
		} else {
			m.current.Status = graphrun.StatusSuccess
		}
	}), nil
}

func (m *MemoryLatestPersistence[State, Deps, RunEnd]) Restore(_ context.Context) (*graphrun.Snapshot[State, Deps, RunEnd], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	snap := *m.current
	return &snap, nil
}

// MemoryOption configures a memory-backed Persistence.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	clock    graphrun.Clock
	deepCopy bool
}

// WithDeepCopy enables structural cloning of state/node payloads at capture
// time, so later mutations never retroactively alter history.
func WithDeepCopy(enabled bool) MemoryOption {
	return func(c *memoryConfig) { c.deepCopy = enabled }
}

// WithClock overrides the backend's time source.
func WithClock(clock graphrun.Clock) MemoryOption {
	return func(c *memoryConfig) { c.clock = clock }
}
