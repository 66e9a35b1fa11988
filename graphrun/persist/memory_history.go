package persist

import (
	"context"
	"sync"
	"time"

	"github.com/ashbourne/graphrun"
)

// MemoryHistoryPersistence keeps every snapshot recorded during a run.
// Deep-copy defaults to on, for faithful audit. It additionally supports
// JSON round-trip through a codec configured via SetTypes.
type MemoryHistoryPersistence[State, Deps, RunEnd any] struct {
	mu       sync.Mutex
	alloc    graphrun.IDAllocator
	clock    graphrun.Clock
	deepCopy bool
	history  []graphrun.Snapshot[State, Deps, RunEnd]
	registry *graphrun.NodeRegistry[State, Deps, RunEnd]
}

// NewMemoryHistoryPersistence constructs a full-history backend. Deep-copy
// is on unless overridden with WithDeepCopy(false).
func NewMemoryHistoryPersistence[State, Deps, RunEnd any](opts ...MemoryOption) *MemoryHistoryPersistence[State, Deps, RunEnd] {
	cfg := memoryConfig{clock: graphrun.SystemClock{}, deepCopy: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryHistoryPersistence[State, Deps, RunEnd]{clock: cfg.clock, deepCopy: cfg.deepCopy}
}

func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) SnapshotNode(_ context.Context, state *State, next graphrun.Node[State, Deps, RunEnd]) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.alloc.Next(next.ID())
	m.history = append(m.history, graphrun.Snapshot[State, Deps, RunEnd]{
		ID:     id,
		Kind:   graphrun.KindNode,
		State:  graphrun.CopyState(state, m.deepCopy),
		Node:   graphrun.CopyNode[State, Deps, RunEnd](next, m.deepCopy),
		Status: graphrun.StatusCreated,
	})
	return id, nil
}

func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) SnapshotEnd(_ context.Context, state *State, end graphrun.End[RunEnd]) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.alloc.NextEnd()
	now := m.clock.NowUTC()
	m.history = append(m.history, graphrun.Snapshot[State, Deps, RunEnd]{
		ID:     id,
		Kind:   graphrun.KindEnd,
		State:  graphrun.CopyState(state, m.deepCopy),
		Result: &end,
		Ts:     &now,
	})
	return id, nil
}

func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) indexOf(id string) int {
	for i := range m.history {
		if m.history[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) RecordRun(_ context.Context, snapshotID string) (*graphrun.Recording, error) {
	m.mu.Lock()
	idx := m.indexOf(snapshotID)
	if idx < 0 {
		m.mu.Unlock()
		return nil, graphrun.ErrSnapshotNotFound
	}
	if m.history[idx].Kind != graphrun.KindNode {
		m.mu.Unlock()
		return nil, graphrun.ErrNotNodeSnapshot
	}
	now := m.clock.NowUTC()
	m.history[idx].Status = graphrun.StatusRunning
	m.history[idx].StartTS = &now
	m.mu.Unlock()

	return graphrun.NewRecording(now, func(dur time.Duration, err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		idx := m.indexOf(snapshotID)
		if idx < 0 {
			return
		}
		m.history[idx].Duration = &dur
		if err != nil {
			m.history[idx].Status = graphrun.StatusError
		} else {
			m.history[idx].Status = graphrun.StatusSuccess
		}
	}), nil
}

func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) Restore(_ context.Context) (*graphrun.Snapshot[State, Deps, RunEnd], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return nil, nil
	}
	snap := m.history[len(m.history)-1]
	return &snap, nil
}

// History returns a copy of every snapshot recorded so far, in insertion
// order.
func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) History(_ context.Context) ([]graphrun.Snapshot[State, Deps, RunEnd], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]graphrun.Snapshot[State, Deps, RunEnd], len(m.history))
	copy(out, m.history)
	return out, nil
}

// SetTypes configures the codec used by DumpJSON/LoadJSON.
func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) SetTypes(reg *graphrun.NodeRegistry[State, Deps, RunEnd]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = reg
}

// DumpJSON serializes the full history to the wire format.
func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) DumpJSON(indent string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registry == nil {
		return nil, graphrun.ErrCodecNotConfigured
	}
	return graphrun.EncodeHistory(m.history, indent)
}

// LoadJSON replaces the in-memory history with the document decoded from
// data, assigning IDs to snapshots that lack one so they continue after the
// maximum ID already allocated.
func (m *MemoryHistoryPersistence[State, Deps, RunEnd]) LoadJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registry == nil {
		return graphrun.ErrCodecNotConfigured
	}
	for i := range m.history {
		m.alloc.Observe(m.history[i].ID)
	}
	history, err := graphrun.DecodeHistory(data, m.registry, &m.alloc)
	if err != nil {
		return err
	}
	m.history = history
	return nil
}
