package persist

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ashbourne/graphrun"
	_ "modernc.org/sqlite"
)

// SQLitePersistence is a full-history backend storing each snapshot as a
// JSON-blob row in a single SQLite table, keyed by sequence number. It
// fulfills the "resume-from-disk" goal literally: point a fresh process at
// the same file and call History/Restore against the existing row set.
type SQLitePersistence[State, Deps, RunEnd any] struct {
	db       *sql.DB
	mu       sync.Mutex
	clock    graphrun.Clock
	deepCopy bool
	alloc    graphrun.IDAllocator
	registry *graphrun.NodeRegistry[State, Deps, RunEnd]
	path     string
}

// NewSQLitePersistence opens (creating if absent) a SQLite database at path
// and ensures its schema exists. path may be ":memory:" for an ephemeral,
// process-local store.
func NewSQLitePersistence[State, Deps, RunEnd any](path string, opts ...MemoryOption) (*SQLitePersistence[State, Deps, RunEnd], error) {
	cfg := memoryConfig{clock: graphrun.SystemClock{}, deepCopy: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("graphrun/persist: opening sqlite database: %w", err)
	}
	// A file-backed SQLite connection serializes writes at the engine level;
	// one connection avoids SQLITE_BUSY from this process's own concurrent
	// use while WAL mode still allows readers from other processes.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("graphrun/persist: %s: %w", pragma, err)
		}
	}

	p := &SQLitePersistence[State, Deps, RunEnd]{db: db, clock: cfg.clock, deepCopy: cfg.deepCopy, path: path}
	if err := p.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *SQLitePersistence[State, Deps, RunEnd]) createSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			run_id  TEXT NOT NULL,
			seq     INTEGER NOT NULL,
			kind    TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("graphrun/persist: creating snapshots table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (p *SQLitePersistence[State, Deps, RunEnd]) Close() error {
	return p.db.Close()
}

// Path returns the filesystem path (or ":memory:") this backend was opened
// with.
func (p *SQLitePersistence[State, Deps, RunEnd]) Path() string { return p.path }

// SetTypes configures the codec used by every snapshot read/write — rows
// store the same wire-format JSON the in-memory full-history backend
// produces, one object per row.
func (p *SQLitePersistence[State, Deps, RunEnd]) SetTypes(reg *graphrun.NodeRegistry[State, Deps, RunEnd]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry = reg
}

func (p *SQLitePersistence[State, Deps, RunEnd]) runID() string { return "default" }

func (p *SQLitePersistence[State, Deps, RunEnd]) seqOf(id string) int {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == ':' {
			var seq int
			fmt.Sscanf(id[i+1:], "%d", &seq)
			return seq
		}
	}
	return 0
}

// encodeOne renders a single snapshot as a bare JSON object, unwrapped from
// EncodeHistory's array wrapping, since one row holds one snapshot.
func encodeOne[State, Deps, RunEnd any](snap graphrun.Snapshot[State, Deps, RunEnd]) ([]byte, error) {
	wrapped, err := graphrun.EncodeHistory([]graphrun.Snapshot[State, Deps, RunEnd]{snap}, "")
	if err != nil {
		return nil, err
	}
	if len(wrapped) >= 2 && wrapped[0] == '[' && wrapped[len(wrapped)-1] == ']' {
		return wrapped[1 : len(wrapped)-1], nil
	}
	return wrapped, nil
}

func (p *SQLitePersistence[State, Deps, RunEnd]) insertRow(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, snap graphrun.Snapshot[State, Deps, RunEnd]) error {
	payload, err := encodeOne(snap)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, seq, kind, payload) VALUES (?, ?, ?, ?)`,
		p.runID(), p.seqOf(snap.ID), string(snap.Kind), payload,
	)
	return err
}

func (p *SQLitePersistence[State, Deps, RunEnd]) SnapshotNode(ctx context.Context, state *State, next graphrun.Node[State, Deps, RunEnd]) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registry == nil {
		return "", graphrun.ErrCodecNotConfigured
	}

	id := p.alloc.Next(next.ID())
	snap := graphrun.Snapshot[State, Deps, RunEnd]{
		ID:     id,
		Kind:   graphrun.KindNode,
		State:  graphrun.CopyState(state, p.deepCopy),
		Node:   graphrun.CopyNode[State, Deps, RunEnd](next, p.deepCopy),
		Status: graphrun.StatusCreated,
	}
	if err := p.insertRow(ctx, p.db, snap); err != nil {
		return "", err
	}
	return id, nil
}

func (p *SQLitePersistence[State, Deps, RunEnd]) SnapshotEnd(ctx context.Context, state *State, end graphrun.End[RunEnd]) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registry == nil {
		return "", graphrun.ErrCodecNotConfigured
	}

	id := p.alloc.NextEnd()
	now := p.clock.NowUTC()
	snap := graphrun.Snapshot[State, Deps, RunEnd]{
		ID:     id,
		Kind:   graphrun.KindEnd,
		State:  graphrun.CopyState(state, p.deepCopy),
		Result: &end,
		Ts:     &now,
	}
	if err := p.insertRow(ctx, p.db, snap); err != nil {
		return "", err
	}
	return id, nil
}

// loadAll reconstructs every snapshot for this backend's run, in seq order.
// Callers must hold p.mu.
func (p *SQLitePersistence[State, Deps, RunEnd]) loadAll(ctx context.Context) ([]graphrun.Snapshot[State, Deps, RunEnd], error) {
	if p.registry == nil {
		return nil, graphrun.ErrCodecNotConfigured
	}
	rows, err := p.db.QueryContext(ctx, `SELECT payload FROM snapshots WHERE run_id = ? ORDER BY seq ASC`, p.runID())
	if err != nil {
		return nil, fmt.Errorf("graphrun/persist: querying snapshots: %w", err)
	}
	defer rows.Close()

	joined := []byte("[")
	first := true
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		if !first {
			joined = append(joined, ',')
		}
		first = false
		joined = append(joined, payload...)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	joined = append(joined, ']')

	return graphrun.DecodeHistory(joined, p.registry, &p.alloc)
}

func (p *SQLitePersistence[State, Deps, RunEnd]) History(ctx context.Context) ([]graphrun.Snapshot[State, Deps, RunEnd], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadAll(ctx)
}

func (p *SQLitePersistence[State, Deps, RunEnd]) DumpJSON(indent string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	history, err := p.loadAll(context.Background())
	if err != nil {
		return nil, err
	}
	return graphrun.EncodeHistory(history, indent)
}

// LoadJSON replaces the table's rows for this backend's run with the
// document decoded from data.
func (p *SQLitePersistence[State, Deps, RunEnd]) LoadJSON(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registry == nil {
		return graphrun.ErrCodecNotConfigured
	}
	history, err := graphrun.DecodeHistory(data, p.registry, &p.alloc)
	if err != nil {
		return err
	}

	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM snapshots WHERE run_id = ?`, p.runID()); err != nil {
		return err
	}
	for _, snap := range history {
		if err := p.insertRow(context.Background(), tx, snap); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *SQLitePersistence[State, Deps, RunEnd]) rewriteRow(ctx context.Context, snap graphrun.Snapshot[State, Deps, RunEnd]) error {
	payload, err := encodeOne(snap)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE snapshots SET payload = ? WHERE run_id = ? AND seq = ?`,
		payload, p.runID(), p.seqOf(snap.ID),
	)
	return err
}

func (p *SQLitePersistence[State, Deps, RunEnd]) RecordRun(ctx context.Context, snapshotID string) (*graphrun.Recording, error) {
	p.mu.Lock()
	history, err := p.loadAll(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	idx := -1
	for i := range history {
		if history[i].ID == snapshotID {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return nil, graphrun.ErrSnapshotNotFound
	}
	if history[idx].Kind != graphrun.KindNode {
		p.mu.Unlock()
		return nil, graphrun.ErrNotNodeSnapshot
	}
	now := p.clock.NowUTC()
	history[idx].Status = graphrun.StatusRunning
	history[idx].StartTS = &now
	if err := p.rewriteRow(ctx, history[idx]); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	return graphrun.NewRecording(now, func(dur time.Duration, runErr error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		history, err := p.loadAll(ctx)
		if err != nil {
			return
		}
		for i := range history {
			if history[i].ID != snapshotID {
				continue
			}
			history[i].Duration = &dur
			if runErr != nil {
				history[i].Status = graphrun.StatusError
			} else {
				history[i].Status = graphrun.StatusSuccess
			}
			_ = p.rewriteRow(ctx, history[i])
			break
		}
	}), nil
}

func (p *SQLitePersistence[State, Deps, RunEnd]) Restore(ctx context.Context) (*graphrun.Snapshot[State, Deps, RunEnd], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	history, err := p.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	snap := history[len(history)-1]
	return &snap, nil
}
