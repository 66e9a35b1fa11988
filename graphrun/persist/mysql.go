package persist

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ashbourne/graphrun"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLPersistence is a full-history backend storing each snapshot as a
// JSON-blob row in a MySQL/MariaDB table, for workflows that need to survive
// process restarts or be inspected by multiple workers against a shared
// database.
//
// The DSN format is the one github.com/go-sql-driver/mysql expects:
//
//	user:password@tcp(127.0.0.1:3306)/dbname?parseTime=true
type MySQLPersistence[State, Deps, RunEnd any] struct {
	db       *sql.DB
	mu       sync.Mutex
	clock    graphrun.Clock
	deepCopy bool
	alloc    graphrun.IDAllocator
	registry *graphrun.NodeRegistry[State, Deps, RunEnd]
	runID    string
}

// NewMySQLPersistence opens a connection pool against dsn, ensures the
// backing table exists, and scopes all reads/writes to the given runID so one
// table can hold many runs side by side.
func NewMySQLPersistence[State, Deps, RunEnd any](dsn, runID string, opts ...MemoryOption) (*MySQLPersistence[State, Deps, RunEnd], error) {
	cfg := memoryConfig{clock: graphrun.SystemClock{}, deepCopy: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("graphrun/persist: opening mysql connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("graphrun/persist: pinging mysql: %w", err)
	}

	p := &MySQLPersistence[State, Deps, RunEnd]{db: db, clock: cfg.clock, deepCopy: cfg.deepCopy, runID: runID}
	if err := p.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *MySQLPersistence[State, Deps, RunEnd]) createSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS graphrun_snapshots (
			run_id     VARCHAR(255) NOT NULL,
			seq        BIGINT NOT NULL,
			kind       VARCHAR(16) NOT NULL,
			payload    LONGBLOB NOT NULL,
			PRIMARY KEY (run_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`)
	if err != nil {
		return fmt.Errorf("graphrun/persist: creating graphrun_snapshots table: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *MySQLPersistence[State, Deps, RunEnd]) Close() error {
	return p.db.Close()
}

// RunID returns the run identifier this backend's reads/writes are scoped to.
func (p *MySQLPersistence[State, Deps, RunEnd]) RunID() string { return p.runID }

// SetTypes configures the codec used by every snapshot read/write.
func (p *MySQLPersistence[State, Deps, RunEnd]) SetTypes(reg *graphrun.NodeRegistry[State, Deps, RunEnd]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry = reg
}

func (p *MySQLPersistence[State, Deps, RunEnd]) seqOf(id string) int64 {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == ':' {
			var seq int64
			fmt.Sscanf(id[i+1:], "%d", &seq)
			return seq
		}
	}
	return 0
}

func (p *MySQLPersistence[State, Deps, RunEnd]) insertRow(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, snap graphrun.Snapshot[State, Deps, RunEnd]) error {
	payload, err := encodeOne(snap)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx,
		`INSERT INTO graphrun_snapshots (run_id, seq, kind, payload) VALUES (?, ?, ?, ?)`,
		p.runID, p.seqOf(snap.ID), string(snap.Kind), payload,
	)
	return err
}

func (p *MySQLPersistence[State, Deps, RunEnd]) SnapshotNode(ctx context.Context, state *State, next graphrun.Node[State, Deps, RunEnd]) (string, error) {
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

func (p *MySQLPersistence[State, Deps, RunEnd]) SnapshotEnd(ctx context.Context, state *State, end graphrun.End[RunEnd]) (string, error) {
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
func (p *MySQLPersistence[State, Deps, RunEnd]) loadAll(ctx context.Context) ([]graphrun.Snapshot[State, Deps, RunEnd], error) {
	if p.registry == nil {
		return nil, graphrun.ErrCodecNotConfigured
	}
	rows, err := p.db.QueryContext(ctx, `SELECT payload FROM graphrun_snapshots WHERE run_id = ? ORDER BY seq ASC`, p.runID)
	if err != nil {
		return nil, fmt.Errorf("graphrun/persist: querying graphrun_snapshots: %w", err)
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

func (p *MySQLPersistence[State, Deps, RunEnd]) History(ctx context.Context) ([]graphrun.Snapshot[State, Deps, RunEnd], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadAll(ctx)
}

func (p *MySQLPersistence[State, Deps, RunEnd]) DumpJSON(indent string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	history, err := p.loadAll(context.Background())
	if err != nil {
		return nil, err
	}
	return graphrun.EncodeHistory(history, indent)
}

// LoadJSON replaces this run's rows with the document decoded from data.
func (p *MySQLPersistence[State, Deps, RunEnd]) LoadJSON(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registry == nil {
		return graphrun.ErrCodecNotConfigured
	}
	history, err := graphrun.DecodeHistory(data, p.registry, &p.alloc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graphrun_snapshots WHERE run_id = ?`, p.runID); err != nil {
		return err
	}
	for _, snap := range history {
		if err := p.insertRow(ctx, tx, snap); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *MySQLPersistence[State, Deps, RunEnd]) rewriteRow(ctx context.Context, snap graphrun.Snapshot[State, Deps, RunEnd]) error {
	payload, err := encodeOne(snap)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE graphrun_snapshots SET payload = ? WHERE run_id = ? AND seq = ?`,
		payload, p.runID, p.seqOf(snap.ID),
	)
	return err
}

func (p *MySQLPersistence[State, Deps, RunEnd]) RecordRun(ctx context.Context, snapshotID string) (*graphrun.Recording, error) {
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

func (p *MySQLPersistence[State, Deps, RunEnd]) Restore(ctx context.Context) (*graphrun.Snapshot[State, Deps, RunEnd], error) {
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
