package graphrun

import (
	"context"
	"fmt"

	"github.com/ashbourne/graphrun/emit"
)

// RunResult is the output of a completed Run: the End value, the final
// state, and (when the backing Persistence also implements
// HistoryPersistence) the full recorded history.
type RunResult[State, Deps, RunEnd any] struct {
	Output  RunEnd
	State   *State
	History []Snapshot[State, Deps, RunEnd]
}

// Engine drives the step loop described in §4.E: it asks Persistence to
// record a node snapshot, brackets the node's execution in a recording
// region, and routes the result to the next step or the run's end.
type Engine[State, Deps, RunEnd any] struct {
	graph *Graph[State, Deps, RunEnd]
	cfg   engineConfig
}

// NewEngine builds an Engine bound to graph.
func NewEngine[State, Deps, RunEnd any](graph *Graph[State, Deps, RunEnd], opts ...Option) *Engine[State, Deps, RunEnd] {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine[State, Deps, RunEnd]{graph: graph, cfg: cfg}
}

// Run executes start and every subsequent node until an End is returned, or
// an error terminates the run early.
func (e *Engine[State, Deps, RunEnd]) Run(
	ctx context.Context,
	start Node[State, Deps, RunEnd],
	state *State,
	deps Deps,
	persistence Persistence[State, Deps, RunEnd],
) (RunResult[State, Deps, RunEnd], error) {
	if e.cfg.runWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.runWallClockBudget)
		defer cancel()
	}

	cursor := start
	steps := 0
	for {
		if e.cfg.maxSteps > 0 && steps >= e.cfg.maxSteps {
			return RunResult[State, Deps, RunEnd]{}, ErrMaxStepsExceeded
		}
		select {
		case <-ctx.Done():
			return RunResult[State, Deps, RunEnd]{}, ctx.Err()
		default:
		}

		step, err := e.step(ctx, cursor, state, deps, persistence)
		if err != nil {
			return RunResult[State, Deps, RunEnd]{}, err
		}
		steps++

		switch {
		case step.IsEnd():
			endID, err := persistence.SnapshotEnd(ctx, state, *step.End)
			if err != nil {
				return RunResult[State, Deps, RunEnd]{}, err
			}
			e.emit(emit.Event{SnapshotID: endID, Phase: emit.PhaseRunEnd})
			result := RunResult[State, Deps, RunEnd]{Output: step.End.Data, State: state}
			if hp, ok := persistence.(HistoryPersistence[State, Deps, RunEnd]); ok {
				history, err := hp.History(ctx)
				if err != nil {
					return RunResult[State, Deps, RunEnd]{}, err
				}
				result.History = history
			}
			return result, nil
		case step.Next != nil:
			if !e.graph.Has(step.Next.ID()) {
				return RunResult[State, Deps, RunEnd]{}, notInGraphError(nodeRepr(step.Next))
			}
			cursor = step.Next
		default:
			return RunResult[State, Deps, RunEnd]{}, invalidReturnError(zeroStepTypeName)
		}
	}
}

// Next executes exactly one step and returns the raw Step (which may be an
// End) without recording an end snapshot — that is the caller's
// responsibility on this path.
func (e *Engine[State, Deps, RunEnd]) Next(
	ctx context.Context,
	cursor Node[State, Deps, RunEnd],
	state *State,
	deps Deps,
	persistence Persistence[State, Deps, RunEnd],
) (Step[State, Deps, RunEnd], error) {
	step, err := e.step(ctx, cursor, state, deps, persistence)
	if err != nil {
		return Step[State, Deps, RunEnd]{}, err
	}
	if step.Next != nil && !e.graph.Has(step.Next.ID()) {
		return Step[State, Deps, RunEnd]{}, notInGraphError(nodeRepr(step.Next))
	}
	if step.IsZero() {
		return Step[State, Deps, RunEnd]{}, invalidReturnError(zeroStepTypeName)
	}
	return step, nil
}

// step performs one snapshot_node -> record_run -> cursor.Run cycle.
func (e *Engine[State, Deps, RunEnd]) step(
	ctx context.Context,
	cursor Node[State, Deps, RunEnd],
	state *State,
	deps Deps,
	persistence Persistence[State, Deps, RunEnd],
) (Step[State, Deps, RunEnd], error) {
	snapID, err := persistence.SnapshotNode(ctx, state, cursor)
	if err != nil {
		return Step[State, Deps, RunEnd]{}, err
	}
	e.emit(emit.Event{SnapshotID: snapID, NodeID: cursor.ID(), Phase: emit.PhaseNodeCreated})

	rec, err := persistence.RecordRun(ctx, snapID)
	if err != nil {
		return Step[State, Deps, RunEnd]{}, err
	}
	e.emit(emit.Event{SnapshotID: snapID, NodeID: cursor.ID(), Phase: emit.PhaseNodeRunning})

	rc := &GraphRunContext[State, Deps]{State: state, Deps: deps}
	step, runErr := cursor.Run(ctx, rc)
	rec.Close(runErr)

	duration := e.cfg.clock.NowUTC().Sub(rec.StartedAt())
	if e.cfg.metrics != nil {
		status := StatusSuccess
		if runErr != nil {
			status = StatusError
		}
		e.cfg.metrics.RecordStep(cursor.ID(), duration, status)
	}

	if runErr != nil {
		e.emit(emit.Event{
			SnapshotID: snapID,
			NodeID:     cursor.ID(),
			Phase:      emit.PhaseNodeError,
			Meta:       map[string]interface{}{"error": runErr.Error()},
		})
		return Step[State, Deps, RunEnd]{}, &NodeError{NodeID: cursor.ID(), Cause: runErr}
	}

	e.emit(emit.Event{SnapshotID: snapID, NodeID: cursor.ID(), Phase: emit.PhaseNodeSuccess})
	return step, nil
}

func (e *Engine[State, Deps, RunEnd]) emit(ev emit.Event) {
	if e.cfg.emitter == nil {
		return
	}
	e.cfg.emitter.Emit(ev)
}

// zeroStepTypeName names the degenerate, structurally unreachable-except-by-
// bug case where a node's Run returns a Step with neither Next nor End set.
// Go's static typing rules out the source's "returned some arbitrary
// non-Node, non-End value" case at compile time; this is the one remaining
// analogue, and it is reported as a Step rather than a concrete value's Go
// type since no value of any other type could reach this branch.
const zeroStepTypeName = "graphrun.Step"

// nodeRepr renders a node's Go type name in constructor-call notation, the
// closest static analogue of the source's repr()-based diagnostic — Go has
// no equivalent of a value's repr, so this uses the type's simple name
// followed by an empty argument list.
func nodeRepr(n any) string {
	return fmt.Sprintf("%s()", TypeName(n))
}
