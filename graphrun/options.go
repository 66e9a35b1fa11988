package graphrun

import (
	"time"

	"github.com/ashbourne/graphrun/emit"
)

// Option configures an Engine at construction. Functional options keep the
// constructor signature stable as configuration knobs are added.
type Option func(*engineConfig)

type engineConfig struct {
	maxSteps           int
	runWallClockBudget time.Duration
	emitter            emit.Emitter
	metrics            *Metrics
	clock              Clock
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		emitter: emit.NewNullEmitter(),
		clock:   SystemClock{},
	}
}

// WithMaxSteps caps the number of node steps Run will execute before giving
// up with ErrMaxStepsExceeded. A loop with a missing exit condition would
// otherwise run forever. 0 (the default) means no limit.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) { cfg.maxSteps = n }
}

// WithRunWallClockBudget bounds the total wall-clock time Run may spend
// across every step. 0 (the default) means no bound beyond the caller's own
// context.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(cfg *engineConfig) { cfg.runWallClockBudget = d }
}

// WithEmitter configures where lifecycle events are sent. The default is
// emit.NewNullEmitter(), which discards them.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *engineConfig) { cfg.emitter = emitter }
}

// WithMetrics enables Prometheus metrics collection for step latency and
// step counts.
func WithMetrics(metrics *Metrics) Option {
	return func(cfg *engineConfig) { cfg.metrics = metrics }
}

// WithClock overrides the Engine's time source, letting tests assert on
// exact start_ts values.
func WithClock(clock Clock) Option {
	return func(cfg *engineConfig) { cfg.clock = clock }
}
