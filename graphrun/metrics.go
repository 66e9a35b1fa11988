package graphrun

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus-compatible measurements of graph execution.
// All metrics are namespaced "graphrun".
type Metrics struct {
	stepLatency *prometheus.HistogramVec
	stepsTotal  *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics registers graphrun's metrics with registry (use
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphrun",
			Name:      "step_latency_ms",
			Help:      "Recording-region duration in milliseconds, per node and terminal status.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_id", "status"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrun",
			Name:      "steps_total",
			Help:      "Count of node steps completed, per node and terminal status.",
		}, []string{"node_id", "status"}),
	}
}

// RecordStep records one recording region's outcome.
func (m *Metrics) RecordStep(nodeID string, duration time.Duration, status Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.enabled {
		return
	}
	labels := []string{nodeID, string(status)}
	m.stepLatency.WithLabelValues(labels...).Observe(float64(duration.Milliseconds()))
	m.stepsTotal.WithLabelValues(labels...).Inc()
}

// Disable suspends metric recording, useful in tests.
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable resumes metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
