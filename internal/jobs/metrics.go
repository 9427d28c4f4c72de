package jobs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the job engine's completion counters and per-context
// queue depth gauges, grounded on pkg/metadata/lock/metrics.go's
// constructor/registration/nil-receiver-safe-observer pattern.
type Metrics struct {
	completionsTotal *prometheus.CounterVec
	contextDepth     *prometheus.GaugeVec

	registered bool
}

// NewMetrics builds the job engine's metrics and registers them against
// registry, if non-nil. A nil registry is valid: the returned Metrics still
// works, it simply isn't exposed on any /metrics endpoint.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		completionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pvfsgo",
			Subsystem: "jobs",
			Name:      "completions_total",
			Help:      "Total number of jobs completed by the job engine, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		contextDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pvfsgo",
			Subsystem: "jobs",
			Name:      "context_queue_depth",
			Help:      "Number of completed, unconsumed jobs queued on a job context.",
		}, []string{"context_id"}),
	}

	if registry != nil {
		registry.MustRegister(m.completionsTotal, m.contextDepth)
		m.registered = true
	}
	return m
}

// ObserveCompletion records one job completion of the given kind, with
// outcome "ok" or "error" depending on whether err is nil.
func (m *Metrics) ObserveCompletion(kind Kind, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.completionsTotal.WithLabelValues(kind.String(), outcome).Inc()
}

// SetContextDepth records the current queue depth of a job context.
func (m *Metrics) SetContextDepth(contextID int, depth int) {
	if m == nil {
		return
	}
	m.contextDepth.WithLabelValues(fmt.Sprintf("%d", contextID)).Set(float64(depth))
}
