package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance engines. All helpers are
// nil-safe so services can run without metrics in tests.
type Metrics struct {
	// Generation outcomes by trigger and result (created/skipped/failed)
	GeneratedInstances *prometheus.CounterVec

	// Recomputation transitions by resulting RAG color
	RAGTransitions *prometheus.CounterVec

	// CAS conflicts lost to concurrent writers, by engine
	CASConflicts *prometheus.CounterVec

	// Dependency resolution outcomes (blocked/released/cycle)
	DependencyOutcomes *prometheus.CounterVec

	// Escalation events by kind and dedup outcome (emitted/duplicate)
	EscalationEvents *prometheus.CounterVec

	// Engine run latency by job name
	RunLatency *prometheus.HistogramVec
}

// New creates and registers the compliance engine metrics.
func New() *Metrics {
	return &Metrics{
		GeneratedInstances: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "obligo_generator_instances_total",
			Help: "Instance generation outcomes by trigger and result",
		}, []string{"trigger", "result"}),

		RAGTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "obligo_rag_transitions_total",
			Help: "Automatic RAG transitions by resulting color",
		}, []string{"rag"}),

		CASConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "obligo_cas_conflicts_total",
			Help: "Optimistic-concurrency conflicts by engine",
		}, []string{"engine"}),

		DependencyOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "obligo_dependency_outcomes_total",
			Help: "Dependency resolution outcomes",
		}, []string{"outcome"}), // outcome: "blocked", "released", "cycle"

		EscalationEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "obligo_escalation_events_total",
			Help: "Escalation scan outcomes by kind",
		}, []string{"kind", "result"}), // result: "emitted", "duplicate"

		RunLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "obligo_engine_run_duration_seconds",
			Help:    "Engine run duration by job",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"}),
	}
}

func (m *Metrics) IncGenerated(trigger, result string) {
	if m != nil {
		m.GeneratedInstances.WithLabelValues(trigger, result).Inc()
	}
}

func (m *Metrics) IncRAGTransition(rag string) {
	if m != nil {
		m.RAGTransitions.WithLabelValues(rag).Inc()
	}
}

func (m *Metrics) IncCASConflict(engine string) {
	if m != nil {
		m.CASConflicts.WithLabelValues(engine).Inc()
	}
}

func (m *Metrics) IncDependencyOutcome(outcome string) {
	if m != nil {
		m.DependencyOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncEscalation(kind, result string) {
	if m != nil {
		m.EscalationEvents.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) ObserveRun(job string, d time.Duration) {
	if m != nil {
		m.RunLatency.WithLabelValues(job).Observe(d.Seconds())
	}
}
