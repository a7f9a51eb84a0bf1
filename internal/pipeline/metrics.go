package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	// StageDuration observes per-stage latency.
	// Labels: stage
	StageDuration *prometheus.HistogramVec

	// InputDecisions counts validation outcomes.
	// Labels: decision (accepted, rejected, empty)
	InputDecisions *prometheus.CounterVec

	// SearchDecisions counts augmentation outcomes.
	// Labels: decision (performed, skipped, disabled, failed)
	SearchDecisions *prometheus.CounterVec

	// EnforcementOutcomes counts enforcement results.
	// Labels: outcome (accepted, exhausted, skipped, fault)
	EnforcementOutcomes *prometheus.CounterVec

	// AttemptsUsed observes attempts spent per enforcement run.
	AttemptsUsed prometheus.Histogram

	// Solves counts completed solves.
	// Labels: kind (first error kind, "none" on a clean run)
	Solves *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mathrag",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		InputDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mathrag",
				Subsystem: "pipeline",
				Name:      "input_decisions_total",
				Help:      "Total number of input validation decisions",
			},
			[]string{"decision"},
		),
		SearchDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mathrag",
				Subsystem: "pipeline",
				Name:      "search_decisions_total",
				Help:      "Total number of web search decisions",
			},
			[]string{"decision"},
		),
		EnforcementOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mathrag",
				Subsystem: "pipeline",
				Name:      "enforcement_outcomes_total",
				Help:      "Total number of output enforcement outcomes",
			},
			[]string{"outcome"},
		),
		AttemptsUsed: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "mathrag",
				Subsystem: "pipeline",
				Name:      "enforcement_attempts",
				Help:      "Attempts used per output enforcement run",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
		),
		Solves: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mathrag",
				Subsystem: "pipeline",
				Name:      "solves_total",
				Help:      "Total number of solve requests by first error kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) observeStage(stage StageName, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) recordInput(decision string) {
	if m == nil {
		return
	}
	m.InputDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) recordSearch(decision string) {
	if m == nil {
		return
	}
	m.SearchDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) recordEnforcement(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.EnforcementOutcomes.WithLabelValues(outcome).Inc()
	m.AttemptsUsed.Observe(float64(attempts))
}

func (m *Metrics) recordSolve(kind ErrorKind) {
	if m == nil {
		return
	}
	label := string(kind)
	if kind == KindNone {
		label = "none"
	}
	m.Solves.WithLabelValues(label).Inc()
}
