package workflows

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/mathrag/internal/workflows"

// Metrics records activity outcomes and latency. A nil *Metrics is a no-op.
type Metrics struct {
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(instrumentationName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	outcomes, err := meter.Int64Counter(
		"mathrag.workflows.solve.outcomes",
		metric.WithDescription("Solved questions by outcome"),
		metric.WithUnit("{question}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"mathrag.workflows.solve.duration",
		metric.WithDescription("Duration of SolveQuestion activity executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{outcomes: outcomes, duration: duration}, nil
}

func (m *Metrics) recordActivity(ctx context.Context, outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}
