package feedback

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

// MultiSink forwards every record to each sink in order. All sinks are
// attempted; their errors are joined.
type MultiSink []pipeline.FeedbackSink

// Record implements pipeline.FeedbackSink.
func (m MultiSink) Record(ctx context.Context, rec pipeline.Record) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
