package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

// SyntheticFeedback derives the rating recorded for a solved question.
func SyntheticFeedback(outputAccepted bool) Feedback {
	if outputAccepted {
		return Feedback{
			Rating: 5,
			Comments: map[string]string{
				"clarity":      "Excellent step-by-step explanation",
				"accuracy":     "Mathematically correct and well-formatted",
				"completeness": "Complete solution with proper structure",
			},
		}
	}
	return Feedback{
		Rating: 3,
		Comments: map[string]string{
			"clarity":      "Solution provided but formatting could be improved",
			"accuracy":     "Mathematically correct",
			"completeness": "Used fallback formatting due to guardrails",
		},
	}
}

// FeedbackRecording attaches synthetic feedback and forwards it to the sink.
type FeedbackRecording struct {
	sink    FeedbackSink
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time
}

// NewFeedbackRecording creates the feedback stage. A nil sink only annotates the state.
func NewFeedbackRecording(sink FeedbackSink, cfg Config, logger *logging.Logger) *FeedbackRecording {
	return &FeedbackRecording{
		sink:    sink,
		timeout: cfg.CollaboratorTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

func (f *FeedbackRecording) Name() StageName { return StageFeedback }

func (f *FeedbackRecording) Run(ctx context.Context, s State) (out State) {
	if !s.InputAccepted || s.FinalSolution == "" {
		return s
	}

	fb := SyntheticFeedback(s.OutputAccepted)
	s.Feedback = &fb

	if f.sink == nil {
		return s
	}

	// sink panics are logged and the annotated state is returned as is
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error(ctx, "feedback sink panicked", zap.Any("panic", r))
			out = s
		}
	}()

	callCtx, cancel := callContext(ctx, f.timeout)
	defer cancel()

	rec := Record{
		SessionID: logging.SessionIDFromContext(ctx),
		Question:  s.Question,
		Solution:  s.FinalSolution,
		Rating:    fb.Rating,
		Comments:  copyComments(fb.Comments),
		Source:    SourcePipeline,
		Timestamp: f.now().UTC(),
	}
	if err := f.sink.Record(callCtx, rec); err != nil {
		f.logger.Warn(ctx, "feedback sink failed", zap.Error(err))
	}
	return s
}

func copyComments(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
