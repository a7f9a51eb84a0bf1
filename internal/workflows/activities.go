package workflows

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

// Solver runs the pipeline for one question.
type Solver interface {
	Solve(ctx context.Context, question string) pipeline.Result
}

// Activities holds the dependencies of the batch activities. Register a
// pointer to it with the worker.
type Activities struct {
	Solver  Solver
	Logger  *logging.Logger
	Metrics *Metrics
}

// Classify maps a pipeline result to its batch outcome.
func Classify(res pipeline.Result) Outcome {
	switch {
	case res.FirstErrorKind == pipeline.KindOrchestratorFault:
		return OutcomeFailed
	case !res.InputAccepted:
		return OutcomeRejected
	case res.OutputAccepted:
		return OutcomeAccepted
	default:
		return OutcomeFallback
	}
}

// SolveQuestion solves one question. Orchestrator faults are returned as
// errors so Temporal retries them; every other result, including a
// rejection, completes the activity.
func (a *Activities) SolveQuestion(ctx context.Context, in SolveQuestionInput) (SolveOutcome, error) {
	if a == nil || a.Solver == nil {
		return SolveOutcome{}, temporal.NewNonRetryableApplicationError("solver not configured", "Configuration", nil)
	}
	logger := a.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(in.Question) == "" {
		return SolveOutcome{}, temporal.NewNonRetryableApplicationError(
			"question is empty", ErrTypeInvalidQuestion, nil, in.Index)
	}

	info := activity.GetInfo(ctx)
	start := time.Now()
	res := a.Solver.Solve(ctx, in.Question)
	elapsed := time.Since(start)

	out := SolveOutcome{
		Index:     in.Index,
		Question:  in.Question,
		Solution:  res.FinalSolution,
		Outcome:   Classify(res),
		Attempts:  res.AttemptsUsed,
		SessionID: res.SessionID,
		Error:     res.ErrorMessage,
		Duration:  elapsed,
	}
	a.Metrics.recordActivity(ctx, out.Outcome, elapsed)

	if out.Outcome == OutcomeFailed {
		logger.Warn(ctx, "solve failed, will retry",
			zap.Int("index", in.Index),
			zap.Int32("attempt", info.Attempt),
			zap.String("error", res.ErrorMessage))
		msg := res.ErrorMessage
		if msg == "" {
			msg = "pipeline fault"
		}
		return out, errors.New(msg)
	}

	logger.Info(ctx, "question solved",
		zap.Int("index", in.Index),
		zap.String("outcome", string(out.Outcome)),
		zap.Int("attempts", out.Attempts),
		zap.Duration("duration", elapsed))
	return out, nil
}
