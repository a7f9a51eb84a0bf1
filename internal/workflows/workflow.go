package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// DefaultParallelism bounds concurrent solves when the input leaves it unset.
	DefaultParallelism = 4

	// solveTimeout covers the generation call plus every enforcement attempt.
	solveTimeout = 5 * time.Minute
)

// SolveActivityOptions are the options every SolveQuestion call runs with.
func SolveActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: solveTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidQuestion},
		},
	}
}

// BatchSolveWorkflow solves every question and aggregates the outcomes.
// A question whose activity fails after its retries counts as failed; the
// workflow itself only fails on empty input.
func BatchSolveWorkflow(ctx workflow.Context, in BatchSolveInput) (*BatchSolveResult, error) {
	logger := workflow.GetLogger(ctx)
	if len(in.Questions) == 0 {
		return nil, temporal.NewNonRetryableApplicationError(ErrNoQuestions.Error(), "InvalidInput", ErrNoQuestions)
	}
	parallelism := in.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	logger.Info("Starting batch solve", "questions", len(in.Questions), "parallelism", parallelism)
	started := workflow.Now(ctx)
	ctx = workflow.WithActivityOptions(ctx, SolveActivityOptions())

	var a *Activities
	outcomes := make([]SolveOutcome, len(in.Questions))
	errs := make([]string, len(in.Questions))

	for lo := 0; lo < len(in.Questions); lo += parallelism {
		hi := min(lo+parallelism, len(in.Questions))

		futures := make([]workflow.Future, 0, hi-lo)
		for i := lo; i < hi; i++ {
			futures = append(futures, workflow.ExecuteActivity(ctx, a.SolveQuestion, SolveQuestionInput{
				Index:    i,
				Question: in.Questions[i],
			}))
		}
		for j, f := range futures {
			i := lo + j
			var out SolveOutcome
			if err := f.Get(ctx, &out); err != nil {
				logger.Warn("Question failed", "index", i, "error", err)
				out = SolveOutcome{Index: i, Question: in.Questions[i], Outcome: OutcomeFailed, Error: err.Error()}
				errs[i] = FormatErrorForResult(fmt.Sprintf("failed to solve question %d", i), err)
			}
			outcomes[i] = out
		}
	}

	result := &BatchSolveResult{}
	for i, o := range outcomes {
		result.add(o)
		if errs[i] != "" {
			result.Errors = append(result.Errors, errs[i])
		}
	}

	logger.Info("Batch solve complete",
		"accepted", result.Accepted,
		"fallback", result.Fallback,
		"rejected", result.Rejected,
		"failed", result.Failed,
		"duration", workflow.Now(ctx).Sub(started))
	return result, nil
}
