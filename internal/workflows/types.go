// Package workflows runs batches of questions through the solving pipeline
// as Temporal workflows.
package workflows

import "time"

// Outcome classifies one solved question.
type Outcome string

const (
	// OutcomeAccepted means the solution passed the output quality gate.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeFallback means attempts ran out and the fallback was returned.
	OutcomeFallback Outcome = "fallback"
	// OutcomeRejected means the question was not accepted as mathematics.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means the activity failed after all retries.
	OutcomeFailed Outcome = "failed"
)

// BatchSolveInput is the workflow input.
type BatchSolveInput struct {
	Questions []string
	// Parallelism bounds concurrent activities. Zero uses DefaultParallelism.
	Parallelism int
}

// SolveQuestionInput is the activity input.
type SolveQuestionInput struct {
	Index    int
	Question string
}

// SolveOutcome is the activity result for one question.
type SolveOutcome struct {
	Index     int
	Question  string
	Solution  string
	Outcome   Outcome
	Attempts  int
	SessionID string
	Error     string
	Duration  time.Duration
}

// BatchSolveResult aggregates a batch.
type BatchSolveResult struct {
	Outcomes []SolveOutcome
	Accepted int
	Fallback int
	Rejected int
	Failed   int
	Errors   []string
}

func (r *BatchSolveResult) add(o SolveOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Outcome {
	case OutcomeAccepted:
		r.Accepted++
	case OutcomeFallback:
		r.Fallback++
	case OutcomeRejected:
		r.Rejected++
	default:
		r.Failed++
	}
}
