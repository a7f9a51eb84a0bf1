package pipeline

import (
	"context"
	"time"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageInputValidation StageName = "input_validation"
	StageRetrieval       StageName = "retrieval"
	StageAugmentation    StageName = "augmentation"
	StageGeneration      StageName = "generation"
	StageEnforcement     StageName = "enforcement"
	StageFeedback        StageName = "feedback"
)

// AllStages returns the stage names in execution order.
func AllStages() []StageName {
	return []StageName{
		StageInputValidation,
		StageRetrieval,
		StageAugmentation,
		StageGeneration,
		StageEnforcement,
		StageFeedback,
	}
}

// Stage transforms the pipeline state. Run never returns an error;
// failures are recorded on the returned state.
type Stage interface {
	Name() StageName
	Run(ctx context.Context, s State) State
}

// callContext derives the per-call deadline for a collaborator.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
