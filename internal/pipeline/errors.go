package pipeline

import "fmt"

// ErrorKind classifies the first failure seen while solving.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindInputRejected        ErrorKind = "input_rejected"
	KindCollaboratorFailure  ErrorKind = "collaborator_failure"
	KindGenerationFailure    ErrorKind = "generation_failure"
	KindEnforcementExhausted ErrorKind = "enforcement_exhausted"
	KindOrchestratorFault    ErrorKind = "orchestrator_fault"
)

// StageError describes a failure inside a stage.
type StageError struct {
	Stage StageName
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Messages recorded on State.ErrorMessage.
const (
	msgInputRejected       = "Question failed input validation - not a valid math question"
	msgEmptyQuestion       = "Question failed input validation - question is empty"
	msgInputFault          = "Input guardrails error: %v"
	msgRetrievalFailed     = "Vector search error: %v"
	msgSearchFailed        = "Web search error: %v"
	msgGenerationFailed    = "Solution generation error: %v"
	msgEnforcementExhaust  = "Output guardrails failed, used fallback formatting"
	msgEnforcementFault    = "Output guardrails error: %v"
	msgOrchestratorFault   = "Workflow error: %v"
	msgEmptyGeneratorReply = "generator returned an empty solution"
)
