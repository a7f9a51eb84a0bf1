package workflows

import (
	"errors"
	"fmt"
)

// ErrTypeInvalidQuestion is the application error type for questions the
// activity refuses outright. It is listed as non-retryable.
const ErrTypeInvalidQuestion = "InvalidQuestion"

// ErrNoQuestions is returned when a batch has nothing to solve.
var ErrNoQuestions = errors.New("batch has no questions")

// ErrorSeverity says whether a failure ends the workflow or is recorded on
// the result.
type ErrorSeverity string

const (
	// ErrorSeverityCritical fails the workflow.
	ErrorSeverityCritical ErrorSeverity = "critical"
	// ErrorSeverityHigh is recorded in the result and the batch continues.
	ErrorSeverityHigh ErrorSeverity = "high"
)

// WorkflowError is a failure tied to one operation of a batch.
type WorkflowError struct {
	Operation string
	Severity  ErrorSeverity
	Err       error
	Context   string
}

func (e *WorkflowError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s failed: %v (%s)", e.Operation, e.Err, e.Context)
	}
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a WorkflowError.
func NewWorkflowError(operation string, severity ErrorSeverity, err error, context string) *WorkflowError {
	return &WorkflowError{Operation: operation, Severity: severity, Err: err, Context: context}
}

// FormatErrorForResult renders err for BatchSolveResult.Errors.
func FormatErrorForResult(operation string, err error) string {
	return fmt.Sprintf("%s: %v", operation, err)
}
