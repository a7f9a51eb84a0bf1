package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/mathrag/internal/guardrails"
)

// ErrRejected is returned (possibly wrapped) by a ConstrainedGenerator when
// its own guardrails refuse the response.
var ErrRejected = errors.New("response rejected by guardrails")

// Classifier decides whether a question is about mathematics.
type Classifier interface {
	IsMathQuestion(ctx context.Context, question string) (bool, error)
}

// KnowledgeRetriever returns up to k similar problems ordered by
// ascending distance.
type KnowledgeRetriever interface {
	Search(ctx context.Context, question string, k int) ([]RetrievalResult, error)
}

// WebSearcher queries a web search provider.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Generator produces a raw solution. context is empty when no supporting
// material was found.
type Generator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// Prompt is a chat request for the constrained generator.
type Prompt struct {
	System string
	User   string
}

// ConstrainedGenerator produces text that must satisfy directives. A
// response refused by the generator's own checks is reported as ErrRejected.
type ConstrainedGenerator interface {
	GenerateConstrained(ctx context.Context, prompt Prompt, directives guardrails.Directives) (string, error)
}

// Record is a feedback entry forwarded to a FeedbackSink.
type Record struct {
	SessionID string            `json:"session_id,omitempty"`
	Question  string            `json:"question"`
	Solution  string            `json:"solution"`
	Rating    int               `json:"rating"`
	Comments  map[string]string `json:"comments"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
}

// Feedback record sources.
const (
	SourcePipeline = "pipeline"
	SourceUser     = "user"
)

// FeedbackSink receives feedback records.
type FeedbackSink interface {
	Record(ctx context.Context, rec Record) error
}
