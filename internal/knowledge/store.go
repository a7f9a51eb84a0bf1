package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"

	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/mathrag/internal/knowledge")

var (
	// ErrEmptyProblems is returned when Add is called with nothing to add.
	ErrEmptyProblems = errors.New("no problems to add")

	// ErrEmptyQuery is returned for blank search queries.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmbeddingFailed wraps embedder failures.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// DefaultCollection is the collection holding JEE problems.
const DefaultCollection = "jee_math_problems"

// Store is a vector index of problems.
type Store interface {
	Add(ctx context.Context, problems []Problem) error
	Search(ctx context.Context, query string, k int) ([]pipeline.RetrievalResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

func validateSearch(query string, k int) error {
	if query == "" {
		return ErrEmptyQuery
	}
	if k <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}
	return nil
}

func toResult(p Problem, content string, similarity float32) pipeline.RetrievalResult {
	if content == "" {
		content = p.Content()
	}
	return pipeline.RetrievalResult{
		Question: p.Question,
		Answer:   p.Answer,
		Topic:    p.Topic,
		Score:    1 - float64(similarity),
		Content:  content,
	}
}

// sortByDistance orders results closest first; ties keep store order.
func sortByDistance(results []pipeline.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
}
