package pipeline

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/mathrag/internal/guardrails"
)

// Config tunes the pipeline stages.
type Config struct {
	// MaxAttempts bounds the enforcement retry loop.
	MaxAttempts int `koanf:"max_attempts"`

	// RetrievalK is the number of knowledge-base results requested.
	RetrievalK int `koanf:"retrieval_k"`

	// SkipSearchThreshold: web search is skipped when the best retrieval
	// distance is at or below this value.
	SkipSearchThreshold float64 `koanf:"skip_search_threshold"`

	MaxSearchResults   int `koanf:"max_search_results"`
	SearchContentLimit int `koanf:"search_content_limit"`

	// ContextEntries caps entries taken from each source when building the
	// generation context.
	ContextEntries int `koanf:"context_entries"`

	MinSolutionLength int `koanf:"min_solution_length"`

	// ClassifierFailOpen treats a failed classifier call as a math verdict.
	ClassifierFailOpen bool `koanf:"classifier_fail_open"`

	// CollaboratorTimeout is applied to every collaborator call. Zero disables it.
	CollaboratorTimeout time.Duration `koanf:"collaborator_timeout"`

	OutputDirectives guardrails.Directives `koanf:"output_directives"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		RetrievalK:          3,
		SkipSearchThreshold: 0.7,
		MaxSearchResults:    3,
		SearchContentLimit:  500,
		ContextEntries:      2,
		MinSolutionLength:   100,
		ClassifierFailOpen:  true,
		CollaboratorTimeout: 60 * time.Second,
		OutputDirectives:    guardrails.DefaultOutputDirectives(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	if c.RetrievalK < 1 {
		return errors.New("retrieval_k must be at least 1")
	}
	if c.SkipSearchThreshold < 0 {
		return errors.New("skip_search_threshold must not be negative")
	}
	if c.MaxSearchResults < 0 {
		return errors.New("max_search_results must not be negative")
	}
	if c.SearchContentLimit < 1 {
		return errors.New("search_content_limit must be positive")
	}
	if c.ContextEntries < 0 {
		return errors.New("context_entries must not be negative")
	}
	if c.MinSolutionLength < 0 {
		return errors.New("min_solution_length must not be negative")
	}
	if c.CollaboratorTimeout < 0 {
		return errors.New("collaborator_timeout must not be negative")
	}
	return c.OutputDirectives.Validate()
}
