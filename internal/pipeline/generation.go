package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

var errEmptySolution = errors.New(msgEmptyGeneratorReply)

// Generation produces the raw solution from the question and the
// gathered context.
type Generation struct {
	generator Generator
	entries   int
	timeout   time.Duration
	logger    *logging.Logger
}

// NewGeneration creates the generation stage.
func NewGeneration(generator Generator, cfg Config, logger *logging.Logger) *Generation {
	return &Generation{
		generator: generator,
		entries:   cfg.ContextEntries,
		timeout:   cfg.CollaboratorTimeout,
		logger:    logger,
	}
}

func (g *Generation) Name() StageName { return StageGeneration }

// BuildContext renders up to n knowledge-base entries followed by up to n
// search entries. It returns "" when both are empty.
func BuildContext(retrieved []RetrievalResult, searched []SearchResult, n int) string {
	var b strings.Builder
	if len(retrieved) > 0 && n > 0 {
		b.WriteString("Knowledge Base Results:\n")
		for i, r := range retrieved {
			if i >= n {
				break
			}
			fmt.Fprintf(&b, "%d. Question: %s\n   Answer: %s\n\n", i+1, r.Question, r.Answer)
		}
	}
	if len(searched) > 0 && n > 0 {
		b.WriteString("Web Search Results:\n")
		for i, r := range searched {
			if i >= n {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n   Content: %s\n\n", i+1, r.Title, r.Content)
		}
	}
	return b.String()
}

func (g *Generation) Run(ctx context.Context, s State) State {
	if !s.InputAccepted {
		return s
	}
	s.AttemptsUsed = 0

	if g.generator == nil {
		return s.withError(fmt.Sprintf(msgGenerationFailed, "no generator configured"))
	}

	support := BuildContext(s.RetrievalResults, s.SearchResults, g.entries)

	callCtx, cancel := callContext(ctx, g.timeout)
	defer cancel()

	raw, err := g.generator.Generate(callCtx, s.Question, support)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = errEmptySolution
	}
	if err != nil {
		g.logger.Warn(ctx, "solution generation failed", zap.Error(err))
		return s.withError(fmt.Sprintf(msgGenerationFailed, err))
	}

	s.RawSolution = raw
	g.logger.Debug(ctx, "raw solution generated",
		zap.Int("length", len([]rune(raw))),
		zap.Bool("with_context", support != ""))
	return s
}
