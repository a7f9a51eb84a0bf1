package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

// Retrieval looks up similar solved problems in the knowledge base.
type Retrieval struct {
	retriever KnowledgeRetriever
	k         int
	timeout   time.Duration
	logger    *logging.Logger
}

// NewRetrieval creates the retrieval stage. A nil retriever yields no results.
func NewRetrieval(retriever KnowledgeRetriever, cfg Config, logger *logging.Logger) *Retrieval {
	return &Retrieval{
		retriever: retriever,
		k:         cfg.RetrievalK,
		timeout:   cfg.CollaboratorTimeout,
		logger:    logger,
	}
}

func (r *Retrieval) Name() StageName { return StageRetrieval }

func (r *Retrieval) Run(ctx context.Context, s State) State {
	if !s.InputAccepted || r.retriever == nil {
		return s
	}

	callCtx, cancel := callContext(ctx, r.timeout)
	defer cancel()

	results, err := r.retriever.Search(callCtx, s.Question, r.k)
	if err != nil {
		r.logger.Warn(ctx, "knowledge base search failed", zap.Error(err))
		return s.withError(fmt.Sprintf(msgRetrievalFailed, err))
	}
	if len(results) > r.k {
		results = results[:r.k]
	}

	out := make([]RetrievalResult, len(results))
	copy(out, results)
	s.RetrievalResults = out

	r.logger.Debug(ctx, "knowledge base search", zap.Int("results", len(out)))
	return s
}
