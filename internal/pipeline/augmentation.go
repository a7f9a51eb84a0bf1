package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

const searchQueryPrefix = "solve step by step math problem: "

// Augmentation adds web search results when the knowledge base had no
// close match.
type Augmentation struct {
	searcher     WebSearcher
	threshold    float64
	maxResults   int
	contentLimit int
	timeout      time.Duration
	logger       *logging.Logger
	metrics      *Metrics
}

// NewAugmentation creates the augmentation stage. A nil searcher disables web search.
func NewAugmentation(searcher WebSearcher, cfg Config, logger *logging.Logger, metrics *Metrics) *Augmentation {
	return &Augmentation{
		searcher:     searcher,
		threshold:    cfg.SkipSearchThreshold,
		maxResults:   cfg.MaxSearchResults,
		contentLimit: cfg.SearchContentLimit,
		timeout:      cfg.CollaboratorTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

func (a *Augmentation) Name() StageName { return StageAugmentation }

// ShouldSearch reports whether web search is needed. Results are ordered by
// ascending distance, so only the first one matters.
func ShouldSearch(results []RetrievalResult, threshold float64) bool {
	if len(results) == 0 {
		return true
	}
	return results[0].Score > threshold
}

func (a *Augmentation) Run(ctx context.Context, s State) State {
	if !s.InputAccepted {
		return s
	}
	if !ShouldSearch(s.RetrievalResults, a.threshold) {
		a.logger.Debug(ctx, "web search skipped",
			zap.Float64("best_score", s.RetrievalResults[0].Score))
		a.metrics.recordSearch("skipped")
		return s
	}
	if a.searcher == nil {
		a.metrics.recordSearch("disabled")
		return s
	}

	callCtx, cancel := callContext(ctx, a.timeout)
	defer cancel()

	results, err := a.searcher.Search(callCtx, searchQueryPrefix+s.Question)
	if err != nil {
		a.logger.Warn(ctx, "web search failed", zap.Error(err))
		a.metrics.recordSearch("failed")
		return s.withError(fmt.Sprintf(msgSearchFailed, err))
	}

	n := len(results)
	if n > a.maxResults {
		n = a.maxResults
	}
	out := make([]SearchResult, n)
	for i := 0; i < n; i++ {
		out[i] = SearchResult{
			Title:   results[i].Title,
			Content: truncateRunes(results[i].Content, a.contentLimit),
			URL:     results[i].URL,
		}
	}
	s.SearchResults = out
	a.metrics.recordSearch("performed")
	return s
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
