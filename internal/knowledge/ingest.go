package knowledge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

// DefaultBatchSize bounds how many problems are embedded per Add call.
const DefaultBatchSize = 64

// Ingest adds problems to store in batches and records them in catalog
// when one is given. It returns the number of problems added before the
// first failure.
func Ingest(ctx context.Context, store Store, catalog *Catalog, problems []Problem, batchSize int, logger *logging.Logger) (int, error) {
	if len(problems) == 0 {
		return 0, ErrEmptyProblems
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	added := 0
	for start := 0; start < len(problems); start += batchSize {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		end := min(start+batchSize, len(problems))
		batch := problems[start:end]
		if err := store.Add(ctx, batch); err != nil {
			return added, fmt.Errorf("adding batch %d-%d: %w", start, end, err)
		}
		if catalog != nil {
			catalog.Put(batch...)
		}
		added += len(batch)
		logger.Debug(ctx, "ingested batch", zap.Int("from", start), zap.Int("to", end))
	}

	logger.Info(ctx, "knowledge base loaded", zap.Int("problems", added))
	return added, nil
}
