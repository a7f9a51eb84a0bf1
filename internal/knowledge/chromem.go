package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/embeddings"
	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

// ChromemConfig configures the embedded store.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
}

// ChromemStore is an embedded, optionally persistent Store.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	logger     *logging.Logger
}

// NewChromemStore opens or creates the collection.
func NewChromemStore(cfg ChromemConfig, embedder embeddings.Embedder, logger *logging.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.Collection = CollectionName(cfg.Collection)

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem database at %s: %w", path, err)
		}
	}

	s := &ChromemStore{db: db, embedder: embedder, logger: logger.Named("chromem")}
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", cfg.Collection, err)
	}
	s.collection = collection
	return s, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Clean(path), nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Add embeds and stores problems. Existing IDs are overwritten.
func (s *ChromemStore) Add(ctx context.Context, problems []Problem) error {
	ctx, span := tracer.Start(ctx, "ChromemStore.Add")
	defer span.End()
	span.SetAttributes(attribute.Int("problem_count", len(problems)))

	if len(problems) == 0 {
		return ErrEmptyProblems
	}

	texts := make([]string, len(problems))
	for i, p := range problems {
		texts[i] = p.Content()
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(problems) {
		return fmt.Errorf("%w: got %d vectors for %d problems", ErrEmbeddingFailed, len(vectors), len(problems))
	}

	docs := make([]chromem.Document, len(problems))
	for i, p := range problems {
		if p.ID == "" {
			return fmt.Errorf("problem at index %d has no id", i)
		}
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   texts[i],
			Metadata:  p.Metadata(),
			Embedding: vectors[i],
		}
	}

	// embeddings are precomputed, so a single worker suffices
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	s.logger.Debug(ctx, "added problems", zap.Int("count", len(docs)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns up to k problems closest to query.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]pipeline.RetrievalResult, error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if err := validateSearch(query, k); err != nil {
		return nil, err
	}

	// chromem rejects nResults greater than the document count
	count := s.collection.Count()
	if count == 0 {
		return []pipeline.RetrievalResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	out := make([]pipeline.RetrievalResult, len(results))
	for i, r := range results {
		out[i] = toResult(problemFromMetadata(r.Metadata), r.Content, r.Similarity)
	}
	sortByDistance(out)

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// Count returns the number of stored problems.
func (s *ChromemStore) Count(context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close is a no-op; persistent databases write through on every add.
func (s *ChromemStore) Close() error {
	return nil
}
