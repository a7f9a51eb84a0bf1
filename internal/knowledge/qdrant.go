package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/mathrag/internal/embeddings"
	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

// problemNamespace derives stable point IDs from problem IDs, so
// re-ingesting a dataset overwrites instead of duplicating.
var problemNamespace = uuid.MustParse("6f1d7c2e-3b4a-5c6d-8e9f-0a1b2c3d4e5f")

// QdrantConfig configures the Qdrant gRPC store.
type QdrantConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	APIKey         string        `koanf:"-" json:"-"`
	UseTLS         bool          `koanf:"use_tls"`
	Collection     string        `koanf:"collection"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
	MaxMessageSize int           `koanf:"max_message_size"`
}

// ApplyDefaults fills unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	c.Collection = CollectionName(c.Collection)
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// QdrantStore is a Store backed by Qdrant over gRPC.
type QdrantStore struct {
	client    *qdrant.Client
	embedder  embeddings.Embedder
	dimension int
	config    QdrantConfig
	logger    *logging.Logger
}

// NewQdrantStore connects to Qdrant and creates the collection if needed,
// sized to the provider's dimension with cosine distance.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, provider embeddings.Provider, logger *logging.Logger) (*QdrantStore, error) {
	cfg.ApplyDefaults()
	if provider == nil {
		return nil, errors.New("embedding provider is required")
	}
	if provider.Dimension() <= 0 {
		return nil, fmt.Errorf("embedding provider reports invalid dimension %d", provider.Dimension())
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	s := &QdrantStore{
		client:    client,
		embedder:  provider,
		dimension: provider.Dimension(),
		config:    cfg,
		logger:    logger.Named("qdrant"),
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.config.Collection))

	var exists bool
	err := s.retry(ctx, "collection_exists", func() error {
		var err error
		exists, err = s.client.CollectionExists(ctx, s.config.Collection)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if exists {
		return nil
	}

	err = s.retry(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	s.logger.Info(ctx, "created qdrant collection",
		zap.String("collection", s.config.Collection),
		zap.Int("vector_size", s.dimension))
	return nil
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func (s *QdrantStore) retry(ctx context.Context, op string, fn func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", op, err)
		}
		if attempt >= s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", op, s.config.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", op, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Add embeds and upserts problems.
func (s *QdrantStore) Add(ctx context.Context, problems []Problem) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Add")
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

	points := make([]*qdrant.PointStruct, len(problems))
	for i, p := range problems {
		if p.ID == "" {
			return fmt.Errorf("problem at index %d has no id", i)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(p.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: problemPayload(p, texts[i]),
		}
	}

	err = s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points: %w", err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns up to k problems closest to query.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]pipeline.RetrievalResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if err := validateSearch(query, k); err != nil {
		return nil, err
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var points []*qdrant.ScoredPoint
	err = s.retry(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", s.config.Collection, err)
	}

	out := make([]pipeline.RetrievalResult, len(points))
	for i, pt := range points {
		p, content := problemFromPayload(pt.GetPayload())
		out[i] = toResult(p, content, pt.GetScore())
	}
	sortByDistance(out)

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// Count returns the exact number of stored problems.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var n uint64
	err := s.retry(ctx, "count", func() error {
		var err error
		n, err = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.config.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// PointID maps a problem ID to its deterministic Qdrant point UUID.
func PointID(problemID string) string {
	return uuid.NewSHA1(problemNamespace, []byte(problemID)).String()
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func problemPayload(p Problem, content string) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, 10)
	for k, v := range p.Metadata() {
		if k == "index" {
			continue
		}
		payload[k] = stringValue(v)
	}
	payload["index"] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(p.Index)}}
	payload["content"] = stringValue(content)
	return payload
}

func problemFromPayload(payload map[string]*qdrant.Value) (Problem, string) {
	str := func(k string) string {
		if v, ok := payload[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	var idx int
	if v, ok := payload["index"]; ok {
		idx = int(v.GetIntegerValue())
	}
	return Problem{
		ID:          str("id"),
		Question:    str("question"),
		Description: str("description"),
		Answer:      str("answer"),
		Topic:       str("topic"),
		Difficulty:  str("difficulty"),
		Source:      str("source"),
		Subject:     str("subject"),
		Index:       idx,
	}, str("content")
}
