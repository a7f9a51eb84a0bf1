package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// DefaultModel matches the 768-dimension knowledge base collection.
const DefaultModel = "BAAI/bge-base-en-v1.5"

// Embedder generates vectors for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known dimension.
type Provider interface {
	Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	// Provider is "fastembed" (default), "tei" or "openai".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	// BaseURL is used by tei and openai.
	BaseURL string `koanf:"base_url"`
	// APIKey is used by openai.
	APIKey string `koanf:"-" json:"-"`
	// CacheDir is the fastembed model cache.
	CacheDir string `koanf:"cache_dir"`
	// Dimension overrides detection for unknown models.
	Dimension int `koanf:"dimension"`
}

var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                  384,
	"BAAI/bge-small-en":                       384,
	"BAAI/bge-base-en-v1.5":                   768,
	"BAAI/bge-base-en":                        768,
	"BAAI/bge-small-zh-v1.5":                  512,
	"sentence-transformers/all-MiniLM-L6-v2":  384,
	"sentence-transformers/all-mpnet-base-v2": 768,
	"text-embedding-3-small":                  1536,
	"text-embedding-3-large":                  3072,
	"text-embedding-ada-002":                  1536,
}

// DetectDimension returns the embedding dimension for a model name,
// falling back to name patterns and finally 768.
func DetectDimension(model string) int {
	if dim, ok := knownDimensions[model]; ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "small"), strings.Contains(lower, "mini"):
		return 384
	default:
		return 768
	}
}

// NewProvider creates the configured provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DetectDimension(cfg.Model)
	}

	switch cfg.Provider {
	case "fastembed", "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "tei":
		svc, err := NewTEIService(TEIConfig{BaseURL: cfg.BaseURL, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return &teiProvider{TEIService: svc, dimension: dim}, nil
	case "openai":
		p, err := NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

type teiProvider struct {
	*TEIService
	dimension int
}

func (t *teiProvider) Dimension() int { return t.dimension }

func (t *teiProvider) Close() error { return nil }
