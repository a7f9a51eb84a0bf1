// Package config loads mathrag configuration from a YAML file and
// MATHRAG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/mathrag/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/mathrag/internal/http"
	"github.com/fyrsmithlabs/mathrag/internal/knowledge"
	"github.com/fyrsmithlabs/mathrag/internal/llm"
	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
	"github.com/fyrsmithlabs/mathrag/internal/telemetry"
	"github.com/fyrsmithlabs/mathrag/internal/websearch"
)

// Config holds the complete mathrag configuration.
type Config struct {
	Server        ServerConfig     `koanf:"server"`
	LLM           LLMConfig        `koanf:"llm"`
	Pipeline      pipeline.Config  `koanf:"pipeline"`
	Embeddings    EmbeddingsConfig `koanf:"embeddings"`
	Knowledge     KnowledgeConfig  `koanf:"knowledge"`
	WebSearch     WebSearchConfig  `koanf:"websearch"`
	Feedback      FeedbackConfig   `koanf:"feedback"`
	Dataset       DatasetConfig    `koanf:"dataset"`
	Redact        RedactConfig     `koanf:"redact"`
	Temporal      TemporalConfig   `koanf:"temporal"`
	Observability telemetry.Config `koanf:"observability"`
	Logging       logging.Config   `koanf:"logging"`
}

// ServerConfig is the HTTP listener plus shutdown behavior.
type ServerConfig struct {
	httpserver.Config `koanf:",squash"`
	ShutdownTimeout   Duration `koanf:"shutdown_timeout"`
}

// LLMConfig is the chat client configuration with its keys held as secrets.
type LLMConfig struct {
	llm.Config     `koanf:",squash"`
	GatewayAPIKey  Secret `koanf:"gateway_api_key"`
	ProviderAPIKey Secret `koanf:"provider_api_key"`
}

// Client returns the llm package configuration with keys filled in.
func (c LLMConfig) Client() llm.Config {
	out := c.Config
	out.GatewayAPIKey = c.GatewayAPIKey.Value()
	out.ProviderAPIKey = c.ProviderAPIKey.Value()
	return out
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	embeddings.ProviderConfig `koanf:",squash"`
	APIKey                    Secret `koanf:"api_key"`
}

// Provider returns the embeddings package configuration.
func (c EmbeddingsConfig) Provider() embeddings.ProviderConfig {
	out := c.ProviderConfig
	out.APIKey = c.APIKey.Value()
	return out
}

// Knowledge store backends.
const (
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// KnowledgeConfig selects and configures the vector store.
type KnowledgeConfig struct {
	Backend string                  `koanf:"backend"`
	Chromem knowledge.ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig            `koanf:"qdrant"`
	// IngestBatchSize bounds each embedding request during ingestion.
	IngestBatchSize int `koanf:"ingest_batch_size"`
}

// QdrantConfig is the Qdrant store configuration with its key as a secret.
type QdrantConfig struct {
	knowledge.QdrantConfig `koanf:",squash"`
	APIKey                 Secret `koanf:"api_key"`
}

// Store returns the knowledge package configuration.
func (c QdrantConfig) Store() knowledge.QdrantConfig {
	out := c.QdrantConfig
	out.APIKey = c.APIKey.Value()
	return out
}

// WebSearchConfig configures Tavily. Web search is disabled without a key.
type WebSearchConfig struct {
	websearch.Config `koanf:",squash"`
	APIKey           Secret `koanf:"api_key"`
}

// Client returns the websearch package configuration.
func (c WebSearchConfig) Client() websearch.Config {
	out := c.Config
	out.APIKey = c.APIKey.Value()
	return out
}

// FeedbackConfig configures where feedback records go besides memory.
type FeedbackConfig struct {
	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig configures the feedback publisher. Empty URL disables it.
type NATSConfig struct {
	URL     string   `koanf:"url"`
	Name    string   `koanf:"name"`
	Timeout Duration `koanf:"timeout"`
}

// DatasetConfig points at the problem set loaded into the knowledge base.
type DatasetConfig struct {
	Path  string `koanf:"path"`
	Watch bool   `koanf:"watch"`
}

// RedactConfig configures secret scrubbing of feedback records.
type RedactConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// TemporalConfig configures the batch-solve worker.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// Default returns the built-in configuration.
func Default() *Config {
	qdrant := knowledge.QdrantConfig{}
	qdrant.ApplyDefaults()

	return &Config{
		Server: ServerConfig{
			Config:          *httpserver.DefaultConfig(),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		LLM:      LLMConfig{Config: llm.DefaultConfig()},
		Pipeline: pipeline.DefaultConfig(),
		Embeddings: EmbeddingsConfig{ProviderConfig: embeddings.ProviderConfig{
			Provider: "fastembed",
			Model:    embeddings.DefaultModel,
		}},
		Knowledge: KnowledgeConfig{
			Backend:         BackendChromem,
			Chromem:         knowledge.ChromemConfig{Collection: knowledge.DefaultCollection, Compress: true},
			Qdrant:          QdrantConfig{QdrantConfig: qdrant},
			IngestBatchSize: knowledge.DefaultBatchSize,
		},
		WebSearch: WebSearchConfig{Config: websearch.DefaultConfig()},
		Feedback: FeedbackConfig{NATS: NATSConfig{
			Name:    "mathrag",
			Timeout: Duration(5 * time.Second),
		}},
		Dataset: DatasetConfig{Path: "data/jee_bench.json"},
		Redact:  RedactConfig{Enabled: true},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "mathrag-batch",
		},
		Observability: *telemetry.NewDefaultConfig(),
		Logging:       *logging.NewDefaultConfig(),
	}
}

// Validate checks every section. LLM keys are not required here so that
// commands which never call the model can still load configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown_timeout must be positive")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	switch c.Knowledge.Backend {
	case BackendChromem, BackendQdrant:
	default:
		return fmt.Errorf("unknown knowledge backend %q (want %s or %s)", c.Knowledge.Backend, BackendChromem, BackendQdrant)
	}
	if c.Knowledge.IngestBatchSize < 1 {
		return errors.New("knowledge ingest_batch_size must be at least 1")
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
