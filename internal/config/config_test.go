package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/mathrag/internal/knowledge"
	"github.com/fyrsmithlabs/mathrag/internal/llm"
)

// isolate points HOME at a temp dir and clears variables that would leak
// into Load from the developer's shell.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"GROQ_API_KEY", "PORTKEY_API_KEY", "TAVILY_API_KEY", "QDRANT_API_KEY"} {
		t.Setenv(k, "")
	}
	return home
}

func writeConfig(t *testing.T, home, body string, perm os.FileMode) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "mathrag")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, BackendChromem, cfg.Knowledge.Backend)
	assert.Equal(t, knowledge.DefaultCollection, cfg.Knowledge.Chromem.Collection)
	assert.Equal(t, 6334, cfg.Knowledge.Qdrant.Port)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, llm.DefaultModel, cfg.LLM.Model)
	assert.Equal(t, "mathrag-batch", cfg.Temporal.TaskQueue)
	assert.False(t, cfg.Observability.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mut     func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"pipeline", func(c *Config) { c.Pipeline.MaxAttempts = 0 }, "pipeline: max_attempts"},
		{"backend", func(c *Config) { c.Knowledge.Backend = "pinecone" }, "unknown knowledge backend"},
		{"batch size", func(c *Config) { c.Knowledge.IngestBatchSize = 0 }, "ingest_batch_size"},
		{"logging", func(c *Config) { c.Logging.Format = "xml" }, "logging: format"},
		{"observability", func(c *Config) {
			c.Observability.Enabled = true
			c.Observability.Endpoint = ""
		}, "observability: endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
	assert.False(t, cfg.LLM.ProviderAPIKey.IsSet())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	home := isolate(t)
	path := writeConfig(t, home, `
server:
  port: 9100
  cors_origins: ["https://math.example.org"]
  shutdown_timeout: 3s
llm:
  model: llama-3.1-8b-instant
  provider_api_key: gsk_from_file
  timeout: 15s
pipeline:
  max_attempts: 5
  output_directives:
    min_length: 50
knowledge:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    api_key: qk
logging:
  level: debug
  format: console
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"https://math.example.org"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "gsk_from_file", cfg.LLM.Client().ProviderAPIKey)
	assert.Equal(t, 5, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 50, cfg.Pipeline.OutputDirectives.MinLength)
	assert.Equal(t, BackendQdrant, cfg.Knowledge.Backend)
	assert.Equal(t, "qdrant.internal", cfg.Knowledge.Qdrant.Store().Host)
	assert.Equal(t, "qk", cfg.Knowledge.Qdrant.Store().APIKey)
	assert.Equal(t, 6334, cfg.Knowledge.Qdrant.Port)
	assert.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	// untouched sections keep their defaults
	assert.Equal(t, Default().WebSearch.Endpoint, cfg.WebSearch.Endpoint)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := writeConfig(t, home, "server:\n  port: 9100\n", 0o600)

	t.Setenv("MATHRAG_SERVER_PORT", "9200")
	t.Setenv("MATHRAG_LLM_BASE_URL", "http://localhost:4000/v1")
	t.Setenv("MATHRAG_KNOWLEDGE_QDRANT_HOST", "qdrant.env")
	t.Setenv("MATHRAG_KNOWLEDGE_CHROMEM_PATH", "/var/lib/mathrag/kb")
	t.Setenv("MATHRAG_FEEDBACK_NATS_URL", "nats://localhost:4222")
	t.Setenv("MATHRAG_PIPELINE_SKIP_SEARCH_THRESHOLD", "0.5")
	t.Setenv("MATHRAG_OBSERVABILITY_SAMPLING_RATE", "0.25")
	t.Setenv("MATHRAG_WEBSEARCH_INCLUDE_DOMAINS", "a.org,b.org")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "http://localhost:4000/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "qdrant.env", cfg.Knowledge.Qdrant.Host)
	assert.Equal(t, "/var/lib/mathrag/kb", cfg.Knowledge.Chromem.Path)
	assert.Equal(t, "nats://localhost:4222", cfg.Feedback.NATS.URL)
	assert.Equal(t, 0.5, cfg.Pipeline.SkipSearchThreshold)
	assert.Equal(t, 0.25, cfg.Observability.Sampling.Rate)
	assert.Equal(t, []string{"a.org", "b.org"}, cfg.WebSearch.IncludeDomains)
}

func TestLoad_ProviderKeys(t *testing.T) {
	isolate(t)
	t.Setenv("GROQ_API_KEY", "gsk_conventional")
	t.Setenv("TAVILY_API_KEY", "tvly-conventional")
	t.Setenv("MATHRAG_WEBSEARCH_API_KEY", "tvly-prefixed")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gsk_conventional", cfg.LLM.ProviderAPIKey.Value())
	assert.Equal(t, "tvly-prefixed", cfg.WebSearch.Client().APIKey)
}

func TestLoad_Rejections(t *testing.T) {
	t.Run("outside allowed dirs", func(t *testing.T) {
		isolate(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		_, err := Load(path)
		assert.ErrorContains(t, err, "config path validation failed")
	})

	t.Run("lookalike prefix", func(t *testing.T) {
		home := isolate(t)
		_, err := Load(filepath.Join(home, ".config", "mathrag-evil", "config.yaml"))
		assert.ErrorContains(t, err, "config path validation failed")
	})

	t.Run("world readable", func(t *testing.T) {
		home := isolate(t)
		path := writeConfig(t, home, "server:\n  port: 9100\n", 0o644)
		_, err := Load(path)
		assert.ErrorContains(t, err, "insecure config file permissions")
	})

	t.Run("invalid value", func(t *testing.T) {
		home := isolate(t)
		path := writeConfig(t, home, "knowledge:\n  backend: pinecone\n", 0o600)
		_, err := Load(path)
		assert.ErrorContains(t, err, "unknown knowledge backend")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		home := isolate(t)
		path := writeConfig(t, home, "server: [\n", 0o600)
		_, err := Load(path)
		assert.ErrorContains(t, err, "failed to load config file")
	})
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"MATHRAG_SERVER_PORT":                        "server.port",
		"MATHRAG_LLM_PROVIDER_API_KEY":               "llm.provider_api_key",
		"MATHRAG_KNOWLEDGE_QDRANT_MAX_RETRIES":       "knowledge.qdrant.max_retries",
		"MATHRAG_KNOWLEDGE_BACKEND":                  "knowledge.backend",
		"MATHRAG_LOGGING_SAMPLING_ENABLED":           "logging.sampling.enabled",
		"MATHRAG_PIPELINE_OUTPUT_DIRECTIVES_PATTERN": "pipeline.output_directives.pattern",
		"MATHRAG_DEBUG":                              "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := isolate(t)
	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(home, ".config", "mathrag"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestSecret(t *testing.T) {
	s := Secret("gsk_live_value")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "gsk_live_value", s.Value())
	assert.Empty(t, Secret("").String())

	data, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Key":"[REDACTED]"}`, string(data))

	var back struct{ Key Secret }
	assert.Error(t, json.Unmarshal(data, &back))

	require.NoError(t, json.Unmarshal([]byte(`{"Key":"raw"}`), &back))
	assert.Equal(t, "raw", back.Key.Value())
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))
}
