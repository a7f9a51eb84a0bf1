package llm

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for the gateway client.
const (
	DefaultBaseURL     = "https://api.portkey.ai/v1"
	DefaultModel       = "moonshotai/kimi-k2-instruct"
	DefaultProvider    = "groq"
	DefaultTemperature = 0.1

	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultRateLimit   = 5.0 // requests per second
	defaultBurst       = 5
)

// GuardrailMode selects where output directives are enforced.
type GuardrailMode string

const (
	// GuardrailGateway sends directives as gateway hooks.
	GuardrailGateway GuardrailMode = "gateway"
	// GuardrailLocal evaluates directives in process.
	GuardrailLocal GuardrailMode = "local"
)

// Config configures the chat client.
type Config struct {
	BaseURL string `koanf:"base_url"`

	// GatewayAPIKey is sent as x-portkey-api-key. Empty disables gateway headers.
	GatewayAPIKey string `koanf:"-" json:"-"`

	// Provider is sent as x-portkey-provider.
	Provider string `koanf:"provider"`

	// ProviderAPIKey is the upstream provider key sent as the bearer token.
	ProviderAPIKey string `koanf:"-" json:"-"`

	Model         string        `koanf:"model"`
	Temperature   float32       `koanf:"temperature"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxRetries    int           `koanf:"max_retries"`
	BaseBackoff   time.Duration `koanf:"base_backoff"`
	RateLimit     float64       `koanf:"rate_limit"`
	Burst         int           `koanf:"burst"`
	GuardrailMode GuardrailMode `koanf:"guardrail_mode"`
}

// DefaultConfig returns a config pointed at the Portkey gateway.
func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Provider:      DefaultProvider,
		Model:         DefaultModel,
		Temperature:   DefaultTemperature,
		Timeout:       defaultTimeout,
		MaxRetries:    defaultMaxRetries,
		BaseBackoff:   defaultBaseBackoff,
		RateLimit:     defaultRateLimit,
		Burst:         defaultBurst,
		GuardrailMode: GuardrailGateway,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("llm base_url is required")
	}
	if c.Model == "" {
		return errors.New("llm model is required")
	}
	if c.ProviderAPIKey == "" && c.GatewayAPIKey == "" {
		return errors.New("llm provider_api_key or gateway_api_key is required")
	}
	if c.MaxRetries < 0 {
		return errors.New("llm max_retries must not be negative")
	}
	if c.RateLimit <= 0 || c.Burst < 1 {
		return errors.New("llm rate_limit and burst must be positive")
	}
	switch c.GuardrailMode {
	case GuardrailGateway, GuardrailLocal:
	default:
		return fmt.Errorf("unknown llm guardrail_mode %q", c.GuardrailMode)
	}
	return nil
}
