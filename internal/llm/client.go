// Package llm talks to OpenAI-compatible chat completion endpoints through
// the Portkey gateway and implements the pipeline's model collaborators.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

// ChatRequest is a single system + user exchange.
type ChatRequest struct {
	System    string
	User      string
	MaxTokens int

	// HookConfig is an optional rendered gateway guardrail config.
	HookConfig []byte
}

// Client sends chat completions with rate limiting and retries.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	mode        GuardrailMode
	logger      *logging.Logger
}

// NewClient creates a client from cfg.
func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	token := cfg.ProviderAPIKey
	if token == "" {
		token = cfg.GatewayAPIKey
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	oc := openai.DefaultConfig(token)
	oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &gatewayTransport{
			base:     http.DefaultTransport,
			apiKey:   cfg.GatewayAPIKey,
			provider: cfg.Provider,
		},
	}

	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}

	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		maxRetries:  cfg.MaxRetries,
		baseBackoff: backoff,
		mode:        cfg.GuardrailMode,
		logger:      logger.Named("llm"),
	}, nil
}

// Mode returns where output directives are enforced.
func (c *Client) Mode() GuardrailMode {
	return c.mode
}

// Chat sends req and returns the first choice's content.
//
// Retries with exponential backoff on rate limiting, server errors and
// transport failures. Guardrail verdicts are returned immediately and match
// pipeline.ErrRejected.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: c.temperature,
	}
	callCtx := withHookConfig(ctx, req.HookConfig)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.api.CreateChatCompletion(callCtx, creq)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("empty response from API")
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !isRetryable(ctx, err) {
			return "", err
		}
		c.logger.Debug(ctx, "retrying chat completion", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable reports whether err is transient.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var gerr *GuardrailError
	if errors.As(err, &gerr) {
		return false
	}
	if code, ok := statusCode(err); ok {
		return code == http.StatusTooManyRequests || code >= 500
	}
	return true
}

func statusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
