package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

// Gateway guardrail verdict status codes.
const (
	StatusGuardrailDenied = 446
	StatusGuardrailFailed = 246
)

// GuardrailError reports a gateway guardrail verdict. It matches
// pipeline.ErrRejected with errors.Is.
type GuardrailError struct {
	StatusCode int
	Body       string
}

func (e *GuardrailError) Error() string {
	if e.StatusCode == StatusGuardrailDenied {
		return fmt.Sprintf("gateway guardrails denied the request (%d)", e.StatusCode)
	}
	return fmt.Sprintf("gateway guardrail checks failed (%d)", e.StatusCode)
}

func (e *GuardrailError) Is(target error) bool {
	return target == pipeline.ErrRejected
}

type hookConfigKey struct{}

// withHookConfig attaches a rendered x-portkey-config value to one request.
func withHookConfig(ctx context.Context, cfg []byte) context.Context {
	if len(cfg) == 0 {
		return ctx
	}
	return context.WithValue(ctx, hookConfigKey{}, string(cfg))
}

// gatewayTransport injects gateway headers and turns guardrail verdicts
// into errors before the OpenAI client decodes the body.
type gatewayTransport struct {
	base     http.RoundTripper
	apiKey   string
	provider string
}

func (t *gatewayTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.apiKey != "" {
		req.Header.Set("x-portkey-api-key", t.apiKey)
		if t.provider != "" {
			req.Header.Set("x-portkey-provider", t.provider)
		}
	}
	if cfg, ok := req.Context().Value(hookConfigKey{}).(string); ok {
		req.Header.Set("x-portkey-config", cfg)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == StatusGuardrailDenied || resp.StatusCode == StatusGuardrailFailed {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &GuardrailError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}
