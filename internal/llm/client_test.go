package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/mathrag/internal/guardrails"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

type captured struct {
	Header http.Header
	Body   map[string]any
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   DefaultModel,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}

// newGateway starts a fake gateway. Each call pops the next status/body pair;
// the last pair repeats.
func newGateway(t *testing.T, replies ...[2]any) (*httptest.Server, *int32, chan captured) {
	t.Helper()
	var calls int32
	seen := make(chan captured, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		seen <- captured{Header: r.Header.Clone(), Body: body}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(replies[n][0].(int))
		_, _ = w.Write([]byte(replies[n][1].(string)))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, seen
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.GatewayAPIKey = "pk-test"
	cfg.ProviderAPIKey = "gsk-test"
	cfg.BaseBackoff = time.Millisecond
	cfg.RateLimit = 1000
	cfg.Burst = 100
	return cfg
}

func TestClient_Chat(t *testing.T) {
	srv, _, seen := newGateway(t, [2]any{200, completion("VALID")})
	client, err := NewClient(testConfig(srv.URL), nil)
	require.NoError(t, err)

	out, err := client.Chat(context.Background(), ChatRequest{System: "sys", User: "hi", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "VALID", out)

	req := <-seen
	assert.Equal(t, "pk-test", req.Header.Get("x-portkey-api-key"))
	assert.Equal(t, "groq", req.Header.Get("x-portkey-provider"))
	assert.Equal(t, "Bearer gsk-test", req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("x-portkey-config"))
	assert.Equal(t, DefaultModel, req.Body["model"])
	assert.EqualValues(t, 100, req.Body["max_tokens"])
	messages := req.Body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestClient_GuardrailVerdicts(t *testing.T) {
	for _, status := range []int{StatusGuardrailDenied, StatusGuardrailFailed} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			srv, calls, _ := newGateway(t, [2]any{status, `{"hook_results":{}}`})
			client, err := NewClient(testConfig(srv.URL), nil)
			require.NoError(t, err)

			_, err = client.Chat(context.Background(), ChatRequest{User: "hi"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, pipeline.ErrRejected))

			var gerr *GuardrailError
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, status, gerr.StatusCode)
			assert.EqualValues(t, 1, atomic.LoadInt32(calls), "guardrail verdicts are not retried")
		})
	}
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	srv, calls, _ := newGateway(t,
		[2]any{503, `{"error":{"message":"overloaded","type":"server_error"}}`},
		[2]any{429, `{"error":{"message":"slow down","type":"rate_limit"}}`},
		[2]any{200, completion("ok")},
	)
	client, err := NewClient(testConfig(srv.URL), nil)
	require.NoError(t, err)

	out, err := client.Chat(context.Background(), ChatRequest{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls, _ := newGateway(t, [2]any{400, `{"error":{"message":"bad model","type":"invalid_request_error"}}`})
	client, err := NewClient(testConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), ChatRequest{User: "hi"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, pipeline.ErrRejected))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestClient_MaxRetries(t *testing.T) {
	srv, calls, _ := newGateway(t, [2]any{500, `oops`})
	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), ChatRequest{User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "a key is required")

	cfg.ProviderAPIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.GuardrailMode = "server"
	assert.Error(t, cfg.Validate())
}

func TestParseVerdict(t *testing.T) {
	assert.True(t, ParseVerdict("VALID"))
	assert.True(t, ParseVerdict("valid."))
	assert.False(t, ParseVerdict("INVALID"))
	assert.False(t, ParseVerdict("Invalid question"))
	assert.False(t, ParseVerdict("I cannot tell"))
}

func TestClassifier(t *testing.T) {
	t.Run("verdict and input hooks", func(t *testing.T) {
		srv, _, seen := newGateway(t, [2]any{200, completion("VALID")})
		client, err := NewClient(testConfig(srv.URL), nil)
		require.NoError(t, err)
		classifier, err := NewClassifier(client, guardrails.DefaultInputDirectives())
		require.NoError(t, err)

		ok, err := classifier.IsMathQuestion(context.Background(), "Solve 2x = 4")
		require.NoError(t, err)
		assert.True(t, ok)

		req := <-seen
		assert.Contains(t, req.Header.Get("x-portkey-config"), "before_request_hooks")
		assert.Contains(t, req.Header.Get("x-portkey-config"), "default.regexMatch")
		assert.EqualValues(t, 100, req.Body["max_tokens"])
	})

	t.Run("denial is a negative verdict", func(t *testing.T) {
		srv, _, _ := newGateway(t, [2]any{StatusGuardrailDenied, `{}`})
		client, err := NewClient(testConfig(srv.URL), nil)
		require.NoError(t, err)
		classifier, err := NewClassifier(client, guardrails.DefaultInputDirectives())
		require.NoError(t, err)

		ok, err := classifier.IsMathQuestion(context.Background(), "asdf")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSolutionGenerator(t *testing.T) {
	srv, _, seen := newGateway(t, [2]any{200, completion("x = 5")})
	client, err := NewClient(testConfig(srv.URL), nil)
	require.NoError(t, err)

	out, err := NewSolutionGenerator(client).Generate(context.Background(), "Solve 2x + 5 = 15", "Knowledge Base Results:\n")
	require.NoError(t, err)
	assert.Equal(t, "x = 5", out)

	req := <-seen
	assert.EqualValues(t, 2000, req.Body["max_tokens"])
	user := req.Body["messages"].([]any)[1].(map[string]any)["content"].(string)
	assert.True(t, strings.HasPrefix(user, "Question: Solve 2x + 5 = 15"))
	assert.Contains(t, user, "Context:\nKnowledge Base Results:")
}

func TestSolvePrompt_NoContext(t *testing.T) {
	assert.NotContains(t, SolvePrompt("q", ""), "Context:")
}

func TestGuardedGenerator(t *testing.T) {
	prompt := pipeline.Prompt{System: "sys", User: "format"}
	good := "Solution:\nStep 1: Subtract 5 from both sides to get 2x = 10.\nStep 2: Divide by 2.\nTherefore, the final answer is x = 5."

	t.Run("gateway mode sends output hooks", func(t *testing.T) {
		srv, _, seen := newGateway(t, [2]any{200, completion(good)})
		client, err := NewClient(testConfig(srv.URL), nil)
		require.NoError(t, err)

		out, err := NewGuardedGenerator(client).GenerateConstrained(context.Background(), prompt, guardrails.DefaultOutputDirectives())
		require.NoError(t, err)
		assert.Equal(t, good, out)

		hdr := (<-seen).Header.Get("x-portkey-config")
		assert.Contains(t, hdr, "after_request_hooks")
		assert.Contains(t, hdr, "default.contains")
	})

	t.Run("gateway check failure is a rejection", func(t *testing.T) {
		srv, _, _ := newGateway(t, [2]any{StatusGuardrailFailed, completion("meh")})
		client, err := NewClient(testConfig(srv.URL), nil)
		require.NoError(t, err)

		_, err = NewGuardedGenerator(client).GenerateConstrained(context.Background(), prompt, guardrails.DefaultOutputDirectives())
		assert.ErrorIs(t, err, pipeline.ErrRejected)
	})

	t.Run("local mode evaluates directives", func(t *testing.T) {
		srv, _, seen := newGateway(t, [2]any{200, completion("too short")})
		cfg := testConfig(srv.URL)
		cfg.GuardrailMode = GuardrailLocal
		client, err := NewClient(cfg, nil)
		require.NoError(t, err)

		_, err = NewGuardedGenerator(client).GenerateConstrained(context.Background(), prompt, guardrails.DefaultOutputDirectives())
		assert.ErrorIs(t, err, pipeline.ErrRejected)
		assert.Empty(t, (<-seen).Header.Get("x-portkey-config"))
	})
}
