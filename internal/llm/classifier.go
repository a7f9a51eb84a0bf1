package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/mathrag/internal/guardrails"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

const classifierSystemPrompt = "Respond 'VALID' if this is a math question, 'INVALID' otherwise."

const classifierMaxTokens = 100

// Classifier asks the model whether a question is mathematical.
type Classifier struct {
	client     *Client
	hookConfig []byte
}

// NewClassifier creates a classifier. In gateway mode the input directives
// are attached as before_request hooks.
func NewClassifier(client *Client, directives guardrails.Directives) (*Classifier, error) {
	c := &Classifier{client: client}
	if client.Mode() == GuardrailGateway {
		cfg, err := guardrails.HookConfig("math-input-guardrail", guardrails.BeforeRequest, directives, guardrails.OnFailDeny)
		if err != nil {
			return nil, fmt.Errorf("render input hooks: %w", err)
		}
		c.hookConfig = cfg
	}
	return c, nil
}

// IsMathQuestion implements pipeline.Classifier. A gateway denial is a
// negative verdict, not an error.
func (c *Classifier) IsMathQuestion(ctx context.Context, question string) (bool, error) {
	reply, err := c.client.Chat(ctx, ChatRequest{
		System:     classifierSystemPrompt,
		User:       question,
		MaxTokens:  classifierMaxTokens,
		HookConfig: c.hookConfig,
	})
	if errors.Is(err, pipeline.ErrRejected) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ParseVerdict(reply), nil
}

// ParseVerdict reads the classifier reply.
func ParseVerdict(reply string) bool {
	upper := strings.ToUpper(reply)
	return strings.Contains(upper, "VALID") && !strings.Contains(upper, "INVALID")
}
