package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/mathrag/internal/guardrails"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

const (
	generatorMaxTokens = 2000
	formatterMaxTokens = 2000
)

const solverSystemPrompt = `You are an expert mathematics tutor. Given a question and optional context, reason step by step and then write the solution.`

// SolutionGenerator produces raw solutions.
type SolutionGenerator struct {
	client *Client
}

// NewSolutionGenerator creates a generator.
func NewSolutionGenerator(client *Client) *SolutionGenerator {
	return &SolutionGenerator{client: client}
}

// SolvePrompt renders the user message for a question and its context.
func SolvePrompt(question, context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	if context != "" {
		fmt.Fprintf(&b, "Context:\n%s\n", context)
	}
	b.WriteString("Reasoning: Let's think step by step in order to produce the solution.\n\nSolution:")
	return b.String()
}

// Generate implements pipeline.Generator.
func (g *SolutionGenerator) Generate(ctx context.Context, question, context string) (string, error) {
	return g.client.Chat(ctx, ChatRequest{
		System:    solverSystemPrompt,
		User:      SolvePrompt(question, context),
		MaxTokens: generatorMaxTokens,
	})
}

// GuardedGenerator produces text that must satisfy guardrail directives.
type GuardedGenerator struct {
	client *Client
}

// NewGuardedGenerator creates a constrained generator.
func NewGuardedGenerator(client *Client) *GuardedGenerator {
	return &GuardedGenerator{client: client}
}

// GenerateConstrained implements pipeline.ConstrainedGenerator.
func (g *GuardedGenerator) GenerateConstrained(ctx context.Context, prompt pipeline.Prompt, d guardrails.Directives) (string, error) {
	req := ChatRequest{
		System:    prompt.System,
		User:      prompt.User,
		MaxTokens: formatterMaxTokens,
	}
	if g.client.Mode() == GuardrailGateway {
		cfg, err := guardrails.HookConfig("math-output-validation", guardrails.AfterRequest, d, guardrails.OnFailRetry)
		if err != nil {
			return "", fmt.Errorf("render output hooks: %w", err)
		}
		req.HookConfig = cfg
	}

	out, err := g.client.Chat(ctx, req)
	if err != nil {
		return "", err
	}

	if g.client.Mode() == GuardrailLocal {
		if violations := guardrails.Evaluate(out, d); len(violations) > 0 {
			return "", fmt.Errorf("%w: %s", pipeline.ErrRejected, violations[0])
		}
	}
	return out, nil
}
