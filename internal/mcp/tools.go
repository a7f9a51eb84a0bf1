package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/mathtools"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

// ToolInfo names and describes a tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

const (
	toolCalculator    = "calculator"
	toolDerivative    = "derivative"
	toolIntegral      = "integral"
	toolSolveEquation = "solve_equation"
	toolSolveQuestion = "solve_math_question"
	toolSearchKB      = "search_knowledge_base"

	defaultSearchK = 3
	maxSearchK     = 20
)

var toolInfos = []ToolInfo{
	{toolCalculator, "Calculate basic mathematical expressions"},
	{toolDerivative, "Calculate derivatives of simple functions"},
	{toolIntegral, "Calculate integrals of simple functions"},
	{toolSolveEquation, "Solve linear equations in one variable x"},
	{toolSolveQuestion, "Solve a math question step by step using the knowledge base and web search"},
	{toolSearchKB, "Find solved problems similar to a question"},
}

// ToolInfos lists every tool the server registers.
func ToolInfos() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

func description(name string) string {
	for _, t := range toolInfos {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

var errNotConfigured = errors.New("not configured")

type calculatorInput struct {
	Expression string `json:"expression" jsonschema:"Expression using + - * / ^ %, parentheses, pi, e and sqrt sin cos tan log abs round min max pow"`
}

type functionInput struct {
	Function string `json:"function" jsonschema:"Function of x, for example x^2 or sin(x)"`
}

type equationInput struct {
	Equation string `json:"equation" jsonschema:"Linear equation in x, for example 3x + 5 = 2x - 1"`
}

type textOutput struct {
	Result string `json:"result"`
}

type questionInput struct {
	Question string `json:"question" jsonschema:"The math question to solve"`
}

type questionOutput struct {
	Solution         string `json:"solution"`
	SessionID        string `json:"session_id"`
	InputAccepted    bool   `json:"input_accepted"`
	OutputAccepted   bool   `json:"output_accepted"`
	Attempts         int    `json:"attempts"`
	Error            string `json:"error,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"Question to find similar problems for"`
	K     int    `json:"k,omitempty" jsonschema:"Number of results (default 3, max 20)"`
}

type searchOutput struct {
	Results []pipeline.RetrievalResult `json:"results"`
	Count   int                        `json:"count"`
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

// instrument wraps a handler with logging and metrics.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		s.metrics.track(ctx, name, 1)
		defer s.metrics.track(ctx, name, -1)

		start := time.Now()
		res, out, err := h(ctx, req, in)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		if err != nil {
			s.logger.Warn(ctx, "tool failed", zap.String("tool", name), zap.Error(err))
		} else {
			s.logger.Debug(ctx, "tool completed", zap.String("tool", name), zap.Duration("duration", time.Since(start)))
		}
		return res, out, err
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolCalculator, Description: description(toolCalculator)},
		instrument(s, toolCalculator, s.handleCalculator))
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDerivative, Description: description(toolDerivative)},
		instrument(s, toolDerivative, s.handleDerivative))
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolIntegral, Description: description(toolIntegral)},
		instrument(s, toolIntegral, s.handleIntegral))
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolSolveEquation, Description: description(toolSolveEquation)},
		instrument(s, toolSolveEquation, s.handleSolveEquation))
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolSolveQuestion, Description: description(toolSolveQuestion)},
		instrument(s, toolSolveQuestion, s.handleSolveQuestion))
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolSearchKB, Description: description(toolSearchKB)},
		instrument(s, toolSearchKB, s.handleSearch))
}

func (s *Server) handleCalculator(_ context.Context, _ *mcp.CallToolRequest, in calculatorInput) (*mcp.CallToolResult, textOutput, error) {
	if strings.TrimSpace(in.Expression) == "" {
		return nil, textOutput{}, errors.New("expression is required")
	}
	v, err := mathtools.Eval(in.Expression, nil)
	if err != nil {
		return nil, textOutput{}, err
	}
	out := textOutput{Result: "Result: " + mathtools.FormatNumber(v)}
	return textResult(out.Result), out, nil
}

func (s *Server) handleDerivative(_ context.Context, _ *mcp.CallToolRequest, in functionInput) (*mcp.CallToolResult, textOutput, error) {
	if strings.TrimSpace(in.Function) == "" {
		return nil, textOutput{}, errors.New("function is required")
	}
	out := textOutput{Result: mathtools.Derivative(in.Function)}
	return textResult(out.Result), out, nil
}

func (s *Server) handleIntegral(_ context.Context, _ *mcp.CallToolRequest, in functionInput) (*mcp.CallToolResult, textOutput, error) {
	if strings.TrimSpace(in.Function) == "" {
		return nil, textOutput{}, errors.New("function is required")
	}
	out := textOutput{Result: mathtools.Integral(in.Function)}
	return textResult(out.Result), out, nil
}

func (s *Server) handleSolveEquation(_ context.Context, _ *mcp.CallToolRequest, in equationInput) (*mcp.CallToolResult, textOutput, error) {
	if strings.TrimSpace(in.Equation) == "" {
		return nil, textOutput{}, errors.New("equation is required")
	}
	out := textOutput{Result: mathtools.SolveEquation(in.Equation)}
	return textResult(out.Result), out, nil
}

func (s *Server) handleSolveQuestion(ctx context.Context, _ *mcp.CallToolRequest, in questionInput) (*mcp.CallToolResult, questionOutput, error) {
	if s.solver == nil {
		return nil, questionOutput{}, fmt.Errorf("solver %w", errNotConfigured)
	}
	if strings.TrimSpace(in.Question) == "" {
		return nil, questionOutput{}, errors.New("question is required")
	}
	res := s.solver.Solve(ctx, in.Question)
	out := questionOutput{
		Solution:         res.FinalSolution,
		SessionID:        res.SessionID,
		InputAccepted:    res.InputAccepted,
		OutputAccepted:   res.OutputAccepted,
		Attempts:         res.AttemptsUsed,
		Error:            res.ErrorMessage,
		ProcessingTimeMs: res.Duration.Milliseconds(),
	}
	return textResult(out.Solution), out, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, searchOutput, error) {
	if s.retriever == nil {
		return nil, searchOutput{}, fmt.Errorf("knowledge base %w", errNotConfigured)
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, searchOutput{}, errors.New("query is required")
	}
	k := in.K
	if k <= 0 {
		k = defaultSearchK
	}
	k = min(k, maxSearchK)

	results, err := s.retriever.Search(ctx, in.Query, k)
	if err != nil {
		return nil, searchOutput{}, fmt.Errorf("searching knowledge base: %w", err)
	}
	out := searchOutput{Results: results, Count: len(results)}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%s, distance %.3f] %s\n", i+1, r.Topic, r.Score, r.Question)
		if r.Answer != "" {
			fmt.Fprintf(&b, "   Answer: %s\n", r.Answer)
		}
	}
	if len(results) == 0 {
		b.WriteString("No similar problems found")
	}
	return textResult(strings.TrimRight(b.String(), "\n")), out, nil
}
