package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/guardrails"
	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

const formatSystemPrompt = "You are a math tutor providing step-by-step solutions. Always follow the formatting requirements."

var acceptanceMarkers = []string{"step", "solution", "answer"}

// LocalCheck is the acceptance gate applied to every candidate regardless
// of the constrained generator's own checks.
func LocalCheck(candidate string, minLength int) bool {
	if len([]rune(candidate)) < minLength {
		return false
	}
	lower := strings.ToLower(candidate)
	for _, m := range acceptanceMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// FormatPrompt builds the formatting request sent on every attempt.
func FormatPrompt(question, rawSolution string) Prompt {
	user := fmt.Sprintf(`Please format this math solution properly with clear steps:

Original Question: %s

Raw Solution: %s

Requirements:
1. Start with "Solution:"
2. Break down into numbered steps
3. Show all calculations clearly
4. End with "Therefore, the final answer is..."
5. Use proper mathematical notation

Please provide a well-structured solution:`, question, rawSolution)
	return Prompt{System: formatSystemPrompt, User: user}
}

// Enforcement reformats the raw solution through the constrained generator,
// retrying up to the attempt budget and falling back to FormatFallback.
type Enforcement struct {
	formatter   ConstrainedGenerator
	maxAttempts int
	minLength   int
	directives  guardrails.Directives
	timeout     time.Duration
	logger      *logging.Logger
	metrics     *Metrics
}

// NewEnforcement creates the enforcement stage. A nil formatter makes every
// attempt fail, so accepted questions always end in the fallback.
func NewEnforcement(formatter ConstrainedGenerator, cfg Config, logger *logging.Logger, metrics *Metrics) *Enforcement {
	return &Enforcement{
		formatter:   formatter,
		maxAttempts: cfg.MaxAttempts,
		minLength:   cfg.MinSolutionLength,
		directives:  cfg.OutputDirectives,
		timeout:     cfg.CollaboratorTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

func (e *Enforcement) Name() StageName { return StageEnforcement }

func (e *Enforcement) Run(ctx context.Context, s State) State {
	if !s.InputAccepted {
		return s
	}
	if s.RawSolution == "" {
		s.FinalSolution = FormatFallback(noSolutionPlaceholder, s.Question)
		s.OutputAccepted = false
		s.AttemptsUsed = 0
		e.metrics.recordEnforcement("skipped", 0)
		return s
	}
	return e.enforce(ctx, s)
}

func (e *Enforcement) enforce(ctx context.Context, s State) (out State) {
	m := Start(e.maxAttempts)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "output enforcement panicked", zap.Any("panic", r), zap.Int("attempt", m.Attempt))
			out = e.fallback(s, m.Attempt)
			out = out.withError(fmt.Sprintf(msgEnforcementFault, r))
			e.metrics.recordEnforcement("fault", out.AttemptsUsed)
		}
	}()

	prompt := FormatPrompt(s.Question, s.RawSolution)
	var accepted string
	for !m.Done() {
		candidate, ok := e.attempt(ctx, prompt, m.Attempt+1)
		if ok {
			accepted = candidate
		}
		m = m.Next(ok)
	}

	if m.Phase == PhaseAccepted {
		s.FinalSolution = accepted
		s.OutputAccepted = true
		s.AttemptsUsed = m.Attempt
		e.logger.Info(ctx, "solution accepted", zap.Int("attempts", m.Attempt))
		e.metrics.recordEnforcement("accepted", m.Attempt)
		return s
	}

	e.logger.Warn(ctx, "output enforcement exhausted, using fallback", zap.Int("attempts", m.Attempt))
	out = e.fallback(s, m.Max).withError(msgEnforcementExhaust)
	e.metrics.recordEnforcement("exhausted", out.AttemptsUsed)
	return out
}

// attempt runs one constrained generation. A rejection or error discards
// whatever content came back.
func (e *Enforcement) attempt(ctx context.Context, prompt Prompt, n int) (string, bool) {
	if e.formatter == nil {
		return "", false
	}
	callCtx, cancel := callContext(ctx, e.timeout)
	defer cancel()

	candidate, err := e.formatter.GenerateConstrained(callCtx, prompt, e.directives)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			e.logger.Debug(ctx, "candidate rejected by guardrails", zap.Int("attempt", n), zap.Error(err))
		} else {
			e.logger.Warn(ctx, "constrained generation failed", zap.Int("attempt", n), zap.Error(err))
		}
		return "", false
	}
	if !LocalCheck(candidate, e.minLength) {
		e.logger.Debug(ctx, "candidate failed local check",
			zap.Int("attempt", n),
			zap.Int("length", len([]rune(candidate))))
		return "", false
	}
	return candidate, true
}

func (e *Enforcement) fallback(s State, attempts int) State {
	if attempts > e.maxAttempts {
		attempts = e.maxAttempts
	}
	s.FinalSolution = FormatFallback(s.RawSolution, s.Question)
	s.OutputAccepted = false
	s.AttemptsUsed = attempts
	return s
}
