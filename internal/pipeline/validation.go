package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

var mathKeywords = []string{
	// operations
	"equation", "solve", "find", "calculate", "determine", "evaluate", "compute",
	// algebra
	"algebra", "polynomial", "quadratic", "linear", "variable", "coefficient",
	// calculus
	"derivative", "integral", "limit", "differential", "antiderivative",
	// geometry
	"geometry", "area", "perimeter", "volume", "radius", "diameter", "triangle",
	"circle", "rectangle", "square", "angle", "pythagorean", "theorem",
	// trigonometry
	"trigonometry", "sin", "cos", "tan", "sine", "cosine", "tangent",
	// general
	"mathematics", "math", "formula", "function", "graph", "plot",
	// statistics
	"statistics", "probability", "mean", "median", "mode", "deviation",
	// other
	"matrix", "vector", "logarithm", "exponential", "factorial", "prime",
}

var mathVerbs = []string{"explain", "prove", "show", "demonstrate", "derive", "verify"}

var (
	keywordPattern = wordStartPattern(mathKeywords)
	verbPattern    = wordStartPattern(mathVerbs)
	symbolPattern  = regexp.MustCompile(`[0-9+\-*/=^()x²³√∫∂∑π]`)
)

func wordStartPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
}

// HeuristicSignals is the outcome of the local lexical checks.
type HeuristicSignals struct {
	Keyword bool
	Verb    bool
	Symbol  bool
}

// Pass combines the signals: keyword, or verb with symbol, or symbol alone.
func (h HeuristicSignals) Pass() bool {
	return h.Keyword || (h.Verb && h.Symbol) || h.Symbol
}

// Heuristic runs the lexical checks against question.
func Heuristic(question string) HeuristicSignals {
	q := strings.ToLower(question)
	return HeuristicSignals{
		Keyword: keywordPattern.MatchString(q),
		Verb:    verbPattern.MatchString(q),
		Symbol:  symbolPattern.MatchString(q),
	}
}

// InputValidation accepts a question when the local heuristic or the
// classifier says it is mathematical.
type InputValidation struct {
	classifier Classifier
	failOpen   bool
	timeout    time.Duration
	logger     *logging.Logger
	metrics    *Metrics
}

// NewInputValidation creates the input validation stage. classifier may be nil,
// in which case only the heuristic decides.
func NewInputValidation(classifier Classifier, cfg Config, logger *logging.Logger, metrics *Metrics) *InputValidation {
	return &InputValidation{
		classifier: classifier,
		failOpen:   cfg.ClassifierFailOpen,
		timeout:    cfg.CollaboratorTimeout,
		logger:     logger,
		metrics:    metrics,
	}
}

func (v *InputValidation) Name() StageName { return StageInputValidation }

func (v *InputValidation) Run(ctx context.Context, s State) (out State) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error(ctx, "input validation panicked", zap.Any("panic", r))
			out = s
			out.InputAccepted = false
			out = out.withError(fmt.Sprintf(msgInputFault, r))
		}
	}()

	if strings.TrimSpace(s.Question) == "" {
		s.InputAccepted = false
		v.metrics.recordInput("empty")
		return s.withError(msgEmptyQuestion)
	}

	signals := Heuristic(s.Question)
	verdict := v.classify(ctx, s.Question)
	s.InputAccepted = signals.Pass() || verdict

	v.logger.Debug(ctx, "input validation",
		zap.Bool("keyword", signals.Keyword),
		zap.Bool("verb", signals.Verb),
		zap.Bool("symbol", signals.Symbol),
		zap.Bool("classifier", verdict),
		zap.Bool("accepted", s.InputAccepted))

	if !s.InputAccepted {
		v.metrics.recordInput("rejected")
		return s.withError(msgInputRejected)
	}
	v.metrics.recordInput("accepted")
	return s
}

func (v *InputValidation) classify(ctx context.Context, question string) bool {
	if v.classifier == nil {
		return false
	}
	callCtx, cancel := callContext(ctx, v.timeout)
	defer cancel()

	ok, err := v.classifier.IsMathQuestion(callCtx, question)
	if err != nil {
		v.logger.Warn(ctx, "classifier unavailable",
			zap.Error(err),
			zap.Bool("fail_open", v.failOpen))
		return v.failOpen
	}
	return ok
}
