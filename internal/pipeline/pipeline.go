package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
)

// Dependencies are the collaborators consumed by the stages. Only Generator
// is required for useful output; every other field may be nil.
type Dependencies struct {
	Classifier Classifier
	Retriever  KnowledgeRetriever
	Searcher   WebSearcher
	Generator  Generator
	Formatter  ConstrainedGenerator
	Feedback   FeedbackSink
}

// Result is the outcome of one Solve call.
type Result struct {
	State
	SessionID      string        `json:"session_id"`
	Duration       time.Duration `json:"duration"`
	FirstErrorKind ErrorKind     `json:"first_error_kind,omitempty"`

	// Err describes the first failure, nil on a clean run.
	Err *StageError `json:"-"`
}

// Progress is reported before and after each stage.
type Progress struct {
	SessionID string
	Stage     StageName
	Done      bool
	State     State
}

// ProgressFunc receives progress events. It runs on the solving goroutine.
type ProgressFunc func(Progress)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig overrides DefaultConfig. An invalid config is rejected with a
// warning and the defaults stay in effect; ConfigErr reports why.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) {
		if err := cfg.Validate(); err != nil {
			p.cfgErr = fmt.Errorf("invalid pipeline config: %w", err)
			return
		}
		p.cfg = cfg
		p.cfgErr = nil
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer sets the tracer used for solve and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// Pipeline runs questions through the stages in order. It is safe for
// concurrent use; each Solve owns its State.
type Pipeline struct {
	cfg     Config
	logger  *logging.Logger
	metrics *Metrics
	tracer  trace.Tracer
	stages  []Stage
	cfgErr  error

	mu        sync.RWMutex
	listeners []ProgressFunc
}

// New assembles a pipeline from its collaborators.
func New(deps Dependencies, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    DefaultConfig(),
		logger: logging.NewNop(),
		tracer: otel.Tracer("github.com/fyrsmithlabs/mathrag/internal/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	log := p.logger.Named("pipeline")
	if p.cfgErr != nil {
		log.Warn(context.Background(), "using default pipeline config", zap.Error(p.cfgErr))
	}
	p.stages = []Stage{
		NewInputValidation(deps.Classifier, p.cfg, log, p.metrics),
		NewRetrieval(deps.Retriever, p.cfg, log),
		NewAugmentation(deps.Searcher, p.cfg, log, p.metrics),
		NewGeneration(deps.Generator, p.cfg, log),
		NewEnforcement(deps.Formatter, p.cfg, log, p.metrics),
		NewFeedbackRecording(deps.Feedback, p.cfg, log),
	}
	return p
}

// Config returns the active configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// ConfigErr returns the validation error of a rejected WithConfig override.
func (p *Pipeline) ConfigErr() error {
	return p.cfgErr
}

// OnProgress registers a listener notified for every solve.
func (p *Pipeline) OnProgress(cb ProgressFunc) {
	if cb == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, cb)
	p.mu.Unlock()
}

type progressCtxKey struct{}

// WithProgress attaches a listener to a single solve.
func WithProgress(ctx context.Context, cb ProgressFunc) context.Context {
	return context.WithValue(ctx, progressCtxKey{}, cb)
}

// ProgressFromContext returns the listener attached by WithProgress, or nil.
func ProgressFromContext(ctx context.Context) ProgressFunc {
	cb, _ := ctx.Value(progressCtxKey{}).(ProgressFunc)
	return cb
}

func (p *Pipeline) notify(ctx context.Context, ev Progress) {
	if cb := ProgressFromContext(ctx); cb != nil {
		cb(ev)
	}
	p.mu.RLock()
	listeners := p.listeners
	p.mu.RUnlock()
	for _, cb := range listeners {
		cb(ev)
	}
}

// Solve runs question through every stage and always returns a result.
func (p *Pipeline) Solve(ctx context.Context, question string) (res Result) {
	start := time.Now()

	sessionID := logging.SessionIDFromContext(ctx)
	if sessionID == "" {
		sessionID = uuid.NewString()
		ctx = logging.WithSessionID(ctx, sessionID)
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Solve",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(ctx, "pipeline panicked", zap.Any("panic", r))
			err := fmt.Errorf("%v", r)
			res = Result{
				State: State{
					Question:     question,
					ErrorMessage: fmt.Sprintf(msgOrchestratorFault, r),
				},
				SessionID:      sessionID,
				FirstErrorKind: KindOrchestratorFault,
				Err:            &StageError{Kind: KindOrchestratorFault, Err: err},
			}
			span.SetStatus(codes.Error, err.Error())
		}
		res.Duration = time.Since(start)
		p.metrics.recordSolve(res.FirstErrorKind)
	}()

	s := NewState(question)
	var firstErr *StageError

	for _, stage := range p.stages {
		p.notify(ctx, Progress{SessionID: sessionID, Stage: stage.Name(), State: s})
		before := s.ErrorMessage

		stageStart := time.Now()
		stageCtx, stageSpan := p.tracer.Start(ctx, "pipeline."+string(stage.Name()))
		s = stage.Run(stageCtx, s)
		stageSpan.End()
		p.metrics.observeStage(stage.Name(), time.Since(stageStart))

		if before == "" && s.ErrorMessage != "" && firstErr == nil {
			firstErr = &StageError{
				Stage: stage.Name(),
				Kind:  kindFor(stage.Name()),
				Err:   errors.New(s.ErrorMessage),
			}
		}
		p.notify(ctx, Progress{SessionID: sessionID, Stage: stage.Name(), Done: true, State: s})
	}

	res = Result{State: s, SessionID: sessionID, Err: firstErr}
	if firstErr != nil {
		res.FirstErrorKind = firstErr.Kind
		span.SetAttributes(attribute.String("error.kind", string(firstErr.Kind)))
	}
	span.SetAttributes(
		attribute.Bool("input.accepted", s.InputAccepted),
		attribute.Bool("output.accepted", s.OutputAccepted),
		attribute.Int("attempts", s.AttemptsUsed))

	p.logger.Info(ctx, "solve finished",
		zap.Bool("input_accepted", s.InputAccepted),
		zap.Bool("output_accepted", s.OutputAccepted),
		zap.Int("attempts", s.AttemptsUsed),
		zap.String("first_error_kind", string(res.FirstErrorKind)))
	return res
}

// SolveAsync runs Solve on a new goroutine. The channel receives exactly
// one result and is then closed.
func (p *Pipeline) SolveAsync(ctx context.Context, question string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- p.Solve(ctx, question)
	}()
	return ch
}

func kindFor(stage StageName) ErrorKind {
	switch stage {
	case StageInputValidation:
		return KindInputRejected
	case StageRetrieval, StageAugmentation:
		return KindCollaboratorFailure
	case StageGeneration:
		return KindGenerationFailure
	case StageEnforcement:
		return KindEnforcementExhausted
	default:
		return KindOrchestratorFault
	}
}
