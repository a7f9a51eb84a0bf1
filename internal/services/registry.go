package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/config"
	"github.com/fyrsmithlabs/mathrag/internal/dataset"
	"github.com/fyrsmithlabs/mathrag/internal/embeddings"
	"github.com/fyrsmithlabs/mathrag/internal/feedback"
	"github.com/fyrsmithlabs/mathrag/internal/guardrails"
	httpserver "github.com/fyrsmithlabs/mathrag/internal/http"
	"github.com/fyrsmithlabs/mathrag/internal/knowledge"
	"github.com/fyrsmithlabs/mathrag/internal/llm"
	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
	"github.com/fyrsmithlabs/mathrag/internal/redact"
	"github.com/fyrsmithlabs/mathrag/internal/telemetry"
	"github.com/fyrsmithlabs/mathrag/internal/websearch"
)

// ErrNoPipeline is returned by Pipeline when the registry was built
// without one.
var ErrNoPipeline = errors.New("pipeline not configured")

// Options controls what New builds.
type Options struct {
	// Registerer receives pipeline metrics. Nil disables them.
	Registerer prometheus.Registerer

	// Telemetry supplies the tracer and a health probe. Optional.
	Telemetry *telemetry.Telemetry

	// StoreOnly skips the LLM clients, web search and pipeline, for
	// commands that only touch the knowledge base.
	StoreOnly bool

	// Store replaces the configured knowledge backend. Used by tests.
	Store knowledge.Store
}

// Registry holds the assembled services.
type Registry struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry

	embedder embeddings.Provider
	store    knowledge.Store
	catalog  *knowledge.Catalog
	redactor *redact.Redactor
	feedback *feedback.Store
	nc       *nats.Conn
	searcher pipeline.WebSearcher
	pipeline *pipeline.Pipeline
	watcher  *dataset.Watcher
}

// New builds every service cfg enables. On error, anything already
// opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts Options) (_ *Registry, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		cfg:     cfg,
		logger:  logger.Named("services"),
		tel:     opts.Telemetry,
		catalog: knowledge.NewCatalog(),
	}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	if r.redactor, err = newRedactor(cfg.Redact); err != nil {
		return nil, err
	}

	if opts.Store != nil {
		r.store = opts.Store
	} else if r.store, err = r.openStore(ctx); err != nil {
		return nil, err
	}

	r.feedback = feedback.NewStore(feedback.WithRedactor(r.redactor), feedback.WithLogger(logger))
	if opts.StoreOnly {
		return r, nil
	}

	var sink pipeline.FeedbackSink = r.feedback
	if cfg.Feedback.NATS.URL != "" {
		pub, err := r.connectNATS(ctx)
		if err != nil {
			return nil, err
		}
		sink = feedback.MultiSink{r.feedback, pub}
	}

	client, err := llm.NewClient(cfg.LLM.Client(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	classifier, err := llm.NewClassifier(client, guardrails.DefaultInputDirectives())
	if err != nil {
		return nil, fmt.Errorf("creating classifier: %w", err)
	}

	if cfg.WebSearch.APIKey.IsSet() {
		ws, err := websearch.NewClient(cfg.WebSearch.Client())
		if err != nil {
			return nil, fmt.Errorf("creating web search client: %w", err)
		}
		r.searcher = ws
	} else {
		r.logger.Info(ctx, "web search disabled, no api key configured")
	}

	popts := []pipeline.Option{
		pipeline.WithConfig(cfg.Pipeline),
		pipeline.WithLogger(logger),
	}
	if opts.Registerer != nil {
		popts = append(popts, pipeline.WithMetrics(pipeline.NewMetrics(opts.Registerer)))
	}
	if r.tel != nil {
		popts = append(popts, pipeline.WithTracer(r.tel.Tracer("github.com/fyrsmithlabs/mathrag/internal/pipeline")))
	}

	r.pipeline = pipeline.New(pipeline.Dependencies{
		Classifier: classifier,
		Retriever:  r.store,
		Searcher:   r.searcher,
		Generator:  llm.NewSolutionGenerator(client),
		Formatter:  llm.NewGuardedGenerator(client),
		Feedback:   sink,
	}, popts...)

	r.logger.Info(ctx, "services initialized",
		zap.String("knowledge_backend", cfg.Knowledge.Backend),
		zap.Bool("web_search", r.searcher != nil),
		zap.Bool("nats", r.nc != nil),
		zap.Bool("redaction", r.redactor != nil),
	)
	return r, nil
}

func newRedactor(cfg config.RedactConfig) (*redact.Redactor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var allow *redact.Allowlist
	if cfg.AllowlistPath != "" {
		a, err := redact.LoadAllowlist(cfg.AllowlistPath)
		if err != nil {
			return nil, fmt.Errorf("loading redaction allowlist: %w", err)
		}
		allow = a
	}
	r, err := redact.New(allow)
	if err != nil {
		return nil, fmt.Errorf("creating redactor: %w", err)
	}
	return r, nil
}

func (r *Registry) openStore(ctx context.Context) (knowledge.Store, error) {
	provider, err := embeddings.NewProvider(r.cfg.Embeddings.Provider())
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	r.embedder = provider

	switch r.cfg.Knowledge.Backend {
	case config.BackendQdrant:
		s, err := knowledge.NewQdrantStore(ctx, r.cfg.Knowledge.Qdrant.Store(), provider, r.logger)
		if err != nil {
			return nil, fmt.Errorf("opening qdrant store: %w", err)
		}
		return s, nil
	default:
		s, err := knowledge.NewChromemStore(r.cfg.Knowledge.Chromem, provider, r.logger)
		if err != nil {
			return nil, fmt.Errorf("opening chromem store: %w", err)
		}
		return s, nil
	}
}

func (r *Registry) connectNATS(ctx context.Context) (*feedback.NATSPublisher, error) {
	nc := r.cfg.Feedback.NATS
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	if nc.Name != "" {
		opts = append(opts, nats.Name(nc.Name))
	}
	if nc.Timeout > 0 {
		opts = append(opts, nats.Timeout(nc.Timeout.Duration()))
	}

	conn, err := nats.Connect(nc.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", nc.URL, err)
	}
	r.nc = conn
	r.logger.Info(ctx, "connected to nats", zap.String("url", nc.URL))

	pub, err := feedback.NewNATSPublisher(conn, r.redactor)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// LoadDataset ingests the configured dataset file. It returns zero when no
// dataset is configured.
func (r *Registry) LoadDataset(ctx context.Context) (int, error) {
	path := r.cfg.Dataset.Path
	if path == "" {
		return 0, nil
	}
	problems, err := dataset.LoadFile(path)
	if err != nil {
		return 0, err
	}
	return r.Ingest(ctx, problems)
}

// Ingest adds problems to the store and catalog.
func (r *Registry) Ingest(ctx context.Context, problems []knowledge.Problem) (int, error) {
	return knowledge.Ingest(ctx, r.store, r.catalog, problems, r.cfg.Knowledge.IngestBatchSize, r.logger)
}

// WatchDataset reloads the dataset on change until ctx is done or Close
// is called. It is a no-op unless the dataset is configured for watching.
func (r *Registry) WatchDataset(ctx context.Context) error {
	if r.cfg.Dataset.Path == "" || !r.cfg.Dataset.Watch {
		return nil
	}
	w, err := dataset.NewWatcher(r.cfg.Dataset.Path, func(ctx context.Context, problems []knowledge.Problem) {
		n, err := r.Ingest(ctx, problems)
		if err != nil {
			r.logger.Error(ctx, "dataset reload failed", zap.Int("ingested", n), zap.Error(err))
		}
	}, r.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	r.watcher = w
	return nil
}

// Pipeline returns the solving pipeline.
func (r *Registry) Pipeline() (*pipeline.Pipeline, error) {
	if r.pipeline == nil {
		return nil, ErrNoPipeline
	}
	return r.pipeline, nil
}

// Store returns the knowledge store.
func (r *Registry) Store() knowledge.Store { return r.store }

// Catalog returns the catalog of ingested problems.
func (r *Registry) Catalog() *knowledge.Catalog { return r.catalog }

// Feedback returns the in-memory feedback store.
func (r *Registry) Feedback() *feedback.Store { return r.feedback }

// Probes returns the component checks served on /health.
func (r *Registry) Probes() []httpserver.Probe {
	probes := []httpserver.Probe{
		{Name: "vector_store", Check: func(ctx context.Context) error {
			_, err := r.store.Count(ctx)
			return err
		}},
		{Name: "feedback"},
	}
	if r.pipeline != nil {
		probes = append(probes, httpserver.Probe{Name: "pipeline"})
	}
	if r.searcher != nil {
		probes = append(probes, httpserver.Probe{Name: "web_search"})
	}
	if r.nc != nil {
		probes = append(probes, httpserver.Probe{Name: "nats", Check: func(context.Context) error {
			if !r.nc.IsConnected() {
				return fmt.Errorf("nats status %s", r.nc.Status())
			}
			return nil
		}})
	}
	if r.tel != nil && r.tel.IsEnabled() {
		probes = append(probes, httpserver.Probe{Name: "telemetry", Check: r.tel.Check})
	}
	return probes
}

// Close stops the watcher and releases connections.
func (r *Registry) Close() error {
	var errs []error
	if r.watcher != nil {
		r.watcher.Stop()
	}
	if r.nc != nil {
		if err := r.nc.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("draining nats: %w", err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	if r.embedder != nil {
		if err := r.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedder: %w", err))
		}
	}
	return errors.Join(errs...)
}
