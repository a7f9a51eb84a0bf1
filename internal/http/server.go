// Package http serves the solving pipeline, feedback and knowledge base
// statistics over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/feedback"
	"github.com/fyrsmithlabs/mathrag/internal/knowledge"
	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/mcp"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

// Solver runs the pipeline for one question.
type Solver interface {
	Solve(ctx context.Context, question string) pipeline.Result
}

// FeedbackStore records and summarizes feedback.
type FeedbackStore interface {
	pipeline.FeedbackSink
	Analytics() feedback.Analytics
}

// StatsSource reports knowledge base statistics.
type StatsSource interface {
	Stats() knowledge.Stats
}

// Probe checks one component for /health. A nil Check means the
// component is present and needs no probing.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	CORSOrigins  []string      `koanf:"cors_origins"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
	Version      string        `koanf:"-"`
}

// DefaultConfig returns the local development defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8000,
		CORSOrigins:  []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		ProbeTimeout: 3 * time.Second,
		Version:      "1.0.0",
	}
}

// Deps are the services behind the endpoints. Only Solver is required.
type Deps struct {
	Solver   Solver
	Feedback FeedbackStore
	Stats    StatsSource
	Probes   []Probe
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Metrics  *HTTPMetrics
}

// Server provides the HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *logging.Logger
	config *Config
}

// NewServer creates the server and registers its routes.
func NewServer(deps Deps, logger *logging.Logger, cfg *Config) (*Server, error) {
	if deps.Solver == nil {
		return nil, errors.New("solver is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger.Named("http"),
		config: cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID},
	}))
	e.Use(s.requestContext)
	if deps.Metrics != nil {
		e.Use(deps.Metrics.MetricsMiddleware())
	}

	s.registerRoutes()
	return s, nil
}

// requestContext puts the request ID and logger on the request context and
// logs the request when it completes.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		ctx = logging.WithLogger(ctx, s.logger)
		c.SetRequest(req.WithContext(ctx))

		err := next(c)

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
			status = he.Code
		}
		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/solve", s.handleSolve)
	s.echo.POST("/solve/stream", s.handleSolveStream)
	s.echo.POST("/feedback", s.handleFeedback)
	s.echo.GET("/feedback/analytics", s.handleAnalytics)
	s.echo.GET("/knowledge-base/stats", s.handleStats)
	s.echo.GET("/mcp/tools", s.handleTools)
	s.echo.GET("/system/components", s.handleComponents)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

func toolsResponse() ToolsResponse {
	tools := mcp.ToolInfos()
	return ToolsResponse{Available: true, ToolCount: len(tools), Tools: tools}
}
