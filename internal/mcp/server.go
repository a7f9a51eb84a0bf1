// Package mcp exposes the math tools, the solving pipeline and the
// knowledge base as an MCP server.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

// Solver runs the full pipeline for one question.
type Solver interface {
	Solve(ctx context.Context, question string) pipeline.Result
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name reported to clients.
	Name    string
	Version string
	Logger  *logging.Logger
	Metrics *Metrics
}

// DefaultConfig returns the standard server identity.
func DefaultConfig() *Config {
	return &Config{
		Name:    "mathrag",
		Version: "1.0.0",
		Logger:  logging.NewNop(),
	}
}

// Server serves the tools over MCP.
type Server struct {
	mcp       *mcp.Server
	solver    Solver
	retriever pipeline.KnowledgeRetriever
	logger    *logging.Logger
	metrics   *Metrics
}

// NewServer registers every tool. solver and retriever are optional; the
// tools that need them report that they are not configured.
func NewServer(cfg *Config, solver Solver, retriever pipeline.KnowledgeRetriever) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		mcp:       mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		solver:    solver,
		retriever: retriever,
		logger:    logger.Named("mcp"),
		metrics:   cfg.Metrics,
	}
	s.registerTools()
	return s
}

// MCP returns the underlying SDK server, for custom transports.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves on stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport", zap.Int("tools", len(toolInfos)))
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
