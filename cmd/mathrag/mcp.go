package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/mcp"
	"github.com/fyrsmithlabs/mathrag/internal/services"
)

// serveMCP serves the MCP tools on stdio. Logs go to stderr because the
// protocol owns stdout.
func serveMCP(ctx context.Context, configPath string) error {
	env, err := bootstrap(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer env.close()
	logger := env.logger

	svc, err := services.New(ctx, env.cfg, logger, services.Options{Telemetry: env.tel})
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer func() { _ = svc.Close() }()

	if n, err := svc.LoadDataset(ctx); err != nil {
		logger.Warn(ctx, "dataset not loaded", zap.Error(err))
	} else {
		logger.Info(ctx, "dataset loaded", zap.Int("problems", n))
	}

	p, err := svc.Pipeline()
	if err != nil {
		return err
	}

	cfg := mcp.DefaultConfig()
	cfg.Version = version
	cfg.Logger = logger
	cfg.Metrics = mcp.NewMetrics(logger)

	fmt.Fprintf(os.Stderr, "mathrag mcp mode started (%d tools)\n", len(mcp.ToolInfos()))
	if err := mcp.NewServer(cfg, p, svc.Store()).Run(ctx); err != nil {
		return err
	}
	logger.Info(context.Background(), "mcp server shutdown complete")
	return nil
}
