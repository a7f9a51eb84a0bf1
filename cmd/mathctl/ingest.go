package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/config"
	"github.com/fyrsmithlabs/mathrag/internal/dataset"
	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/services"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [file]",
		Short: "Load a problem set into the knowledge base",
		Long: `Load a JEE-style problem set (JSON array or JSON lines) into the configured
knowledge store. Only mathematics problems are kept. Without a file argument
the configured dataset path is used.

Examples:
  mathctl ingest data/jee_bench.json
  MATHRAG_KNOWLEDGE_BACKEND=qdrant mathctl ingest`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, logger, err := loadLocal()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			path := cfg.Dataset.Path
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no dataset file given and dataset.path is not configured")
			}

			n, err := ingest(ctx, cfg, logger, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d problems from %s\n", n, path)
			return nil
		},
	}
}

func ingest(ctx context.Context, cfg *config.Config, logger *logging.Logger, path string) (int, error) {
	problems, err := dataset.LoadFile(path)
	if err != nil {
		return 0, err
	}
	svc, err := services.New(ctx, cfg, logger, services.Options{StoreOnly: true})
	if err != nil {
		return 0, err
	}
	defer func() { _ = svc.Close() }()

	n, err := svc.Ingest(ctx, problems)
	if err != nil {
		logger.Error(ctx, "ingest stopped early", zap.Int("ingested", n), zap.Error(err))
		return n, err
	}
	return n, nil
}

// loadLocal loads configuration and a console logger for commands that
// run against local resources instead of the server.
func loadLocal() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Logging.Format = "console"
	cfg.Logging.Output.OTEL = false
	cfg.Logging.Output.Stdout = true
	cfg.Logging.Output.Stderr = true
	logger, err := logging.NewLogger(&cfg.Logging, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, logger, nil
}
