// Mathrag serves the math-question RAG pipeline.
//
// The default mode loads the JEE problem set into the knowledge base and
// serves the HTTP API. The mcp subcommand exposes the same pipeline and
// math tools to an MCP client over stdio.
//
// Configuration comes from ~/.config/mathrag/config.yaml and MATHRAG_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Serve HTTP on the configured port
//	mathrag
//
//	# Serve MCP on stdio
//	mathrag mcp
//
//	# Override a setting
//	MATHRAG_SERVER_PORT=9000 GROQ_API_KEY=gsk_xxx mathrag
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/config"
	httpserver "github.com/fyrsmithlabs/mathrag/internal/http"
	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/services"
	"github.com/fyrsmithlabs/mathrag/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.config/mathrag/config.yaml)")
	flag.Parse()
	args := flag.Args()

	run := serve
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			return
		case "mcp":
			run = serveMCP
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  mathrag           Serve the HTTP API\n")
			fmt.Fprintf(os.Stderr, "  mathrag mcp       Serve MCP tools on stdio\n")
			fmt.Fprintf(os.Stderr, "  mathrag version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("mathrag by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// runtimeEnv is the process-wide setup shared by both modes.
type runtimeEnv struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
}

// bootstrap loads configuration, then telemetry, then a logger bridged to
// the telemetry log provider.
func bootstrap(ctx context.Context, configPath string, stdio bool) (*runtimeEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Server.Version = version
	cfg.Observability.ServiceVersion = version
	if stdio {
		cfg.Logging.Output.Stderr = true
	}

	tel, err := telemetry.New(ctx, &cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}
	return &runtimeEnv{cfg: cfg, logger: logger, tel: tel}, nil
}

func (e *runtimeEnv) close() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Observability.Shutdown.Timeout)
	defer cancel()
	if err := e.tel.Shutdown(ctx); err != nil {
		e.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, configPath string) error {
	env, err := bootstrap(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer env.close()
	cfg, logger := env.cfg, env.logger

	logger.Info(ctx, "starting mathrag",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("knowledge_backend", cfg.Knowledge.Backend),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := services.New(ctx, cfg, logger, services.Options{Registerer: reg, Telemetry: env.tel})
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn(context.Background(), "closing services", zap.Error(err))
		}
	}()

	// an empty knowledge base still serves; retrieval just finds nothing
	if n, err := svc.LoadDataset(ctx); err != nil {
		logger.Warn(ctx, "dataset not loaded", zap.String("path", cfg.Dataset.Path), zap.Error(err))
	} else {
		logger.Info(ctx, "dataset loaded", zap.Int("problems", n))
	}
	if err := svc.WatchDataset(ctx); err != nil {
		logger.Warn(ctx, "dataset watcher not started", zap.Error(err))
	}

	p, err := svc.Pipeline()
	if err != nil {
		return err
	}
	srv, err := httpserver.NewServer(httpserver.Deps{
		Solver:   p,
		Feedback: svc.Feedback(),
		Stats:    svc.Catalog(),
		Probes:   svc.Probes(),
		Gatherer: reg,
		Metrics:  httpserver.NewHTTPMetrics(logger),
	}, logger, &cfg.Server.Config)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}
