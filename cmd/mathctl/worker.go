package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/services"
	"github.com/fyrsmithlabs/mathrag/internal/workflows"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal batch-solve worker",
		Long: `Run a Temporal worker that executes BatchSolveWorkflow on the configured
task queue. Each activity runs one question through the local pipeline.

Examples:
  MATHRAG_TEMPORAL_HOST_PORT=localhost:7233 GROQ_API_KEY=gsk_xxx mathctl worker`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, logger, err := loadLocal()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info(ctx, "batch-solve worker starting",
				zap.String("temporal_host", cfg.Temporal.HostPort),
				zap.String("task_queue", cfg.Temporal.TaskQueue))

			svc, err := services.New(ctx, cfg, logger, services.Options{})
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

			c, err := workflows.Dial(workflows.ClientOptions{
				HostPort:  cfg.Temporal.HostPort,
				Namespace: cfg.Temporal.Namespace,
			})
			if err != nil {
				return fmt.Errorf("unable to create Temporal client: %w", err)
			}
			defer c.Close()

			metrics, err := workflows.NewMetrics()
			if err != nil {
				return fmt.Errorf("creating workflow metrics: %w", err)
			}

			w := workflows.NewWorker(c, cfg.Temporal.TaskQueue, &workflows.Activities{
				Solver:  p,
				Logger:  logger,
				Metrics: metrics,
			})

			if err := w.Start(); err != nil {
				return fmt.Errorf("unable to start worker: %w", err)
			}
			defer w.Stop()

			logger.Info(ctx, "worker started, waiting for batch workflows")
			<-ctx.Done()
			logger.Info(ctx, "shutting down worker")
			return nil
		},
	}
}

func newBatchCmd() *cobra.Command {
	var parallelism int
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Solve every question in a file through the batch worker",
		Long: `Start a BatchSolveWorkflow with one question per non-empty line of file
(use - for stdin) and wait for the outcome summary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			questions, err := readQuestions(args[0])
			if err != nil {
				return err
			}

			cfg, logger, err := loadLocal()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			c, err := workflows.Dial(workflows.ClientOptions{
				HostPort:  cfg.Temporal.HostPort,
				Namespace: cfg.Temporal.Namespace,
			})
			if err != nil {
				return fmt.Errorf("unable to create Temporal client: %w", err)
			}
			defer c.Close()

			ctx := cmd.Context()
			run, err := workflows.StartBatch(ctx, c, cfg.Temporal.TaskQueue, workflows.BatchSolveInput{
				Questions:   questions,
				Parallelism: parallelism,
			})
			if err != nil {
				return err
			}
			logger.Info(ctx, "batch started", zap.String("workflow_id", run.GetID()), zap.Int("questions", len(questions)))

			var res workflows.BatchSolveResult
			if err := run.Get(ctx, &res); err != nil {
				return fmt.Errorf("batch failed: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, o := range res.Outcomes {
				fmt.Fprintf(out, "[%d] %-8s attempts=%d  %s\n", o.Index, o.Outcome, o.Attempts, o.Question)
			}
			fmt.Fprintf(out, "\naccepted=%d fallback=%d rejected=%d failed=%d\n",
				res.Accepted, res.Fallback, res.Rejected, res.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&parallelism, "parallelism", workflows.DefaultParallelism, "questions solved concurrently")
	return cmd
}

func readQuestions(path string) ([]string, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
	}

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" {
			questions = append(questions, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions in %s", path)
	}
	return questions, nil
}
