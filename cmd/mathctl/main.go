// Package main implements mathctl, the command-line client for mathrag.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the mathrag HTTP server
	serverURL string
	// configPath overrides the config file for commands that run locally
	configPath string

	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mathctl",
		Short: "CLI for the mathrag math tutor",
		Long: `mathctl talks to a running mathrag server and runs the local
maintenance tasks: loading problem sets into the knowledge base and
running the batch-solve worker.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "mathrag server URL")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/mathrag/config.yaml)")

	root.AddCommand(
		newSolveCmd(),
		newIngestCmd(),
		newAnalyticsCmd(),
		newDashboardCmd(),
		newWorkerCmd(),
		newBatchCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mathctl %s (%s)\n", version, gitCommit)
		},
	}
}
