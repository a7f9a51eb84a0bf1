package main

import (
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/mathrag/internal/monitor"
)

func newAnalyticsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show feedback analytics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := monitor.NewClient(serverURL).Analytics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}

			fmt.Fprintf(out, "Total feedback: %d\n", a.TotalFeedback)
			fmt.Fprintf(out, "Average rating: %s\n", monitor.FormatRating(a.AverageRating))
			maxCount := 0
			for _, c := range a.RatingDistribution {
				maxCount = max(maxCount, c)
			}
			for r := 5; r >= 1; r-- {
				c := a.RatingDistribution[r]
				fmt.Fprintf(out, "  %d★ %s %d\n", r, monitor.Bar(c, maxCount, 20), c)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func newDashboardCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Live terminal dashboard of feedback and health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := tea.NewProgram(monitor.NewModel(serverURL, interval), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "refresh interval")
	return cmd
}
