package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/mathrag/internal/http"
)

var httpClient = &http.Client{Timeout: 5 * time.Minute}

func newSolveCmd() *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   "solve <question>",
		Short: "Solve a math question",
		Long: `Send a question to the mathrag server and print the step-by-step solution.

Examples:
  # Solve a question
  mathctl solve "Find the derivative of x^3 + 2x"

  # Follow progress through each stage
  mathctl solve --stream "Evaluate the integral of sin(x) from 0 to pi"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if stream {
				return solveStream(cmd.OutOrStdout(), question)
			}
			return solve(cmd.OutOrStdout(), question)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "stream stage progress")
	return cmd
}

func postSolve(path, question string) (*http.Response, error) {
	body, err := json.Marshal(httpserver.SolveRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := httpClient.Post(serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func solve(out io.Writer, question string) error {
	resp, err := postSolve("/solve", question)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var res httpserver.SolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintln(out, res.Solution)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "confidence: %.1f  attempts: %d  sources: %s  time: %.2fs\n",
		res.Confidence, res.Attempts, strings.Join(res.Sources, ", "), res.ProcessingTime)
	fmt.Fprintf(out, "session: %s\n", res.SessionID)
	if res.Error != "" {
		fmt.Fprintf(out, "warning: %s\n", res.Error)
	}
	return nil
}

func solveStream(out io.Writer, question string) error {
	resp, err := postSolve("/solve/stream", question)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev httpserver.StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		switch ev.Type {
		case "status":
			fmt.Fprintf(out, "» %s\n", ev.Message)
		case "solution":
			fmt.Fprintln(out)
			fmt.Fprintln(out, ev.Solution)
			fmt.Fprintf(out, "\nsession: %s\n", ev.SessionID)
		case "error":
			return fmt.Errorf("solve failed: %s", ev.Message)
		case "complete":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}
