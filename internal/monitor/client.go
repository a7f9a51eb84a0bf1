package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/mathrag/internal/feedback"
)

// Client reads analytics and health from a running mathrag server.
type Client struct {
	baseURL string
	client  *http.Client
}

// Health mirrors the server's /health response.
type Health struct {
	Status            string          `json:"status"`
	Components        map[string]bool `json:"components"`
	KnowledgeBaseSize int             `json:"knowledge_base_size"`
	TotalFeedback     int             `json:"total_feedback"`
}

// Healthy reports whether every component probe passed.
func (h Health) Healthy() bool {
	return h.Status == "healthy"
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Analytics fetches GET /feedback/analytics.
func (c *Client) Analytics(ctx context.Context) (feedback.Analytics, error) {
	var out feedback.Analytics
	if err := c.get(ctx, "/feedback/analytics", &out); err != nil {
		return feedback.Analytics{}, err
	}
	return out, nil
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.get(ctx, "/health", &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status code %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
