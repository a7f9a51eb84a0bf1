// Package websearch queries the Tavily search API for supporting material.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

const (
	DefaultEndpoint = "https://api.tavily.com/search"

	defaultMaxResults = 5
	defaultTimeout    = 30 * time.Second
	defaultRateLimit  = 2.0
	defaultBurst      = 2
)

// DefaultDomains restricts results to math reference sites.
var DefaultDomains = []string{"mathway.com", "wolframalpha.com", "khanacademy.org", "symbolab.com"}

// ErrMissingAPIKey is returned when no Tavily key is configured.
var ErrMissingAPIKey = errors.New("tavily api key required")

// Config configures the Tavily client.
type Config struct {
	APIKey         string        `koanf:"-" json:"-"`
	Endpoint       string        `koanf:"endpoint"`
	MaxResults     int           `koanf:"max_results"`
	SearchDepth    string        `koanf:"search_depth"`
	Topic          string        `koanf:"topic"`
	IncludeDomains []string      `koanf:"include_domains"`
	Timeout        time.Duration `koanf:"timeout"`
	RateLimit      float64       `koanf:"rate_limit"`
}

// DefaultConfig returns the Tavily defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		MaxResults:     defaultMaxResults,
		SearchDepth:    "advanced",
		Topic:          "general",
		IncludeDomains: append([]string(nil), DefaultDomains...),
		Timeout:        defaultTimeout,
		RateLimit:      defaultRateLimit,
	}
}

type searchRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	SearchDepth    string   `json:"search_depth"`
	Topic          string   `json:"topic"`
	IncludeAnswer  bool     `json:"include_answer"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Client is a Tavily search client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Tavily client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = def.SearchDepth
	}
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), defaultBurst),
	}, nil
}

// Search implements pipeline.WebSearcher.
func (c *Client) Search(ctx context.Context, query string) ([]pipeline.SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(searchRequest{
		APIKey:         c.cfg.APIKey,
		Query:          query,
		MaxResults:     c.cfg.MaxResults,
		SearchDepth:    c.cfg.SearchDepth,
		Topic:          c.cfg.Topic,
		IncludeAnswer:  true,
		IncludeDomains: c.cfg.IncludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error (%d): %s", resp.StatusCode, truncate(string(data), 200))
	}

	var sr searchResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := make([]pipeline.SearchResult, 0, len(sr.Results))
	for _, r := range sr.Results {
		out = append(out, pipeline.SearchResult{Title: r.Title, Content: r.Content, URL: r.URL})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
