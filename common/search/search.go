package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable marks transport-level search failures: timeouts, connection
// errors, rate limiting, upstream 5xx. Callers degrade to empty evidence
// instead of failing the whole verification.
var ErrUnavailable = errors.New("evidence search unavailable")

// Client runs web searches for claim evidence.
type Client interface {
	Search(ctx context.Context, query string) ([]Source, error)
}

// Source is one piece of web evidence returned for a claim.
type Source struct {
	Title     string
	URL       string
	Snippet   string
	Relevance float64 // 0..1 upstream relevance score for the query
}

// Config holds Tavily search client configuration.
type Config struct {
	APIKey      string
	BaseURL     string        // Optional: custom API endpoint
	MaxResults  int           // Results requested per query, default 10
	SearchDepth string        // "basic" or "advanced", default "advanced"
	Timeout     time.Duration // Per-call HTTP timeout, default 30s
}

type client struct {
	http        *http.Client
	apiKey      string
	baseURL     string
	maxResults  int
	searchDepth string
}

func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	searchDepth := cfg.SearchDepth
	if searchDepth == "" {
		searchDepth = "advanced"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &client{
		http:        &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		maxResults:  maxResults,
		searchDepth: searchDepth,
	}, nil
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func (c *client) Search(ctx context.Context, query string) ([]Source, error) {
	body, err := json.Marshal(searchRequest{
		Query:       query,
		MaxResults:  c.maxResults,
		SearchDepth: c.searchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// Caller cancellation is not a search outage
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		detail := string(raw)
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return nil, fmt.Errorf("search request rejected: status %d: %s", resp.StatusCode, detail)
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	sources := make([]Source, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		sources = append(sources, Source{
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Content,
			Relevance: r.Score,
		})
	}

	slog.DebugContext(ctx, "evidence search completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"results", len(sources))

	return sources, nil
}
