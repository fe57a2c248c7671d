// Package search runs web searches that give outline generation current
// material to work from.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/markis/gh-slides/internal/config"
	"github.com/rs/zerolog"
)

const (
	defaultMaxResults = 3
	defaultTimeout    = 15 * time.Second
	maxErrorBody      = 512
)

// ErrNotConfigured is returned when no search API key is set.
var ErrNotConfigured = errors.New("search API key is not configured")

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is the outcome of one search. A fallback response carries no
// results and says why in Message.
type Response struct {
	Query    string   `json:"query"`
	Results  []Result `json:"results"`
	Fallback bool     `json:"fallback"`
	Message  string   `json:"message,omitempty"`
}

// Markdown formats the results as source material. Fallback responses
// produce nothing.
func (r *Response) Markdown() string {
	if r.Fallback || len(r.Results) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Web research: %s\n", r.Query)
	for _, res := range r.Results {
		fmt.Fprintf(&b, "\n### %s\n%s\n\n%s\n", res.Title, res.URL, strings.TrimSpace(res.Content))
	}
	return b.String()
}

type tavilyRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Client searches the web through the Tavily REST API.
type Client struct {
	baseURL    string
	apiKey     string
	keyEnv     string
	depth      string
	maxResults int
	timeout    time.Duration
	logger     zerolog.Logger
}

// New creates a client. The API key is read from the environment variable
// named by cfg.KeyEnv; without it every search falls back.
func New(cfg config.Search, logger zerolog.Logger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyEnv:     cfg.KeyEnv,
		depth:      cfg.Depth,
		maxResults: cfg.MaxResults,
		timeout:    cfg.Timeout,
		logger:     logger.With().Str("component", "search").Logger(),
	}
	if cfg.KeyEnv != "" {
		c.apiKey = os.Getenv(cfg.KeyEnv)
	}
	if c.maxResults <= 0 {
		c.maxResults = defaultMaxResults
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.depth == "" {
		c.depth = "basic"
	}
	return c
}

var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

func getHTTPClient(timeout time.Duration) *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:      10,
			IdleConnTimeout:   90 * time.Second,
			ForceAttemptHTTP2: true,
		}
		transport.DialContext = (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext

		httpClient = &http.Client{Transport: transport}
	})

	clientCopy := *httpClient
	clientCopy.Timeout = timeout
	return &clientCopy
}

// Search runs one query.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	data, err := json.Marshal(tavilyRequest{
		Query:       query,
		SearchDepth: c.depth,
		MaxResults:  c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := getHTTPClient(c.timeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("search failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	results := decoded.Results
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}
	return &Response{Query: query, Results: results}, nil
}

// Research searches for query and never fails: errors turn into a fallback
// response so outline generation can go on without results.
func (c *Client) Research(ctx context.Context, query string) *Response {
	logger := c.logger.With().Str("query", query).Logger()

	resp, err := c.Search(ctx, query)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrNotConfigured) {
			msg = "set " + c.keyEnv + " to enable web search"
		}
		logger.Warn().Err(err).Msg("web search unavailable")
		return &Response{Query: query, Fallback: true, Message: msg}
	}

	logger.Info().Int("results", len(resp.Results)).Msg("web search completed")
	return resp
}
