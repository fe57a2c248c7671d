package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/markis/gh-slides/internal/config"
	"github.com/markis/gh-slides/internal/stream"
	"github.com/rs/zerolog"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one streamed chat completion.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a client for the configured provider.
func New(cfg config.Provider, logger zerolog.Logger) (*Client, error) {
	apiKey, err := ResolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With().Str("component", "client").Logger(),
	}, nil
}

// defaultHeaders returns the default headers for the API requests.
func defaultHeaders() map[string]string {
	return map[string]string{
		"HTTP-Referer": "https://github.com/markis/gh-slides",
		"X-Title":      "gh-slides",
	}
}

// prepareInput builds the chat completions payload.
func prepareInput(req Request) map[string]any {
	// Reasoning models reject sampling parameters
	isReasoningModel := strings.HasPrefix(req.Model, "o1") || strings.HasPrefix(req.Model, "o3") ||
		strings.Contains(req.Model, "/o1") || strings.Contains(req.Model, "/o3")

	// Build base request payload with initial capacity
	payload := make(map[string]any, 5)
	payload["messages"] = req.Messages
	payload["model"] = req.Model
	payload["stream"] = true

	if !isReasoningModel {
		payload["n"] = 1
		payload["top_p"] = 1
		if req.Temperature > 0 {
			payload["temperature"] = req.Temperature
		}
	}

	return payload
}

// getHTTPClient returns a singleton HTTP client
var (
	httpClient     *http.Client
	httpClientOnce sync.Once
	defaultTimeout = 5 * time.Minute
)

func getHTTPClient(ctx context.Context, timeout time.Duration) *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:       100,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: false,
			DisableKeepAlives:  false,
			ForceAttemptHTTP2:  true,
		}

		// Add context-aware dial options
		transport.DialContext = (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext

		httpClient = &http.Client{
			Transport: transport,
		}
	})

	clientCopy := *httpClient
	switch deadline, ok := ctx.Deadline(); {
	case ok:
		clientCopy.Timeout = time.Until(deadline)
	case timeout > 0:
		clientCopy.Timeout = timeout
	default:
		clientCopy.Timeout = defaultTimeout
	}
	return &clientCopy
}

// Stream starts a streamed chat completion. The returned channel is closed
// when the response ends; stream failures arrive as chunks carrying Error.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan stream.Chunk, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	data, err := json.Marshal(prepareInput(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set default headers
	for k, v := range defaultHeaders() {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Msg("starting completion")

	resp, err := getHTTPClient(ctx, c.timeout).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close response body")
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	parser := stream.NewParser(ctx)
	go parser.Process(resp.Body)
	return parser.Chunks(), nil
}
