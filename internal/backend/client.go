// Package backend is a typed client for the DFIR platform REST API.
package backend

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

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/iyulab/huntdesk/internal/config"
)

// ErrUnavailable marks failures reaching the backend or reading its reply.
var ErrUnavailable = errors.New("unavailable")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	workers     int
	enrichments *lru.Cache[string, *Enrichment]
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// WithEnrichWorkers bounds EnrichAll concurrency.
func WithEnrichWorkers(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.workers = n
		}
	}
}

// WithEnrichCacheSize sets the number of cached enrichment results.
func WithEnrichCacheSize(n int) Option {
	return func(cl *Client) {
		if n <= 0 {
			return
		}
		if c, err := lru.New[string, *Enrichment](n); err == nil {
			cl.enrichments = c
		}
	}
}

// New creates a Client for baseURL (e.g. https://dfir.example.com/api).
func New(baseURL string, opts ...Option) *Client {
	cache, _ := lru.New[string, *Enrichment](1024)
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  http.DefaultClient,
		workers:     4,
		enrichments: cache,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a Client from the [backend] config section.
func NewFromConfig(cfg config.BackendConfig) *Client {
	hc := &http.Client{}
	if cfg.Timeout > 0 {
		hc.Timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return New(cfg.URL,
		WithHTTPClient(hc),
		WithToken(cfg.Token),
		WithEnrichWorkers(cfg.EnrichWorkers),
		WithEnrichCacheSize(cfg.EnrichCacheSize),
	)
}

// doJSON sends body (if non-nil) as JSON and decodes the response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// send executes req with auth and decodes a JSON response into out.
func (c *Client) send(req *http.Request, out any) error {
	start := time.Now()
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("backend request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("backend: %s %s: %w: %w", req.Method, req.URL.Path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read response: %w: %w", ErrUnavailable, err)
	}
	slog.Debug("backend request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method: req.Method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
			Body:   truncateAPIError(respBody),
		}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("backend: parse response: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// truncateAPIError limits error bodies kept in APIError to 512 bytes.
func truncateAPIError(body []byte) string {
	const maxLen = 512
	if len(body) <= maxLen {
		return string(body)
	}
	return string(body[:maxLen]) + "... (truncated)"
}
