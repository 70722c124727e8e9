// Package client is a Go client for the vecsearchd HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	httpapi "github.com/fyrsmithlabs/vecsearch/internal/http"
	"github.com/fyrsmithlabs/vecsearch/internal/semantic"
	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

const (
	DefaultBaseURL     = "http://localhost:8080"
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 200 * time.Millisecond
	maxErrorBody       = 4096
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// MaxRetries bounds retries of 429, 502-504 and transport errors.
	MaxRetries  int
	BaseBackoff time.Duration

	// RateLimit caps outgoing requests per second. Zero disables.
	RateLimit float64
	Burst     int
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// retryableError marks failures worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Client talks to a vecsearchd server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
}

// New creates a client. An empty BaseURL targets DefaultBaseURL.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("base URL must start with http:// or https://, got %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     limiter,
		maxRetries:  retries,
		baseBackoff: backoff,
	}, nil
}

// BaseURL returns the server URL the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Health checks the server's liveness.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp httpapi.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Embed returns the server's embedding of text.
func (c *Client) Embed(ctx context.Context, text string) (vectorstore.Vector, error) {
	var resp httpapi.EmbedResponse
	if err := c.do(ctx, http.MethodPost, "/embed", httpapi.EmbedRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

// Index stores text under id.
func (c *Client) Index(ctx context.Context, id, text string) (int, error) {
	var resp httpapi.IndexResponse
	if err := c.do(ctx, http.MethodPost, "/index", httpapi.IndexRequest{ID: id, Text: text}, &resp); err != nil {
		return 0, err
	}
	return resp.Indexed, nil
}

// IndexBulk stores every item and returns the store size afterwards.
func (c *Client) IndexBulk(ctx context.Context, items []semantic.Item) (int, error) {
	if items == nil {
		items = []semantic.Item{}
	}
	var resp httpapi.IndexResponse
	if err := c.do(ctx, http.MethodPost, "/index/bulk", httpapi.BulkIndexRequest{Items: items}, &resp); err != nil {
		return 0, err
	}
	return resp.Indexed, nil
}

// Search ranks stored entries against query. A nil topK uses the server
// default.
func (c *Client) Search(ctx context.Context, query string, topK *int) ([]vectorstore.SearchResult, error) {
	var resp httpapi.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/search", httpapi.SearchRequest{Query: query, TopK: topK}, &resp); err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// Save asks the server to write its snapshot.
func (c *Client) Save(ctx context.Context) (httpapi.PersistResponse, error) {
	var resp httpapi.PersistResponse
	err := c.do(ctx, http.MethodPost, "/persist/save", nil, &resp)
	return resp, err
}

// Load asks the server to replace its contents from the snapshot. The
// outcome is in the response status; transport failures are errors.
func (c *Client) Load(ctx context.Context) (httpapi.PersistResponse, error) {
	var resp httpapi.PersistResponse
	err := c.do(ctx, http.MethodPost, "/persist/load", nil, &resp)
	return resp, err
}

// Stats reports store size and snapshot location.
func (c *Client) Stats(ctx context.Context) (semantic.Stats, error) {
	var resp semantic.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &resp)
	return resp, err
}

// do sends a request with rate limiting and retries, decoding a 2xx body
// into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = b
	}

	requestID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		err := c.attempt(ctx, method, path, requestID, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) attempt(ctx context.Context, method, path, requestID string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retryableError{err: fmt.Errorf("request to %s failed: %w", path, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp)
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &retryableError{err: apiErr}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeAPIError pulls a message out of echo's {"message": ...} or the
// persistence {"status": ..., "error": ...} error bodies.
func decodeAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
