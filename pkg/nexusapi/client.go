package nexusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

// DefaultBaseURL is the production NEXUS API.
const DefaultBaseURL = "https://api.nexus-sentinel.app"

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	// Timeout bounds each request. Zero leaves requests unbounded.
	Timeout time.Duration
	// RequestsPerSecond paces outbound calls across all panels. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// Tracing wraps the transport with OpenTelemetry spans.
	Tracing    bool
	HTTPClient *http.Client
}

// Client talks to the NEXUS backend and implements sentinel.Transport.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

var _ sentinel.Transport = (*Client)(nil)

// NewClient builds a client for the configured backend.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("nexusapi: base url %q must be http(s)", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Tracing {
		transport := httpClient.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		traced := *httpClient
		traced.Transport = otelhttp.NewTransport(transport)
		httpClient = &traced
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{baseURL: base, client: httpClient, limiter: limiter}, nil
}

// BaseURL reports the backend the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Close drops idle keep-alive connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// Get fetches path with the bearer token when one is given.
func (c *Client) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, token, nil)
}

// Post sends body as JSON to path.
func (c *Client) Post(ctx context.Context, path, token string, body any) (json.RawMessage, error) {
	if body == nil {
		body = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, path, token, body)
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("nexusapi: wait for rate limit: %w", err)
		}
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("nexusapi: encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("nexusapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nexusapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nexusapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: raw}
	}
	return json.RawMessage(raw), nil
}
