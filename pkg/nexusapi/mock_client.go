package nexusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

// MockData seeds deterministic backend responses for tests or local demos.
type MockData struct {
	// Responses answer GET requests; Actions answer POST requests.
	Responses map[string]json.RawMessage
	Actions   map[string]json.RawMessage
	Failures  map[string]error
	Token     string
	User      json.RawMessage
}

// MockClient implements sentinel.Transport using in-memory fixtures.
type MockClient struct {
	mu    sync.RWMutex
	data  MockData
	calls map[string]int
}

var _ sentinel.Transport = (*MockClient)(nil)

// NewMockClient builds a mock client from the provided fixtures.
func NewMockClient(data MockData) *MockClient {
	if data.Responses == nil {
		data.Responses = map[string]json.RawMessage{}
	}
	if data.Actions == nil {
		data.Actions = map[string]json.RawMessage{}
	}
	if data.Failures == nil {
		data.Failures = map[string]error{}
	}
	return &MockClient{data: data, calls: map[string]int{}}
}

// SetResponse replaces the GET fixture for path.
func (c *MockClient) SetResponse(path string, raw json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Responses[path] = cloneRaw(raw)
	delete(c.data.Failures, path)
}

// SetAction replaces the POST fixture for path.
func (c *MockClient) SetAction(path string, raw json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Actions[path] = cloneRaw(raw)
	delete(c.data.Failures, path)
}

// SetFailure makes every call to path fail with err.
func (c *MockClient) SetFailure(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Failures[path] = err
}

// Calls reports how many requests hit path.
func (c *MockClient) Calls(path string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[path]
}

// Get returns the fixture for path or a 404 StatusError.
func (c *MockClient) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[path]++
	if err := c.authorize(http.MethodGet, path, token); err != nil {
		return nil, err
	}
	return c.lookup(c.data.Responses, http.MethodGet, path)
}

// Post answers login with the configured session and every other path with its
// fixture, defaulting to a bare success envelope.
func (c *MockClient) Post(ctx context.Context, path, token string, _ any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[path]++
	if path == sentinel.PathLogin {
		if err, ok := c.data.Failures[path]; ok {
			return nil, err
		}
		payload, err := json.Marshal(map[string]any{
			"success": true,
			"data": map[string]any{
				"token": c.data.Token,
				"user":  c.data.User,
			},
		})
		return payload, err
	}
	if err := c.authorize(http.MethodPost, path, token); err != nil {
		return nil, err
	}
	if _, ok := c.data.Actions[path]; !ok {
		if err, failed := c.data.Failures[path]; failed {
			return nil, err
		}
		return json.RawMessage(`{"success":true}`), nil
	}
	return c.lookup(c.data.Actions, http.MethodPost, path)
}

func (c *MockClient) authorize(method, path, token string) error {
	if c.data.Token != "" && token != c.data.Token {
		return &StatusError{Method: method, Path: path, Status: http.StatusUnauthorized, Body: []byte(`{"message":"Token invalide"}`)}
	}
	return nil
}

func (c *MockClient) lookup(fixtures map[string]json.RawMessage, method, path string) (json.RawMessage, error) {
	if err, ok := c.data.Failures[path]; ok {
		return nil, err
	}
	raw, ok := fixtures[path]
	if !ok {
		return nil, &StatusError{Method: method, Path: path, Status: http.StatusNotFound}
	}
	return cloneRaw(raw), nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}
