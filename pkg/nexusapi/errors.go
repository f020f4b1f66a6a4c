package nexusapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nexusapi: %s %s: status %d", e.Method, e.Path, e.Status)
}

// UserMessage returns the backend's message or error text, falling back to the
// HTTP status text.
func (e *StatusError) UserMessage() string {
	var body map[string]any
	if json.Unmarshal(e.Body, &body) == nil {
		for _, key := range []string{"message", "error", "detail"} {
			switch v := body[key].(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					return v
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
	}
	if text := http.StatusText(e.Status); text != "" {
		return text
	}
	return e.Error()
}

// Unauthorized reports whether the backend rejected the token.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}
