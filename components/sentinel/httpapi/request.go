package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
	"github.com/goliatone/go-sentinel/components/sentinel/commands"
)

type sessionKey struct{}

// WithSession stores the session that passed the gate.
func WithSession(ctx context.Context, session sentinel.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (sentinel.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(sentinel.Session)
	return session, ok
}

// ScopeFromRequest resolves the viewer scope from the session header, the query
// string, then the session cookie.
func ScopeFromRequest(r *http.Request) string {
	if scope := strings.TrimSpace(r.Header.Get(sentinel.SessionHeader)); scope != "" {
		return scope
	}
	if scope := strings.TrimSpace(r.URL.Query().Get(sentinel.SessionQuery)); scope != "" {
		return scope
	}
	if cookie, err := r.Cookie(sentinel.SessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// ViewerFromRequest builds the viewer for a request.
func ViewerFromRequest(r *http.Request) sentinel.Viewer {
	viewer := sentinel.Viewer{Scope: ScopeFromRequest(r)}
	width := r.URL.Query().Get("width")
	if width == "" {
		width = r.Header.Get(sentinel.WidthHeader)
	}
	if width == "" {
		if cookie, err := r.Cookie(sentinel.WidthCookie); err == nil {
			width = cookie.Value
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(width)); err == nil && n > 0 {
		viewer.Width = n
	}
	if locale := strings.TrimSpace(r.URL.Query().Get("locale")); locale != "" {
		viewer.Locale = strings.ToLower(locale)
	} else {
		viewer.Locale = ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	}
	return viewer
}

// ParseAcceptLanguage returns the first language tag of the header.
func ParseAcceptLanguage(header string) string {
	for _, token := range strings.Split(header, ",") {
		token = strings.TrimSpace(token)
		if idx := strings.Index(token, ";"); idx >= 0 {
			token = token[:idx]
		}
		if token != "" {
			return strings.ToLower(token)
		}
	}
	return ""
}

// WantsHTML reports whether the client navigates rather than calls the API.
func WantsHTML(accept string) bool {
	return strings.Contains(strings.ToLower(accept), "text/html")
}

// StatusFor maps command and service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, commands.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, new(*sentinel.ValidationError)):
		return http.StatusBadRequest
	case errors.Is(err, sentinel.ErrUnknownPanel), errors.Is(err, sentinel.ErrPanelNotMounted):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage prefers the operator-facing message of backend errors.
func ErrorMessage(err error) string {
	var um sentinel.UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil || status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": ErrorMessage(err)})
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(commands.ErrInvalidInput, err)
	}
	return nil
}
