package sentinel

import (
	"context"
	"encoding/json"
	"time"
)

// SettingsStore is the durable key/value store behind a viewer's "local storage".
// Implementations must be safe for concurrent use; writes are last-writer-wins.
type SettingsStore interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	Set(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope, key string) error
}

// Transport performs authenticated calls against the NEXUS backend and returns the raw
// JSON body. Non-2xx responses must be reported as errors.
type Transport interface {
	Get(ctx context.Context, path, token string) (json.RawMessage, error)
	Post(ctx context.Context, path, token string, body any) (json.RawMessage, error)
}

// RefreshHook notifies transports (SSE/WebSocket) about panel changes.
type RefreshHook interface {
	PanelUpdated(ctx context.Context, event PanelEvent) error
}

// Clock abstracts time so pollers and animators can be driven by tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker used by the refresh loops.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Transports resolve the viewer scope from these request locations, in order.
const (
	SessionHeader = "X-Sentinel-Session"
	SessionQuery  = "session"
	SessionCookie = "sentinel_session"
)

// WidthHeader carries the viewport width used for the mobile sidebar rules.
const WidthHeader = "X-Sentinel-Width"

// WidthCookie is written by the dashboard page so plain navigations carry the
// viewport width too.
const WidthCookie = "sentinel_width"

// Viewer identifies the browser session a panel is mounted for.
type Viewer struct {
	Scope  string `json:"scope"`
	Width  int    `json:"width"`
	Locale string `json:"locale,omitempty"`
}

// PanelEvent describes changes that transports might care about.
type PanelEvent struct {
	Scope  string    `json:"scope"`
	Code   string    `json:"code"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// BannerKind distinguishes action outcomes.
type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner is the inline outcome of a user-initiated action. It stays until replaced.
type Banner struct {
	Kind    BannerKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return realClock{} }

func normalizeClock(c Clock) Clock {
	if c == nil {
		return realClock{}
	}
	return c
}

type noopRefreshHook struct{}

func (noopRefreshHook) PanelUpdated(context.Context, PanelEvent) error { return nil }
