package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick delivers the current time to every live ticker.
func (c *fakeClock) Tick() {
	c.mu.Lock()
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()
	for _, t := range tickers {
		t.fire(now)
	}
}

func (c *fakeClock) liveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTicker) fire(now time.Time) {
	if t.isStopped() {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
}

type fakeResponse struct {
	body string
	err  error
}

type postCall struct {
	path  string
	token string
	body  any
}

// fakeTransport replays queued responses per path. The last queued response repeats.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	gets      map[string]int
	tokens    []string
	posts     []postCall
	block     chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: map[string][]fakeResponse{},
		gets:      map[string]int{},
	}
}

func (f *fakeTransport) on(path string, responses ...fakeResponse) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = append(f.responses[path], responses...)
	return f
}

func (f *fakeTransport) next(path string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.responses[path]
	if len(queue) == 0 {
		return nil, errors.New("no fixture for " + path)
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[path] = queue[1:]
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return json.RawMessage(resp.body), nil
}

func (f *fakeTransport) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	f.mu.Lock()
	f.gets[path]++
	f.tokens = append(f.tokens, token)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.next(path)
}

func (f *fakeTransport) Post(ctx context.Context, path, token string, body any) (json.RawMessage, error) {
	f.mu.Lock()
	f.posts = append(f.posts, postCall{path: path, token: token, body: body})
	f.mu.Unlock()
	return f.next(path)
}

func (f *fakeTransport) getCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[path]
}

func (f *fakeTransport) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

type recordingHook struct {
	mu     sync.Mutex
	events []PanelEvent
}

func (h *recordingHook) PanelUpdated(_ context.Context, event PanelEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHook) reasons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Reason)
	}
	return out
}

type recordingTelemetry struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingTelemetry) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func seedSession(store SettingsStore, scope, role string) {
	settings := NewSettings(store, scope)
	_ = settings.SaveSession(context.Background(), Session{
		Token: "token-" + scope,
		User:  SessionUser{ID: "1", Role: role, Nom: "Ada", Email: "ada@nexus.test"},
	})
}

const dashboardFixture = `{"summary":{"totalTenants":12,"totalCalls":340,"totalCost":58.03},"alerts":{"active":2,"recent":[]}}`
