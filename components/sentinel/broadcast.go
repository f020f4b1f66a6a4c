package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	subscriberBuffer  = 16
	defaultHeartbeat  = 25 * time.Second
	websocketWriteTTL = 5 * time.Second
)

// BroadcastHook relays panel events to live streams. Each stream sees only its own
// scope unless it subscribed with "".
type BroadcastHook struct {
	mu        sync.RWMutex
	streams   map[uint64]*stream
	seq       uint64
	closed    bool
	heartbeat time.Duration
}

type stream struct {
	scope  string
	events chan PanelEvent
	once   sync.Once
}

func (s *stream) stop() { s.once.Do(func() { close(s.events) }) }

// BroadcastOption tunes a hook.
type BroadcastOption func(*BroadcastHook)

// WithHeartbeat sets how often idle streams are pinged. Zero disables pings.
func WithHeartbeat(every time.Duration) BroadcastOption {
	return func(h *BroadcastHook) { h.heartbeat = every }
}

// NewBroadcastHook creates a hook with a 25s heartbeat.
func NewBroadcastHook(opts ...BroadcastOption) *BroadcastHook {
	h := &BroadcastHook{streams: map[uint64]*stream{}, heartbeat: defaultHeartbeat}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// PanelUpdated implements RefreshHook. A stream whose buffer is full misses the event;
// the next cycle carries fresher data anyway.
func (h *BroadcastHook) PanelUpdated(_ context.Context, event PanelEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.streams {
		if s.scope != "" && s.scope != event.Scope {
			continue
		}
		select {
		case s.events <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a stream. The returned cancel func is idempotent and closes the
// channel. Subscribing to a closed hook yields an already closed channel.
func (h *BroadcastHook) Subscribe(scope string) (<-chan PanelEvent, func()) {
	s := &stream{scope: scope, events: make(chan PanelEvent, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.stop()
		return s.events, func() {}
	}
	h.seq++
	id := h.seq
	h.streams[id] = s
	return s.events, func() {
		h.mu.Lock()
		delete(h.streams, id)
		h.mu.Unlock()
		s.stop()
	}
}

// Subscribers reports the number of live streams.
func (h *BroadcastHook) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// Watching reports whether a stream is subscribed to exactly scope.
func (h *BroadcastHook) Watching(scope string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.streams {
		if s.scope == scope {
			return true
		}
	}
	return false
}

var _ StreamWatcher = (*BroadcastHook)(nil)

// Close ends every stream so long-lived SSE and websocket handlers return on shutdown.
func (h *BroadcastHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, s := range h.streams {
		delete(h.streams, id)
		s.stop()
	}
	return nil
}

func (h *BroadcastHook) ticker() (<-chan time.Time, func()) {
	if h.heartbeat <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(h.heartbeat)
	return t.C, t.Stop
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header (non-browser clients) and
// browser requests whose Origin host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ServeWebSocket upgrades the request and writes each event as a JSON text frame.
// Inbound frames are discarded; a read error ends the stream.
func (h *BroadcastHook) ServeWebSocket(w http.ResponseWriter, r *http.Request, scope string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.Subscribe(scope)
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	tick, stop := h.ticker()
	defer stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case <-tick:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(websocketWriteTTL)); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
					time.Now().Add(websocketWriteTTL))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(websocketWriteTTL))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// ServeSSE streams events as Server-Sent Events named after the event reason, with a
// comment line on every heartbeat.
func (h *BroadcastHook) ServeSSE(w http.ResponseWriter, r *http.Request, scope string) {
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	events, cancel := h.Subscribe(scope)
	defer cancel()

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	w.WriteHeader(http.StatusOK)
	flush()

	tick, stop := h.ticker()
	defer stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event PanelEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Reason, payload)
	return err
}
