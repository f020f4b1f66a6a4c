package sentinel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastHookFiltersByScope(t *testing.T) {
	hook := NewBroadcastHook()
	mine, cancelMine := hook.Subscribe("a")
	all, cancelAll := hook.Subscribe("")
	defer cancelAll()

	require.NoError(t, hook.PanelUpdated(context.Background(), PanelEvent{Scope: "b", Code: PanelStatus, Reason: "cycle"}))
	require.NoError(t, hook.PanelUpdated(context.Background(), PanelEvent{Scope: "a", Code: PanelStatus, Reason: "cycle"}))

	event := <-mine
	assert.Equal(t, "a", event.Scope)
	assert.Equal(t, "b", (<-all).Scope)
	assert.Equal(t, "a", (<-all).Scope)

	assert.Equal(t, 2, hook.Subscribers())
	cancelMine()
	cancelMine()
	_, open := <-mine
	assert.False(t, open)
	assert.Equal(t, 1, hook.Subscribers())
}

func TestBroadcastHookServeWebSocket(t *testing.T) {
	hook := NewBroadcastHook()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hook.ServeWebSocket(w, r, "ws")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hook.Subscribers() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, hook.PanelUpdated(context.Background(), PanelEvent{Scope: "ws", Code: PanelBackups, Reason: "banner"}))

	var event PanelEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, PanelBackups, event.Code)
	assert.Equal(t, "banner", event.Reason)
}

func TestBroadcastHookServeSSE(t *testing.T) {
	hook := NewBroadcastHook()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		hook.ServeSSE(rec, req, "sse")
		close(done)
	}()
	require.Eventually(t, func() bool { return hook.Subscribers() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, hook.PanelUpdated(context.Background(), PanelEvent{Scope: "sse", Code: PanelCache, Reason: "cycle"}))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: cycle\n")
	assert.Contains(t, body, `data: {"scope":"sse","code":"optimization.cache","reason":"cycle"`)
	assert.Equal(t, 0, hook.Subscribers())
}

func TestBroadcastHookCloseEndsStreams(t *testing.T) {
	hook := NewBroadcastHook(WithHeartbeat(10 * time.Millisecond))
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		hook.ServeSSE(rec, req, "")
		close(done)
	}()
	require.Eventually(t, func() bool { return hook.Subscribers() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, hook.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after Close")
	}
	assert.Contains(t, rec.Body.String(), ": ping")

	events, cancel := hook.Subscribe("late")
	cancel()
	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, 0, hook.Subscribers())
}

func TestBroadcastHookWebSocketRejectsForeignOrigin(t *testing.T) {
	hook := NewBroadcastHook()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hook.ServeWebSocket(w, r, "ws")
	}))
	defer server.Close()
	endpoint := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws"

	_, resp, err := websocket.DefaultDialer.Dial(endpoint, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hook.Subscribers())

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, http.Header{"Origin": {server.URL}})
	require.NoError(t, err)
	conn.Close()
}
