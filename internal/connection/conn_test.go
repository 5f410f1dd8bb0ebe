package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/deckdrill/internal/protocol"
)

// fakeHost is a websocket server that records received frames and lets the
// test push events to the plugin.
type fakeHost struct {
	srv      *httptest.Server
	received chan []byte
	conns    chan *websocket.Conn
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	h := &fakeHost{
		received: make(chan []byte, 64),
		conns:    make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- ws
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			h.received <- data
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHost) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *fakeHost) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-h.received:
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message from plugin")
		return nil
	}
}

func dial(t *testing.T) (*Conn, *fakeHost, *websocket.Conn) {
	t.Helper()
	h := newFakeHost(t)
	c, err := DialURL(context.Background(), h.url())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	var server *websocket.Conn
	select {
	case server = <-h.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("host did not accept")
	}
	return c, h, server
}

func TestRegisterAndCommands(t *testing.T) {
	c, h, _ := dial(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "registerPlugin", "plugin-uuid"))
	msg := h.next(t)
	assert.Equal(t, "registerPlugin", msg["event"])
	assert.Equal(t, "plugin-uuid", msg["uuid"])

	require.NoError(t, c.SwitchToProfile(ctx, "plugin-uuid", "dev-1", "Drill"))
	msg = h.next(t)
	assert.Equal(t, "switchToProfile", msg["event"])
	assert.Equal(t, "plugin-uuid", msg["context"])
	assert.Equal(t, "dev-1", msg["device"])
	assert.Equal(t, map[string]any{"profile": "Drill"}, msg["payload"])

	require.NoError(t, c.SwitchToProfile(ctx, "plugin-uuid", "dev-1", ""))
	msg = h.next(t)
	assert.Equal(t, map[string]any{}, msg["payload"])

	require.NoError(t, c.SetTitle(ctx, "ctx-1", "hello"))
	msg = h.next(t)
	assert.Equal(t, "setTitle", msg["event"])
	assert.Equal(t, "hello", msg["payload"].(map[string]any)["title"])

	require.NoError(t, c.ShowOk(ctx, "ctx-1"))
	assert.Equal(t, "showOk", h.next(t)["event"])
}

func TestCancelledWriteIsDropped(t *testing.T) {
	c, h, _ := dial(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.SetImage(ctx, "ctx-1", "img"), context.Canceled)

	require.NoError(t, c.ShowAlert(context.Background(), "ctx-2"))
	msg := h.next(t)
	assert.Equal(t, "showAlert", msg["event"], "cancelled write must not reach the host")
}

func TestDispatchInOrder(t *testing.T) {
	c, _, server := dial(t)

	got := make(chan string, 16)
	c.OnWillAppear(func(ev protocol.AppearanceEvent) { got <- "appear:" + ev.Context })
	c.OnKeyUp(func(ev protocol.KeyEvent) { got <- "up:" + ev.Context })
	c.OnKeyDown(func(ev protocol.KeyEvent) { got <- "down:" + ev.Context })
	c.OnDeviceDidConnect(func(ev protocol.DeviceEvent) { got <- "device:" + ev.Device })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	frames := []string{
		`{"event":"deviceDidConnect","device":"dev-1","deviceInfo":{"name":"Mini","type":1,"size":{"columns":3,"rows":2}}}`,
		`{"event":"willAppear","action":"a","context":"c1","device":"dev-1","payload":{"coordinates":{"column":0,"row":0}}}`,
		`{"event":"somethingNew","context":"c1"}`,
		`{"event":"keyDown","action":"a","context":"c1","device":"dev-1","payload":{"coordinates":{"column":0,"row":0}}}`,
		`{"event":"keyUp","action":"a","context":"c1","device":"dev-1","payload":{"coordinates":{"column":0,"row":0}}}`,
	}
	for _, f := range frames {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	want := []string{"device:dev-1", "appear:c1", "down:c1", "up:c1"}
	for _, w := range want {
		select {
		case g := <-got:
			assert.Equal(t, w, g)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing %s", w)
		}
	}

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	<-c.Done()
	assert.ErrorIs(t, c.SetTitle(context.Background(), "c1", "x"), ErrClosed)
}

func TestUnsubscribeInsideHandler(t *testing.T) {
	var h handlers[int]
	var calls []string

	var unsubB func()
	unsubA := h.add(func(int) {
		calls = append(calls, "a")
		unsubB()
	})
	unsubB = h.add(func(int) { calls = append(calls, "b") })

	h.dispatch(1)
	assert.Equal(t, []string{"a"}, calls)
	assert.Equal(t, 1, h.len())

	unsubA()
	unsubA()
	unsubB()
	assert.Equal(t, 0, h.len())
	h.dispatch(2)
	assert.Equal(t, []string{"a"}, calls)
}

func TestRunReturnsOnHostClose(t *testing.T) {
	c, _, server := dial(t)

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(context.Background()) }()

	require.NoError(t, server.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
