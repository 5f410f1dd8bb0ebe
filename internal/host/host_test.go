package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/deckdrill/internal/config"
	"github.com/muurk/deckdrill/internal/drilldown"
	"github.com/muurk/deckdrill/internal/protocol"
)

const testInfo = `{
	"application": {"platform": "mac", "version": "6.4.0"},
	"plugin": {"uuid": "com.muurk.deckdrill", "version": "1.0.0"},
	"devices": [{"id": "dev-1", "name": "Mini", "type": 1, "size": {"columns": 3, "rows": 2}}]
}`

func TestValidate(t *testing.T) {
	valid := RegistrationParameters{Port: 28196, PluginUUID: "u", RegisterEvent: "registerPlugin", Info: testInfo}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*RegistrationParameters)
		want   string
	}{
		{"no port", func(p *RegistrationParameters) { p.Port = 0 }, "-port"},
		{"port out of range", func(p *RegistrationParameters) { p.Port = 70000 }, "-port"},
		{"no uuid", func(p *RegistrationParameters) { p.PluginUUID = "" }, "-pluginUUID"},
		{"no event", func(p *RegistrationParameters) { p.RegisterEvent = "" }, "-registerEvent"},
		{"no info", func(p *RegistrationParameters) { p.Info = "" }, "-info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			assert.ErrorIs(t, err, ErrMissingParameter)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	bad := valid
	bad.Info = "{not json"
	err := bad.Validate()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingParameter)
}

func TestArgs(t *testing.T) {
	p := RegistrationParameters{Port: 1, PluginUUID: "u", RegisterEvent: "e", Info: "{}"}
	assert.Equal(t, []string{"-port", "1", "-pluginUUID", "u", "-registerEvent", "e", "-info", "{}"}, p.Args())
}

func TestNormalizeArgs(t *testing.T) {
	in := []string{"-port", "1", "-pluginUUID=u", "--log-level", "debug", "-v", "-info", "{}"}
	assert.Equal(t,
		[]string{"--port", "1", "--pluginUUID=u", "--log-level", "debug", "-v", "--info", "{}"},
		NormalizeArgs(in))

	// Values that look like flags are left alone
	assert.Equal(t, []string{"--registerEvent", "-x"}, NormalizeArgs([]string{"-registerEvent", "-x"}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	noop := func(ActionContext) Action { return BaseAction{} }

	require.NoError(t, r.Register("b", noop))
	require.NoError(t, r.Register("a", noop))
	assert.Error(t, r.Register("a", noop))
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("c", nil))
	assert.Panics(t, func() { r.MustRegister("a", noop) })

	_, ok := r.Lookup("a")
	assert.True(t, ok)
	_, ok = r.Lookup("zzz")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Actions())
}

// appServer plays the host application for one plugin connection.
type appServer struct {
	srv      *httptest.Server
	conn     chan *websocket.Conn
	received chan map[string]any
}

func newAppServer(t *testing.T) *appServer {
	t.Helper()
	a := &appServer{
		conn:     make(chan *websocket.Conn, 1),
		received: make(chan map[string]any, 256),
	}
	upgrader := websocket.Upgrader{}
	a.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		a.conn <- ws
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if json.Unmarshal(data, &m) == nil {
				a.received <- m
			}
		}
	}))
	t.Cleanup(a.srv.Close)
	return a
}

func (a *appServer) port() int {
	return a.srv.Listener.Addr().(*net.TCPAddr).Port
}

// expect reads plugin messages until one matches.
func (a *appServer) expect(t *testing.T, desc string, match func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case m := <-a.received:
			if match(m) {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
			return nil
		}
	}
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func appearance(event, action, ctx string, col, row int) protocol.AppearanceEvent {
	return protocol.AppearanceEvent{
		Event: event, Action: action, Context: ctx, Device: "dev-1",
		Payload: protocol.AppearancePayload{Coordinates: protocol.Coordinates{Column: col, Row: row}},
	}
}

func keyUp(action, ctx string, col, row int) protocol.KeyEvent {
	return protocol.KeyEvent{
		Event: protocol.EventKeyUp, Action: action, Context: ctx, Device: "dev-1",
		Payload: protocol.KeyPayload{Coordinates: protocol.Coordinates{Column: col, Row: row}},
	}
}

func event(name string) func(map[string]any) bool {
	return func(m map[string]any) bool { return m["event"] == name }
}

func TestPickerDrillDown(t *testing.T) {
	app := newAppServer(t)

	cfg := config.NewRegistry()
	cfg.Pickers[PickerAction] = &config.Picker{
		Items:  []string{"a", "b", "c", "d", "e", "f", "g"},
		ShowOk: true,
	}

	results := make(chan drilldown.Result[string], 1)
	registry := NewRegistry()
	registry.MustRegister(PickerAction, newPickerFactory(func(r drilldown.Result[string], err error) {
		assert.NoError(t, err)
		results <- r
	}))

	h, err := New(RegistrationParameters{
		Port:          app.port(),
		PluginUUID:    "plugin-uuid",
		RegisterEvent: "registerPlugin",
		Info:          testInfo,
	}, registry, cfg)
	require.NoError(t, err)

	d, ok := h.Device("dev-1")
	require.True(t, ok)
	assert.Equal(t, protocol.DeviceTypeStreamDeckMini, d.Type)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()

	ws := <-app.conn
	reg := app.expect(t, "registration", event("registerPlugin"))
	assert.Equal(t, "plugin-uuid", reg["uuid"])
	<-h.Ready()

	send(t, ws, appearance(protocol.EventWillAppear, PickerAction, "picker-1", 0, 0))
	require.Eventually(t, func() bool { return h.instanceCount() == 1 }, time.Second, 5*time.Millisecond)

	send(t, ws, keyUp(PickerAction, "picker-1", 0, 0))
	sw := app.expect(t, "switch to drill-down", event(protocol.CommandSwitchToProfile))
	assert.Equal(t, "plugin-uuid", sw["context"])
	assert.Equal(t, "dev-1", sw["device"])
	assert.Equal(t, "DrillDownMini", sw["payload"].(map[string]any)["profile"])

	// The host replaces the picker key with a full grid of item keys
	send(t, ws, appearance(protocol.EventWillDisappear, PickerAction, "picker-1", 0, 0))
	for row := 0; row < 2; row++ {
		for col := 0; col < 3; col++ {
			send(t, ws, appearance(protocol.EventWillAppear, ItemAction, fmt.Sprintf("item-%d-%d", col, row), col, row))
		}
	}

	app.expect(t, "first item title", func(m map[string]any) bool {
		return m["event"] == protocol.CommandSetTitle && m["context"] == "item-2-0" &&
			m["payload"].(map[string]any)["title"] == "b"
	})

	send(t, ws, keyUp(ItemAction, "item-2-0", 2, 0))

	restore := app.expect(t, "restore", event(protocol.CommandSwitchToProfile))
	assert.Equal(t, map[string]any{}, restore["payload"])

	title := app.expect(t, "picker title", event(protocol.CommandSetTitle))
	assert.Equal(t, "picker-1", title["context"])
	assert.Equal(t, "b", title["payload"].(map[string]any)["title"])
	app.expect(t, "ok", func(m map[string]any) bool {
		return m["event"] == protocol.CommandShowOk && m["context"] == "picker-1"
	})

	select {
	case r := <-results:
		assert.Equal(t, drilldown.Result[string]{Selected: true, Value: "b"}, r)
	case <-time.After(3 * time.Second):
		t.Fatal("picker did not finish")
	}

	// The picker key comes back with its chosen title
	send(t, ws, appearance(protocol.EventWillAppear, PickerAction, "picker-1", 0, 0))
	again := app.expect(t, "restored title", event(protocol.CommandSetTitle))
	assert.Equal(t, "picker-1", again["context"])
	assert.Equal(t, "b", again["payload"].(map[string]any)["title"])

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestPickerWithoutItemsAlerts(t *testing.T) {
	app := newAppServer(t)
	registry := NewRegistry()
	registry.MustRegister(PickerAction, NewPickerFactory())

	h, err := New(RegistrationParameters{
		Port:          app.port(),
		PluginUUID:    "plugin-uuid",
		RegisterEvent: "registerPlugin",
		Info:          testInfo,
	}, registry, config.NewRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	ws := <-app.conn
	app.expect(t, "registration", event("registerPlugin"))
	<-h.Ready()

	send(t, ws, appearance(protocol.EventWillAppear, PickerAction, "picker-1", 0, 0))
	send(t, ws, keyUp(PickerAction, "picker-1", 0, 0))

	alert := app.expect(t, "alert", event(protocol.CommandShowAlert))
	assert.Equal(t, "picker-1", alert["context"])
}

func TestDeviceTracking(t *testing.T) {
	app := newAppServer(t)
	registry := NewRegistry()
	registry.MustRegister(PickerAction, NewPickerFactory())

	h, err := New(RegistrationParameters{
		Port:          app.port(),
		PluginUUID:    "plugin-uuid",
		RegisterEvent: "registerPlugin",
		Info:          testInfo,
	}, registry, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	ws := <-app.conn
	app.expect(t, "registration", event("registerPlugin"))
	<-h.Ready()

	send(t, ws, protocol.DeviceEvent{
		Event:  protocol.EventDeviceDidConnect,
		Device: "dev-2",
		DeviceInfo: protocol.DeviceInfo{
			Name: "XL",
			Type: protocol.DeviceTypeStreamDeckXL,
			Size: protocol.Size{Columns: 8, Rows: 4},
		},
	})
	require.Eventually(t, func() bool { return len(h.Devices()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "dev-1", h.Devices()[0].ID)

	send(t, ws, appearance(protocol.EventWillAppear, PickerAction, "picker-1", 0, 0))
	require.Eventually(t, func() bool { return h.instanceCount() == 1 }, time.Second, 5*time.Millisecond)

	send(t, ws, protocol.DeviceEvent{Event: protocol.EventDeviceDidDisconnect, Device: "dev-1"})
	require.Eventually(t, func() bool { return len(h.Devices()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.instanceCount())

	_, ok := h.Device("dev-1")
	assert.False(t, ok)
}
