package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/deckdrill/internal/config"
	"github.com/muurk/deckdrill/internal/host"
	"github.com/muurk/deckdrill/internal/images"
	"github.com/muurk/deckdrill/internal/protocol"
)

const (
	pickerAction = "com.example.picker"
	itemAction   = "com.example.item"
)

func miniDevice() protocol.Device {
	return protocol.Device{
		ID: "sim-1",
		DeviceInfo: protocol.DeviceInfo{
			Name: "Mini",
			Type: protocol.DeviceTypeStreamDeckMini,
			Size: protocol.Size{Columns: 3, Rows: 2},
		},
	}
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{Device: miniDevice(), PickerAction: pickerAction, ItemAction: itemAction})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, s.Start(ctx))
	return s
}

type plugin struct {
	t  *testing.T
	ws *websocket.Conn
}

func connect(t *testing.T, s *Server) *plugin {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d", s.Port()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &plugin{t: t, ws: ws}
}

func (p *plugin) send(v any) {
	p.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(p.t, err)
	require.NoError(p.t, p.ws.WriteMessage(websocket.TextMessage, data))
}

func (p *plugin) next() any {
	p.t.Helper()
	require.NoError(p.t, p.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := p.ws.ReadMessage()
	require.NoError(p.t, err)
	msg, err := protocol.Decode(data)
	require.NoError(p.t, err)
	return msg
}

func (p *plugin) appearances(n int) []*protocol.AppearanceEvent {
	p.t.Helper()
	out := make([]*protocol.AppearanceEvent, 0, n)
	for range n {
		ev, ok := p.next().(*protocol.AppearanceEvent)
		require.True(p.t, ok, "expected an appearance event")
		out = append(out, ev)
	}
	return out
}

func (p *plugin) register() *protocol.AppearanceEvent {
	p.t.Helper()
	p.send(protocol.BuildRegister("", "plugin-1"))

	dev, ok := p.next().(*protocol.DeviceEvent)
	require.True(p.t, ok)
	assert.Equal(p.t, protocol.EventDeviceDidConnect, dev.Event)
	assert.Equal(p.t, "sim-1", dev.Device)
	assert.Equal(p.t, 3, dev.DeviceInfo.Size.Columns)

	launcher := p.appearances(1)[0]
	assert.Equal(p.t, protocol.EventWillAppear, launcher.Event)
	assert.Equal(p.t, pickerAction, launcher.Action)
	assert.Equal(p.t, protocol.Coordinates{}, launcher.Payload.Coordinates)
	return launcher
}

func TestNewRejectsDeviceWithoutKeys(t *testing.T) {
	_, err := New(Config{Device: protocol.Device{ID: "x"}})
	assert.Error(t, err)
}

func TestRegisterLaysOutDefaultProfile(t *testing.T) {
	s := startServer(t)
	p := connect(t, s)
	p.register()

	select {
	case <-s.Registered():
	case <-time.After(time.Second):
		t.Fatal("not registered")
	}
	snap := s.Snapshot()
	assert.True(t, snap.Registered)
	assert.Equal(t, "plugin-1", snap.PluginUUID)
	assert.Equal(t, "", snap.Profile)
	assert.Len(t, snap.Keys, 6)
}

func TestProfileSwitchRoundTrip(t *testing.T) {
	s := startServer(t)
	p := connect(t, s)
	launcher := p.register()

	p.send(protocol.BuildSwitchToProfile("plugin-1", "sim-1", "DrillDownMini"))

	gone := p.appearances(1)[0]
	assert.Equal(t, protocol.EventWillDisappear, gone.Event)
	assert.Equal(t, launcher.Context, gone.Context)

	items := p.appearances(6)
	seen := map[string]bool{}
	for i, ev := range items {
		assert.Equal(t, protocol.EventWillAppear, ev.Event)
		assert.Equal(t, itemAction, ev.Action)
		assert.Equal(t, protocol.Coordinates{Column: i % 3, Row: i / 3}, ev.Payload.Coordinates)
		assert.NotEqual(t, launcher.Context, ev.Context)
		seen[ev.Context] = true
	}
	assert.Len(t, seen, 6, "item contexts must be unique")

	p.send(protocol.BuildSetImage(items[0].Context, images.Close))
	p.send(protocol.BuildSetTitle(items[1].Context, "alpha"))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Keys[0].Image == images.Close && snap.Keys[1].Title == "alpha"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "DrillDownMini", s.Snapshot().Profile)

	p.send(protocol.BuildSwitchToProfile("plugin-1", "sim-1", ""))
	for _, ev := range p.appearances(6) {
		assert.Equal(t, protocol.EventWillDisappear, ev.Event)
	}
	back := p.appearances(1)[0]
	assert.Equal(t, protocol.EventWillAppear, back.Event)
	assert.Equal(t, launcher.Context, back.Context)
}

func TestSwitchFromOtherContextIgnored(t *testing.T) {
	s := startServer(t)
	p := connect(t, s)
	p.register()

	p.send(protocol.BuildSwitchToProfile("someone-else", "sim-1", "DrillDownMini"))
	p.send(protocol.BuildSetTitle("unknown", "x"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "", s.Snapshot().Profile)
}

func TestPressSendsKeyDownAndUp(t *testing.T) {
	s := startServer(t)
	assert.ErrorIs(t, s.Press(0, 0), ErrNoPlugin)

	p := connect(t, s)
	launcher := p.register()

	require.NoError(t, s.Press(0, 0))
	down, ok := p.next().(*protocol.KeyEvent)
	require.True(t, ok)
	up, ok := p.next().(*protocol.KeyEvent)
	require.True(t, ok)
	assert.Equal(t, protocol.EventKeyDown, down.Event)
	assert.Equal(t, protocol.EventKeyUp, up.Event)
	assert.Equal(t, launcher.Context, up.Context)
	assert.Equal(t, pickerAction, up.Action)

	assert.Error(t, s.Press(3, 0))
	assert.Error(t, s.Press(0, -1))

	// Keys without an action are silent
	require.NoError(t, s.Press(1, 0))
}

func TestFlashClearedOnPress(t *testing.T) {
	s := startServer(t)
	p := connect(t, s)
	launcher := p.register()

	p.send(protocol.BuildShowAlert(launcher.Context))
	require.Eventually(t, func() bool { return s.Snapshot().Keys[0].Flash == "alert" }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Press(0, 0))
	assert.Empty(t, s.Snapshot().Keys[0].Flash)
}

func TestSecondPluginRejected(t *testing.T) {
	s := startServer(t)
	p := connect(t, s)
	p.register()

	other := connect(t, s)
	require.NoError(t, other.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := other.ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestRegistrationParameters(t *testing.T) {
	s := startServer(t)
	params, err := s.RegistrationParameters("")
	require.NoError(t, err)
	require.NoError(t, params.Validate())
	assert.Equal(t, s.Port(), params.Port)
	assert.Equal(t, DefaultPluginUUID, params.PluginUUID)

	info, err := params.RegistrationInfo()
	require.NoError(t, err)
	require.Len(t, info.Devices, 1)
	assert.Equal(t, miniDevice(), info.Devices[0])
}

// TestPickerOnSimulator runs the real plugin host against the simulator.
func TestPickerOnSimulator(t *testing.T) {
	s, err := New(Config{Device: miniDevice(), PickerAction: host.PickerAction, ItemAction: host.ItemAction})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	cfg := config.NewRegistry()
	cfg.Pickers[host.PickerAction] = &config.Picker{
		Items:  []string{"a", "b", "c", "d", "e", "f", "g"},
		ShowOk: true,
	}
	registry := host.NewRegistry()
	registry.MustRegister(host.PickerAction, host.NewPickerFactory())

	params, err := s.RegistrationParameters("")
	require.NoError(t, err)
	h, err := host.New(params, registry, cfg)
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()
	<-h.Ready()
	require.Eventually(t, func() bool { return s.Snapshot().Registered }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Press(0, 0))

	// Close in slot 0, three items, then the navigation pair
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Profile == "DrillDownMini" &&
			snap.Keys[0].Image == images.Close &&
			snap.Keys[1].Title == "a" && snap.Keys[2].Title == "b" && snap.Keys[3].Title == "c" &&
			snap.Keys[5].Image == images.Right
	}, 3*time.Second, 5*time.Millisecond)

	// Next page shows the remaining items
	require.NoError(t, s.Press(2, 1))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Keys[1].Title == "d" && snap.Keys[4].Image == images.Left
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Press(2, 0))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Profile == "" && snap.Keys[0].Title == "e" && snap.Keys[0].Flash == "ok"
	}, 3*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-runErr:
	case <-time.After(3 * time.Second):
		t.Fatal("host did not stop")
	}
}

func TestRenderGrid(t *testing.T) {
	snap := Snapshot{
		Device: miniDevice(),
		Keys: []Key{
			{Action: itemAction, Image: images.Close},
			{Action: itemAction, Title: "alpha"},
			{Action: itemAction},
			{},
			{Action: itemAction, Image: images.Left},
			{Action: itemAction, Image: images.Right},
		},
	}
	out := RenderGrid(snap, 0, 0)
	for _, want := range []string{"✕", "alpha", "◀", "▶"} {
		assert.Contains(t, out, want)
	}
	assert.Empty(t, RenderGrid(Snapshot{}, 0, 0))
}

func TestModelCursorWraps(t *testing.T) {
	s := startServer(t)
	m := NewModel(context.Background(), s)

	step := func(m Model, k tea.KeyType) Model {
		next, _ := m.Update(tea.KeyMsg{Type: k})
		return next.(Model)
	}

	m = step(m, tea.KeyLeft)
	assert.Equal(t, 2, m.column)
	m = step(m, tea.KeyRight)
	assert.Equal(t, 0, m.column)
	m = step(m, tea.KeyUp)
	assert.Equal(t, 1, m.row)
	m = step(m, tea.KeyDown)
	assert.Equal(t, 0, m.row)

	assert.Contains(t, m.View(), "waiting for plugin")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	res, ok := cmd().(pressResultMsg)
	require.True(t, ok)
	assert.ErrorIs(t, res.err, ErrNoPlugin)
}
