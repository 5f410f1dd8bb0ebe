package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/deckdrill/internal/logging"
	"github.com/muurk/deckdrill/internal/protocol"
)

const (
	// Time allowed to write a message to the plugin
	writeWait = 10 * time.Second

	// DefaultRegisterEvent is the registration event the simulator expects.
	DefaultRegisterEvent = "registerPlugin"
)

// ErrNoPlugin is returned when pressing a key before a plugin registered.
var ErrNoPlugin = errors.New("no plugin registered")

// Config holds the simulator configuration.
type Config struct {
	Host          string // Listen address, 127.0.0.1 when empty
	Port          int    // 0 picks a free port
	Device        protocol.Device
	PickerAction  string // Action placed on key 0 of the default profile
	ItemAction    string // Action placed on every key of a drill-down profile
	RegisterEvent string
}

// Key is the simulated state of one key.
type Key struct {
	Context string
	Action  string
	Title   string
	Image   string
	Flash   string // "alert" or "ok" after showAlert / showOk
}

// Snapshot is a copy of the simulator state for display.
type Snapshot struct {
	Device     protocol.Device
	Registered bool
	PluginUUID string
	Profile    string // "" for the default profile
	Keys       []Key
}

// Server plays the host application for a single plugin and device.
type Server struct {
	config   Config
	upgrader websocket.Upgrader

	listener net.Listener
	httpSrv  *http.Server

	updates chan struct{}

	writeMu sync.Mutex

	mu         sync.Mutex
	ws         *websocket.Conn
	pluginUUID string
	registered chan struct{}
	profile    string
	keys       []Key
	home       []Key // default profile, kept while a drill-down profile is shown
}

// New creates a simulator for cfg.Device.
func New(cfg Config) (*Server, error) {
	if cfg.Device.Size.Keys() == 0 {
		return nil, fmt.Errorf("device %q has no keys", cfg.Device.ID)
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Device.ID == "" {
		cfg.Device.ID = "SIM-" + uuid.NewString()[:8]
	}
	if cfg.RegisterEvent == "" {
		cfg.RegisterEvent = DefaultRegisterEvent
	}

	s := &Server{
		config:     cfg,
		updates:    make(chan struct{}, 1),
		registered: make(chan struct{}),
		keys:       make([]Key, cfg.Device.Size.Keys()),
	}
	if cfg.PickerAction != "" {
		s.keys[0] = Key{Context: newContext(), Action: cfg.PickerAction}
	}
	return s, nil
}

func newContext() string {
	return uuid.NewString()
}

// Start begins listening. The server runs until ctx ends or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{
		Handler:           http.HandlerFunc(s.handleUpgrade),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Simulator listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("device", s.config.Device.ID),
		zap.Int("columns", s.config.Device.Size.Columns),
		zap.Int("rows", s.config.Device.Size.Rows),
	)

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Simulator stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()
	return nil
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	if s.listener == nil {
		return s.config.Port
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Device returns the simulated device.
func (s *Server) Device() protocol.Device {
	return s.config.Device
}

// RegisterEvent returns the registration event the plugin must send.
func (s *Server) RegisterEvent() string {
	return s.config.RegisterEvent
}

// Registered is closed once a plugin has registered.
func (s *Server) Registered() <-chan struct{} {
	return s.registered
}

// Updates signals state changes. Signals coalesce; read Snapshot after each.
func (s *Server) Updates() <-chan struct{} {
	return s.updates
}

// Shutdown closes the plugin connection and stops listening.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws != nil {
		s.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "simulator shutting down"),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = ws.Close()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Snapshot returns a copy of the current state.
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	registered := false
	select {
	case <-s.registered:
		registered = true
	default:
	}
	return Snapshot{
		Device:     s.config.Device,
		Registered: registered,
		PluginUUID: s.pluginUUID,
		Profile:    s.profile,
		Keys:       append([]Key(nil), s.keys...),
	}
}

func (s *Server) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.ws != nil {
		s.mu.Unlock()
		logging.Warn("Rejecting second plugin connection", zap.String("remote_addr", r.RemoteAddr))
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "plugin already connected"),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}
	s.ws = ws
	s.mu.Unlock()

	logging.LogConnection(r.RemoteAddr, "plugin_connected")
	defer func() {
		_ = ws.Close()
		s.mu.Lock()
		s.ws = nil
		s.mu.Unlock()
		logging.LogConnection(r.RemoteAddr, "plugin_disconnected")
		s.notify()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.handleCommand(data)
	}
}

func (s *Server) handleCommand(data []byte) {
	msg, err := protocol.DecodeCommand(data)
	if err != nil {
		logging.Warn("Unhandled plugin message", zap.Error(err))
		return
	}
	logging.LogWebSocketMessage("received", websocket.TextMessage, commandEvent(msg), data)

	var out []any
	switch cmd := msg.(type) {
	case *protocol.RegisterCommand:
		out = s.register(cmd)
	case *protocol.SwitchToProfileCommand:
		out = s.switchProfile(cmd)
	case *protocol.SetImageCommand:
		s.updateKey(cmd.Context, func(k *Key) { k.Image = cmd.Payload.Image })
	case *protocol.SetTitleCommand:
		s.updateKey(cmd.Context, func(k *Key) { k.Title = cmd.Payload.Title })
	case *protocol.ContextCommand:
		flash := "ok"
		if cmd.Event == protocol.CommandShowAlert {
			flash = "alert"
		}
		s.updateKey(cmd.Context, func(k *Key) { k.Flash = flash })
	}

	for _, ev := range out {
		if err := s.send(ev); err != nil {
			logging.Warn("Failed to send event", zap.Error(err))
			return
		}
	}
	s.notify()
}

func commandEvent(msg any) string {
	switch cmd := msg.(type) {
	case *protocol.RegisterCommand:
		return cmd.Event
	case *protocol.SwitchToProfileCommand:
		return cmd.Event
	case *protocol.SetImageCommand:
		return cmd.Event
	case *protocol.SetTitleCommand:
		return cmd.Event
	case *protocol.ContextCommand:
		return cmd.Event
	default:
		return ""
	}
}

func (s *Server) register(cmd *protocol.RegisterCommand) []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.Event != s.config.RegisterEvent {
		logging.Warn("Unexpected registration event",
			zap.String("got", cmd.Event),
			zap.String("want", s.config.RegisterEvent),
		)
	}
	select {
	case <-s.registered:
		return nil
	default:
	}
	s.pluginUUID = cmd.UUID
	close(s.registered)

	logging.Info("Plugin registered", zap.String("plugin", cmd.UUID))

	out := []any{protocol.DeviceEvent{
		Event:      protocol.EventDeviceDidConnect,
		Device:     s.config.Device.ID,
		DeviceInfo: s.config.Device.DeviceInfo,
	}}
	return append(out, s.appearanceLocked(protocol.EventWillAppear, s.keys)...)
}

// switchProfile emulates the host: the visible keys disappear and the keys of
// the new profile appear. An empty profile returns to the default profile.
func (s *Server) switchProfile(cmd *protocol.SwitchToProfileCommand) []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.Device != s.config.Device.ID {
		logging.Warn("Profile switch for unknown device", zap.String("device", cmd.Device))
		return nil
	}
	if cmd.Context != s.pluginUUID {
		logging.Warn("Profile switch not addressed to the plugin", zap.String("context", cmd.Context))
		return nil
	}

	name := cmd.Payload.Profile
	if name == s.profile {
		return nil
	}

	out := s.appearanceLocked(protocol.EventWillDisappear, s.keys)
	if name == "" {
		s.keys = s.home
		s.home = nil
	} else {
		if s.profile == "" {
			s.home = s.keys
		}
		s.keys = make([]Key, len(s.keys))
		for i := range s.keys {
			s.keys[i] = Key{Context: newContext(), Action: s.config.ItemAction}
		}
	}
	s.profile = name

	logging.Info("Profile switched",
		zap.String("device", cmd.Device),
		zap.String("profile", name),
	)
	return append(out, s.appearanceLocked(protocol.EventWillAppear, s.keys)...)
}

func (s *Server) appearanceLocked(event string, keys []Key) []any {
	var out []any
	cols := s.config.Device.Size.Columns
	for i, k := range keys {
		if k.Action == "" {
			continue
		}
		out = append(out, protocol.AppearanceEvent{
			Event:   event,
			Action:  k.Action,
			Context: k.Context,
			Device:  s.config.Device.ID,
			Payload: protocol.AppearancePayload{
				Coordinates: protocol.Coordinates{Column: i % cols, Row: i / cols},
				Controller:  protocol.ControllerKeypad,
			},
		})
	}
	return out
}

func (s *Server) updateKey(context string, update func(*Key)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, keys := range [][]Key{s.keys, s.home} {
		for i := range keys {
			if keys[i].Context == context {
				update(&keys[i])
				return
			}
		}
	}
	logging.Debug("Command for unknown context", zap.String("context", context))
}

// Press sends keyDown and keyUp for the key at column, row.
func (s *Server) Press(column, row int) error {
	size := s.config.Device.Size
	if column < 0 || row < 0 || column >= size.Columns || row >= size.Rows {
		return fmt.Errorf("no key at %d,%d", column, row)
	}

	s.mu.Lock()
	i := row*size.Columns + column
	key := s.keys[i]
	s.keys[i].Flash = ""
	ws := s.ws
	s.mu.Unlock()

	if ws == nil {
		return ErrNoPlugin
	}
	if key.Action == "" {
		return nil
	}

	for _, event := range []string{protocol.EventKeyDown, protocol.EventKeyUp} {
		ev := protocol.KeyEvent{
			Event:   event,
			Action:  key.Action,
			Context: key.Context,
			Device:  s.config.Device.ID,
			Payload: protocol.KeyPayload{
				Coordinates: protocol.Coordinates{Column: column, Row: row},
			},
		}
		if err := s.send(ev); err != nil {
			return err
		}
	}
	s.notify()
	return nil
}

func (s *Server) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws == nil {
		return ErrNoPlugin
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write to plugin: %w", err)
	}
	logging.LogWebSocketMessage("sent", websocket.TextMessage, sentEvent(v), data)
	return nil
}

func sentEvent(v any) string {
	switch ev := v.(type) {
	case protocol.KeyEvent:
		return ev.Event
	case protocol.AppearanceEvent:
		return ev.Event
	case protocol.DeviceEvent:
		return ev.Event
	default:
		return ""
	}
}
