package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/deckdrill/internal/config"
	"github.com/muurk/deckdrill/internal/connection"
	"github.com/muurk/deckdrill/internal/drilldown"
	"github.com/muurk/deckdrill/internal/logging"
	"github.com/muurk/deckdrill/internal/protocol"
)

// Action UUIDs declared in the plugin manifest.
const (
	PickerAction = config.ExamplePickerAction
	ItemAction   = "com.muurk.deckdrill.item"
)

// feedbackTimeout bounds alert and title writes made on behalf of an action.
const feedbackTimeout = 5 * time.Second

// Option configures a Host.
type Option func(*Host)

// WithItemAction overrides the action UUID placed on drill-down profile keys.
func WithItemAction(action string) Option {
	return func(h *Host) {
		h.itemAction = action
	}
}

type instance struct {
	action Action
	ac     ActionContext
}

// Host is the plugin runtime: it registers with the host application, keeps
// track of devices and action instances and hands drill-down sessions their
// connection.
type Host struct {
	params     RegistrationParameters
	info       *protocol.RegistrationInfo
	registry   *Registry
	cfg        *config.Registry
	itemAction string

	ready chan struct{}

	mu        sync.Mutex
	ctx       context.Context
	conn      *connection.Conn
	factory   *drilldown.Factory
	devices   map[string]protocol.Device
	instances map[string]*instance
}

// New validates params and prepares a host. Devices listed in the
// registration info are known before the connection is up.
func New(params RegistrationParameters, registry *Registry, cfg *config.Registry, opts ...Option) (*Host, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	info, err := params.RegistrationInfo()
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if cfg == nil {
		cfg = config.NewRegistry()
	}

	h := &Host{
		params:     params,
		info:       info,
		registry:   registry,
		cfg:        cfg,
		itemAction: ItemAction,
		ready:      make(chan struct{}),
		ctx:        context.Background(),
		devices:    make(map[string]protocol.Device),
		instances:  make(map[string]*instance),
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, d := range info.Devices {
		h.devices[d.ID] = d
	}
	return h, nil
}

// Run connects to the host application and serves events until ctx ends or
// the host closes the connection.
func (h *Host) Run(ctx context.Context) error {
	conn, err := connection.Dial(ctx, h.params.Port)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Register(ctx, h.params.RegisterEvent, h.params.PluginUUID); err != nil {
		return fmt.Errorf("register plugin: %w", err)
	}

	factory := drilldown.NewFactory(conn, h.params.PluginUUID,
		drilldown.WithProfiles(h.cfg.ProfilesByType()),
		drilldown.WithDefaultProfile(h.cfg.DefaultProfile),
		drilldown.WithItemAction(h.itemAction),
		drilldown.WithRestoreTimeout(h.cfg.RestoreTimeout()),
	)

	h.mu.Lock()
	h.ctx = ctx
	h.conn = conn
	h.factory = factory
	h.mu.Unlock()

	unsubs := []func(){
		conn.OnDeviceDidConnect(h.handleDeviceDidConnect),
		conn.OnDeviceDidDisconnect(h.handleDeviceDidDisconnect),
		conn.OnWillAppear(h.handleWillAppear),
		conn.OnWillDisappear(h.handleWillDisappear),
		conn.OnKeyDown(h.handleKeyDown),
		conn.OnKeyUp(h.handleKeyUp),
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	logging.Info("Plugin registered",
		zap.String("plugin", h.params.PluginUUID),
		zap.String("platform", string(h.info.Application.Platform)),
		zap.String("host_version", h.info.Application.Version),
		zap.Int("devices", len(h.info.Devices)),
		zap.Strings("actions", h.registry.Actions()),
	)
	close(h.ready)

	return conn.Run(ctx)
}

// Ready is closed once the plugin has registered and is dispatching events.
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Context returns the context the host runs under.
func (h *Host) Context() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx
}

// Conn returns the live connection, or nil before Run.
func (h *Host) Conn() *connection.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// Factory returns the drill-down session factory, or nil before Run.
func (h *Host) Factory() *drilldown.Factory {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.factory
}

// Config returns the configuration the host was created with.
func (h *Host) Config() *config.Registry {
	return h.cfg
}

// Info returns the registration info.
func (h *Host) Info() *protocol.RegistrationInfo {
	return h.info
}

// Devices returns the connected devices ordered by ID.
func (h *Host) Devices() []protocol.Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.Device, 0, len(h.devices))
	for _, d := range h.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Device returns a connected device by ID.
func (h *Host) Device(id string) (protocol.Device, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.devices[id]
	return d, ok
}

func (h *Host) handleDeviceDidConnect(ev protocol.DeviceEvent) {
	d := ev.AsDevice()
	h.mu.Lock()
	h.devices[d.ID] = d
	h.mu.Unlock()

	logging.Info("Device connected",
		zap.String("device", d.ID),
		zap.String("type", d.Type.String()),
		zap.Int("columns", d.Size.Columns),
		zap.Int("rows", d.Size.Rows),
	)
}

func (h *Host) handleDeviceDidDisconnect(ev protocol.DeviceEvent) {
	h.mu.Lock()
	delete(h.devices, ev.Device)
	for ctx, inst := range h.instances {
		if inst.ac.Device.ID == ev.Device {
			delete(h.instances, ctx)
		}
	}
	h.mu.Unlock()

	logging.Info("Device disconnected", zap.String("device", ev.Device))
}

func (h *Host) handleWillAppear(ev protocol.AppearanceEvent) {
	factory, ok := h.registry.Lookup(ev.Action)
	if !ok {
		logging.Debug("No action registered",
			zap.String("action", ev.Action),
			zap.String("context", ev.Context),
		)
		return
	}

	h.mu.Lock()
	device, known := h.devices[ev.Device]
	if !known {
		device = protocol.Device{ID: ev.Device}
	}
	inst, exists := h.instances[ev.Context]
	if !exists {
		ac := ActionContext{Host: h, Action: ev.Action, Context: ev.Context, Device: device}
		inst = &instance{action: factory(ac), ac: ac}
		h.instances[ev.Context] = inst
	}
	ctx := h.ctx
	h.mu.Unlock()

	h.report(ev.Context, ev.Event, inst.action.OnWillAppear(ctx, ev))
}

func (h *Host) handleWillDisappear(ev protocol.AppearanceEvent) {
	h.mu.Lock()
	inst, ok := h.instances[ev.Context]
	delete(h.instances, ev.Context)
	ctx := h.ctx
	h.mu.Unlock()
	if !ok {
		return
	}

	h.report(ev.Context, ev.Event, inst.action.OnWillDisappear(ctx, ev))
}

func (h *Host) handleKeyDown(ev protocol.KeyEvent) {
	if inst, ctx, ok := h.lookup(ev.Context); ok {
		h.report(ev.Context, ev.Event, inst.action.OnKeyDown(ctx, ev))
	}
}

func (h *Host) handleKeyUp(ev protocol.KeyEvent) {
	if inst, ctx, ok := h.lookup(ev.Context); ok {
		h.report(ev.Context, ev.Event, inst.action.OnKeyUp(ctx, ev))
	}
}

func (h *Host) lookup(actionContext string) (*instance, context.Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.instances[actionContext]
	return inst, h.ctx, ok
}

// instanceCount is used by tests.
func (h *Host) instanceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.instances)
}

// report logs an action failure and flashes the alert overlay on its key.
func (h *Host) report(actionContext, event string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	logging.Warn("Action handler failed",
		zap.String("context", actionContext),
		zap.String("event", event),
		zap.Error(err),
	)
	h.Alert(actionContext)
}

// Alert flashes the alert overlay on a key, best effort.
func (h *Host) Alert(actionContext string) {
	conn := h.Conn()
	if conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(h.Context(), feedbackTimeout)
	defer cancel()
	if err := conn.ShowAlert(ctx, actionContext); err != nil {
		logging.Debug("Failed to show alert", zap.String("context", actionContext), zap.Error(err))
	}
}
