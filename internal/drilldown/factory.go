package drilldown

import (
	"context"
	"time"

	"github.com/muurk/deckdrill/internal/grid"
	"github.com/muurk/deckdrill/internal/protocol"
)

// DefaultRestoreTimeout bounds the profile restore sent on teardown.
const DefaultRestoreTimeout = 5 * time.Second

// Connection is the part of the host connection a session uses.
// *connection.Conn satisfies it.
type Connection interface {
	grid.Source
	OnKeyUp(handler func(protocol.KeyEvent)) (unsubscribe func())
	SwitchToProfile(ctx context.Context, pluginUUID, deviceID, profile string) error
}

// Factory holds what every session of a plugin shares: the connection, the
// plugin UUID used to address profile switches and the drill-down profile to
// use for each device type.
type Factory struct {
	conn           Connection
	pluginUUID     string
	itemAction     string
	profiles       map[protocol.DeviceType]string
	defaultProfile string
	restoreTimeout time.Duration
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithProfiles sets the drill-down profile per device type.
func WithProfiles(profiles map[protocol.DeviceType]string) FactoryOption {
	return func(f *Factory) {
		for k, v := range profiles {
			f.profiles[k] = v
		}
	}
}

// WithDefaultProfile sets the profile used for device types without an entry.
func WithDefaultProfile(profile string) FactoryOption {
	return func(f *Factory) {
		f.defaultProfile = profile
	}
}

// WithItemAction restricts session grids to keys carrying the given action.
func WithItemAction(action string) FactoryOption {
	return func(f *Factory) {
		f.itemAction = action
	}
}

// WithRestoreTimeout bounds the profile restore on teardown.
func WithRestoreTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) {
		if d > 0 {
			f.restoreTimeout = d
		}
	}
}

// NewFactory creates a session factory bound to conn.
func NewFactory(conn Connection, pluginUUID string, opts ...FactoryOption) *Factory {
	f := &Factory{
		conn:           conn,
		pluginUUID:     pluginUUID,
		profiles:       make(map[protocol.DeviceType]string),
		restoreTimeout: DefaultRestoreTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Profile returns the drill-down profile for a device type, or "" if none is
// configured.
func (f *Factory) Profile(t protocol.DeviceType) string {
	if p, ok := f.profiles[t]; ok && p != "" {
		return p
	}
	return f.defaultProfile
}

// PluginUUID returns the UUID the plugin registered with.
func (f *Factory) PluginUUID() string {
	return f.pluginUUID
}
