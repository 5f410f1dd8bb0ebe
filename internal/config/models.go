package config

import (
	"fmt"
	"time"

	"github.com/muurk/deckdrill/internal/protocol"
)

// Registry represents the entire user configuration file.
// It maps device types to the drill-down profiles bundled with the plugin,
// holds the items each picker button offers and the plugin preferences.
type Registry struct {
	Version        int                `yaml:"version"`
	DefaultProfile string             `yaml:"default_profile,omitempty"` // Used for device types without an entry
	Profiles       map[string]string  `yaml:"profiles,omitempty"`        // Keyed by device type key (mini, xl, ...)
	Pickers        map[string]*Picker `yaml:"pickers,omitempty"`         // Keyed by action UUID
	Preferences    *Preferences       `yaml:"preferences,omitempty"`
}

// Picker is the list a picker button drills down into.
type Picker struct {
	Items []string `yaml:"items"`
	// ShowOk flashes the check mark on the launching key after a selection
	ShowOk bool `yaml:"show_ok"`
}

// Preferences represents plugin-wide preferences.
type Preferences struct {
	LogLevel       string `yaml:"log_level,omitempty"`       // debug, info, warn, error; empty is silent
	LogFile        string `yaml:"log_file,omitempty"`        // Log destination; the host discards stdout
	RestoreTimeout int    `yaml:"restore_timeout,omitempty"` // Seconds allowed for the profile restore on close
}

// DefaultProfiles are the profile names shipped in the plugin bundle.
var DefaultProfiles = map[string]string{
	protocol.DeviceTypeStreamDeck.Key():       "DrillDown",
	protocol.DeviceTypeStreamDeckMini.Key():   "DrillDownMini",
	protocol.DeviceTypeStreamDeckXL.Key():     "DrillDownXL",
	protocol.DeviceTypeStreamDeckMobile.Key(): "DrillDown",
	protocol.DeviceTypeStreamDeckPlus.Key():   "DrillDownPlus",
}

const defaultRestoreTimeout = 5

func defaultPreferences() *Preferences {
	return &Preferences{
		RestoreTimeout: defaultRestoreTimeout,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	profiles := make(map[string]string, len(DefaultProfiles))
	for k, v := range DefaultProfiles {
		profiles[k] = v
	}
	return &Registry{
		Version:     1,
		Profiles:    profiles,
		Pickers:     make(map[string]*Picker),
		Preferences: defaultPreferences(),
	}
}

// Profile returns the drill-down profile for a device type.
func (r *Registry) Profile(t protocol.DeviceType) string {
	if p := r.Profiles[t.Key()]; p != "" {
		return p
	}
	return r.DefaultProfile
}

// ProfilesByType returns the configured profiles keyed by device type.
// Unknown keys are skipped.
func (r *Registry) ProfilesByType() map[protocol.DeviceType]string {
	out := make(map[protocol.DeviceType]string)
	for key, name := range r.Profiles {
		if t, ok := protocol.DeviceTypeFromKey(key); ok && name != "" {
			out[t] = name
		}
	}
	return out
}

// SetProfile sets the profile for a device type key.
func (r *Registry) SetProfile(key, name string) error {
	if _, ok := protocol.DeviceTypeFromKey(key); !ok {
		return fmt.Errorf("unknown device type %q", key)
	}
	if r.Profiles == nil {
		r.Profiles = make(map[string]string)
	}
	r.Profiles[key] = name
	return nil
}

// GetPicker returns the picker for an action UUID, or nil.
func (r *Registry) GetPicker(action string) *Picker {
	return r.Pickers[action]
}

// EnsurePicker ensures a picker entry exists for an action UUID.
func (r *Registry) EnsurePicker(action string) *Picker {
	if r.Pickers == nil {
		r.Pickers = make(map[string]*Picker)
	}
	if p, ok := r.Pickers[action]; ok {
		return p
	}
	p := &Picker{}
	r.Pickers[action] = p
	return p
}

// SetPickerItems replaces the items offered by a picker.
func (r *Registry) SetPickerItems(action string, items []string) {
	r.EnsurePicker(action).Items = append([]string(nil), items...)
}

// RestoreTimeout returns the profile restore timeout.
func (r *Registry) RestoreTimeout() time.Duration {
	if r.Preferences == nil || r.Preferences.RestoreTimeout <= 0 {
		return defaultRestoreTimeout * time.Second
	}
	return time.Duration(r.Preferences.RestoreTimeout) * time.Second
}
