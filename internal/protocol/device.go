package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DeviceType identifies the hardware model reported by the host application.
type DeviceType int

const (
	DeviceTypeStreamDeck       DeviceType = 0
	DeviceTypeStreamDeckMini   DeviceType = 1
	DeviceTypeStreamDeckXL     DeviceType = 2
	DeviceTypeStreamDeckMobile DeviceType = 3
	DeviceTypeCorsairGKeys     DeviceType = 4
	DeviceTypeStreamDeckPedal  DeviceType = 5
	DeviceTypeCorsairVoyager   DeviceType = 6
	DeviceTypeStreamDeckPlus   DeviceType = 7
)

var deviceTypeSDKNames = map[DeviceType]string{
	DeviceTypeStreamDeck:       "kESDSDKDeviceType_StreamDeck",
	DeviceTypeStreamDeckMini:   "kESDSDKDeviceType_StreamDeckMini",
	DeviceTypeStreamDeckXL:     "kESDSDKDeviceType_StreamDeckXL",
	DeviceTypeStreamDeckMobile: "kESDSDKDeviceType_StreamDeckMobile",
	DeviceTypeCorsairGKeys:     "kESDSDKDeviceType_CorsairGKeys",
	DeviceTypeStreamDeckPedal:  "kESDSDKDeviceType_StreamDeckPedal",
	DeviceTypeCorsairVoyager:   "kESDSDKDeviceType_CorsairVoyager",
	DeviceTypeStreamDeckPlus:   "kESDSDKDeviceType_StreamDeckPlus",
}

// String returns a human-readable device model name
func (d DeviceType) String() string {
	switch d {
	case DeviceTypeStreamDeck:
		return "Stream Deck"
	case DeviceTypeStreamDeckMini:
		return "Stream Deck Mini"
	case DeviceTypeStreamDeckXL:
		return "Stream Deck XL"
	case DeviceTypeStreamDeckMobile:
		return "Stream Deck Mobile"
	case DeviceTypeCorsairGKeys:
		return "Corsair G-Keys"
	case DeviceTypeStreamDeckPedal:
		return "Stream Deck Pedal"
	case DeviceTypeCorsairVoyager:
		return "Corsair Voyager"
	case DeviceTypeStreamDeckPlus:
		return "Stream Deck +"
	default:
		return fmt.Sprintf("DeviceType(%d)", int(d))
	}
}

// Key returns the stable identifier used in configuration files.
func (d DeviceType) Key() string {
	switch d {
	case DeviceTypeStreamDeck:
		return "streamdeck"
	case DeviceTypeStreamDeckMini:
		return "mini"
	case DeviceTypeStreamDeckXL:
		return "xl"
	case DeviceTypeStreamDeckMobile:
		return "mobile"
	case DeviceTypeCorsairGKeys:
		return "gkeys"
	case DeviceTypeStreamDeckPedal:
		return "pedal"
	case DeviceTypeCorsairVoyager:
		return "voyager"
	case DeviceTypeStreamDeckPlus:
		return "plus"
	default:
		return strconv.Itoa(int(d))
	}
}

// DeviceTypeFromKey is the inverse of Key for the known device types.
func DeviceTypeFromKey(key string) (DeviceType, bool) {
	for d := DeviceTypeStreamDeck; d <= DeviceTypeStreamDeckPlus; d++ {
		if d.Key() == key {
			return d, true
		}
	}
	return 0, false
}

// DefaultSize returns the key layout of the stock hardware, or a zero Size for
// models without keys.
func (d DeviceType) DefaultSize() Size {
	switch d {
	case DeviceTypeStreamDeck, DeviceTypeStreamDeckMobile:
		return Size{Columns: 5, Rows: 3}
	case DeviceTypeStreamDeckMini:
		return Size{Columns: 3, Rows: 2}
	case DeviceTypeStreamDeckXL:
		return Size{Columns: 8, Rows: 4}
	case DeviceTypeStreamDeckPlus:
		return Size{Columns: 4, Rows: 2}
	default:
		return Size{}
	}
}

// MarshalJSON writes the integer form, which is what the host sends.
func (d DeviceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(d))
}

// UnmarshalJSON accepts both the integer form and the kESDSDKDeviceType_* name.
func (d *DeviceType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*d = DeviceType(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("device type must be a number or string: %w", err)
	}
	for k, v := range deviceTypeSDKNames {
		if v == s {
			*d = k
			return nil
		}
	}
	return fmt.Errorf("unknown device type %q", s)
}

// PlatformType is the operating system the host application runs on.
type PlatformType string

const (
	PlatformMac     PlatformType = "mac"
	PlatformWindows PlatformType = "windows"
)

// Size is the key layout of a device.
type Size struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Keys returns the number of addressable keys.
func (s Size) Keys() int {
	if s.Columns <= 0 || s.Rows <= 0 {
		return 0
	}
	return s.Columns * s.Rows
}

// DeviceInfo describes a device as reported in deviceDidConnect and in the
// registration info.
type DeviceInfo struct {
	Name string     `json:"name,omitempty"`
	Type DeviceType `json:"type"`
	Size Size       `json:"size"`
}

// Device is a connected device and its layout.
type Device struct {
	ID string `json:"id"`
	DeviceInfo
}

// Application describes the host application in the registration info.
type Application struct {
	Font            string       `json:"font,omitempty"`
	Language        string       `json:"language,omitempty"`
	Platform        PlatformType `json:"platform"`
	PlatformVersion string       `json:"platformVersion,omitempty"`
	Version         string       `json:"version"`
}

// PluginInfo describes this plugin as known by the host.
type PluginInfo struct {
	UUID    string `json:"uuid,omitempty"`
	Version string `json:"version,omitempty"`
}

// RegistrationInfo is the JSON document passed to the plugin with -info.
type RegistrationInfo struct {
	Application      Application `json:"application"`
	Plugin           PluginInfo  `json:"plugin"`
	DevicePixelRatio int         `json:"devicePixelRatio,omitempty"`
	Devices          []Device    `json:"devices"`
}

// ParseRegistrationInfo decodes the -info argument.
func ParseRegistrationInfo(raw string) (*RegistrationInfo, error) {
	var info RegistrationInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("failed to parse registration info: %w", err)
	}
	return &info, nil
}
