package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event names.
const (
	EventKeyDown             = "keyDown"
	EventKeyUp               = "keyUp"
	EventWillAppear          = "willAppear"
	EventWillDisappear       = "willDisappear"
	EventDeviceDidConnect    = "deviceDidConnect"
	EventDeviceDidDisconnect = "deviceDidDisconnect"
	EventSystemDidWakeUp     = "systemDidWakeUp"
)

// Controller values carried by appearance events.
const (
	ControllerKeypad  = "Keypad"
	ControllerEncoder = "Encoder"
)

// ErrUnknownEvent is returned by Decode for events this package does not model.
var ErrUnknownEvent = errors.New("unknown event")

// DecodeError describes a message that could not be decoded.
type DecodeError struct {
	Event string // Event name from the envelope, empty if unreadable
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("decode message: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Coordinates locate a key on the device.
type Coordinates struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// KeyPayload is the payload of keyDown and keyUp.
type KeyPayload struct {
	Settings         json.RawMessage `json:"settings,omitempty"`
	Coordinates      Coordinates     `json:"coordinates"`
	State            int             `json:"state"`
	UserDesiredState int             `json:"userDesiredState,omitempty"`
	IsInMultiAction  bool            `json:"isInMultiAction"`
}

// AppearancePayload is the payload of willAppear and willDisappear.
type AppearancePayload struct {
	Settings        json.RawMessage `json:"settings,omitempty"`
	Coordinates     Coordinates     `json:"coordinates"`
	Controller      string          `json:"controller,omitempty"`
	State           int             `json:"state"`
	IsInMultiAction bool            `json:"isInMultiAction"`
}

// IsKeypad reports whether the event concerns a key (as opposed to a dial).
func (p AppearancePayload) IsKeypad() bool {
	return (p.Controller == "" || p.Controller == ControllerKeypad) && !p.IsInMultiAction
}

// ActionEvent is an event addressed to one action instance.
type ActionEvent[P any] struct {
	Event   string `json:"event"`
	Action  string `json:"action"`
	Context string `json:"context"`
	Device  string `json:"device"`
	Payload P      `json:"payload"`
}

// KeyEvent is a keyDown or keyUp event.
type KeyEvent = ActionEvent[KeyPayload]

// AppearanceEvent is a willAppear or willDisappear event.
type AppearanceEvent = ActionEvent[AppearancePayload]

// DeviceEvent is deviceDidConnect or deviceDidDisconnect.
type DeviceEvent struct {
	Event      string     `json:"event"`
	Device     string     `json:"device"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
}

// AsDevice returns the device carried by the event.
func (e DeviceEvent) AsDevice() Device {
	return Device{ID: e.Device, DeviceInfo: e.DeviceInfo}
}

// SystemEvent is an event without a target, such as systemDidWakeUp.
type SystemEvent struct {
	Event string `json:"event"`
}

type envelope struct {
	Event string `json:"event"`
}

// Decode parses an inbound message and returns one of *KeyEvent,
// *AppearanceEvent, *DeviceEvent or *SystemEvent.
// Events this package does not model produce an error wrapping ErrUnknownEvent.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}

	var target any
	switch env.Event {
	case EventKeyDown, EventKeyUp:
		target = &KeyEvent{}
	case EventWillAppear, EventWillDisappear:
		target = &AppearanceEvent{}
	case EventDeviceDidConnect, EventDeviceDidDisconnect:
		target = &DeviceEvent{}
	case EventSystemDidWakeUp:
		target = &SystemEvent{}
	case "":
		return nil, &DecodeError{Err: errors.New("missing event name")}
	default:
		return nil, &DecodeError{Event: env.Event, Err: ErrUnknownEvent}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, &DecodeError{Event: env.Event, Err: err}
	}
	return target, nil
}

// EventName returns the event name of a decoded message, or "" when unknown.
func EventName(msg any) string {
	switch m := msg.(type) {
	case *KeyEvent:
		return m.Event
	case *AppearanceEvent:
		return m.Event
	case *DeviceEvent:
		return m.Event
	case *SystemEvent:
		return m.Event
	default:
		return ""
	}
}
