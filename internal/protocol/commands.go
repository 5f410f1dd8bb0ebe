package protocol

import (
	"encoding/json"
	"errors"
)

// Outbound command names.
const (
	CommandRegisterPlugin  = "registerPlugin"
	CommandSwitchToProfile = "switchToProfile"
	CommandSetImage        = "setImage"
	CommandSetTitle        = "setTitle"
	CommandShowAlert       = "showAlert"
	CommandShowOk          = "showOk"
)

// Target selects which renderer a setImage/setTitle applies to.
type Target int

const (
	TargetBoth     Target = 0
	TargetHardware Target = 1
	TargetSoftware Target = 2
)

// RegisterCommand is the first message a plugin sends after connecting.
type RegisterCommand struct {
	Event string `json:"event"`
	UUID  string `json:"uuid"`
}

// ProfilePayload names the profile to switch to. An empty profile returns the
// device to the profile that was active before the last switch.
type ProfilePayload struct {
	Profile string `json:"profile,omitempty"`
	Page    int    `json:"page,omitempty"`
}

// SwitchToProfileCommand switches a device to a profile bundled with the plugin.
type SwitchToProfileCommand struct {
	Event   string         `json:"event"`
	Context string         `json:"context"`
	Device  string         `json:"device"`
	Payload ProfilePayload `json:"payload"`
}

// ImagePayload carries a data URI or an empty string to restore the default image.
type ImagePayload struct {
	Image  string `json:"image"`
	Target Target `json:"target"`
	State  *int   `json:"state,omitempty"`
}

// SetImageCommand changes the image of one action instance.
type SetImageCommand struct {
	Event   string       `json:"event"`
	Context string       `json:"context"`
	Payload ImagePayload `json:"payload"`
}

// TitlePayload carries a title or an empty string to restore the default title.
type TitlePayload struct {
	Title  string `json:"title"`
	Target Target `json:"target"`
	State  *int   `json:"state,omitempty"`
}

// SetTitleCommand changes the title of one action instance.
type SetTitleCommand struct {
	Event   string       `json:"event"`
	Context string       `json:"context"`
	Payload TitlePayload `json:"payload"`
}

// ContextCommand is a command that only addresses an action instance
// (showAlert, showOk).
type ContextCommand struct {
	Event   string `json:"event"`
	Context string `json:"context"`
}

// BuildRegister builds the registration message.
func BuildRegister(event, pluginUUID string) RegisterCommand {
	if event == "" {
		event = CommandRegisterPlugin
	}
	return RegisterCommand{Event: event, UUID: pluginUUID}
}

// BuildSwitchToProfile builds a switchToProfile command. The context of this
// command is the plugin UUID, not an action instance.
func BuildSwitchToProfile(pluginUUID, deviceID, profile string) SwitchToProfileCommand {
	return SwitchToProfileCommand{
		Event:   CommandSwitchToProfile,
		Context: pluginUUID,
		Device:  deviceID,
		Payload: ProfilePayload{Profile: profile},
	}
}

// BuildSetImage builds a setImage command targeting both hardware and software.
func BuildSetImage(context, image string) SetImageCommand {
	return SetImageCommand{
		Event:   CommandSetImage,
		Context: context,
		Payload: ImagePayload{Image: image, Target: TargetBoth},
	}
}

// BuildSetTitle builds a setTitle command targeting both hardware and software.
func BuildSetTitle(context, title string) SetTitleCommand {
	return SetTitleCommand{
		Event:   CommandSetTitle,
		Context: context,
		Payload: TitlePayload{Title: title, Target: TargetBoth},
	}
}

// BuildShowAlert builds a showAlert command.
func BuildShowAlert(context string) ContextCommand {
	return ContextCommand{Event: CommandShowAlert, Context: context}
}

// BuildShowOk builds a showOk command.
func BuildShowOk(context string) ContextCommand {
	return ContextCommand{Event: CommandShowOk, Context: context}
}

// DecodeCommand parses an outbound message. It is the host-side counterpart
// of Decode and is used by the simulator.
func DecodeCommand(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}

	var target any
	switch env.Event {
	case CommandSwitchToProfile:
		target = &SwitchToProfileCommand{}
	case CommandSetImage:
		target = &SetImageCommand{}
	case CommandSetTitle:
		target = &SetTitleCommand{}
	case CommandShowAlert, CommandShowOk:
		target = &ContextCommand{}
	case "":
		return nil, &DecodeError{Err: errors.New("missing event name")}
	default:
		// Registration events are configurable, so anything carrying a uuid is
		// treated as a registration.
		var reg RegisterCommand
		if err := json.Unmarshal(data, &reg); err == nil && reg.UUID != "" {
			return &reg, nil
		}
		return nil, &DecodeError{Event: env.Event, Err: ErrUnknownEvent}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, &DecodeError{Event: env.Event, Err: err}
	}
	return target, nil
}
