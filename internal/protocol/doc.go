// Package protocol models the JSON plugin protocol spoken between the host
// application that owns the button devices and a plugin process.
//
// # Protocol Overview
//
// The host starts the plugin with four arguments (-port, -pluginUUID,
// -registerEvent, -info). The plugin opens a websocket to ws://127.0.0.1:<port>
// and sends the registration message:
//
//	{"event": "registerPlugin", "uuid": "<pluginUUID>"}
//
// After that every message is a single JSON text frame with an "event" field.
//
// # Inbound Events
//
// Events addressed to an action instance share one envelope:
//
//	{
//	  "event":   "keyUp",
//	  "action":  "com.muurk.deckdrill.picker",
//	  "context": "<opaque token, unique per key and profile>",
//	  "device":  "<device id>",
//	  "payload": {"coordinates": {"column": 2, "row": 1}, "settings": {}}
//	}
//
// Decode turns a message into *KeyEvent, *AppearanceEvent, *DeviceEvent or
// *SystemEvent.
//
// # Outbound Commands
//
// Commands are built with the Build* constructors and marshalled as-is:
//
//	cmd := protocol.BuildSetImage(ctxToken, images.Close)
//	data, _ := json.Marshal(cmd)
//
// switchToProfile is addressed with the plugin UUID as context. Sending it with
// an empty profile returns the device to its previous profile.
//
// # Device Types
//
// The host reports the device type as an integer. Older documentation uses the
// kESDSDKDeviceType_* names; DeviceType decodes both.
package protocol
