// Package simulator emulates the host application for a single device so a
// plugin can be exercised without Stream Deck hardware.
//
// The Server accepts one plugin connection on a local websocket. After the
// plugin registers it reports the device and lays out the default profile,
// where key 0 carries the picker action. switchToProfile replaces every key
// with a fresh item action instance; switching back with an empty profile
// restores the default keys with their original contexts, so titles set on
// the picker survive a drill-down.
//
// The state can be driven programmatically with Press and Snapshot, drawn
// interactively with RunTUI, or printed with RunHeadless.
package simulator
