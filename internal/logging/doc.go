// Package logging provides structured logging for the deckdrill plugin.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the plugin and the simulator. It provides both
// general logging functions and specialized functions for protocol logging.
//
// # Log Levels
//
//   - Debug: websocket traffic, drill-down state changes, ignored key presses
//   - Info: connection lifecycle, device arrival, sessions opened and closed
//   - Warn: best-effort failures (profile restore, callback errors)
//   - Error: startup failures, broken connections
//
// # Structured Logging
//
//	logging.Info("Device connected",
//	    zap.String("device", "A1B2C3"),
//	    zap.String("type", "Stream Deck XL"),
//	)
//
// # Specialized Logging
//
//	logging.LogConnection("ws://127.0.0.1:28196", "connected")
//	logging.LogWebSocketMessage("sent", websocket.TextMessage, "setImage", payload)
//	logging.LogSessionTransition(deviceID, "initializing", "active")
//
// # Configuration
//
// The host application starts plugins without a console, so the plugin logs to
// a file when one is configured:
//
//	if err := logging.InitializeWithOptions(logging.Options{
//	    Level: "debug",
//	    File:  "/tmp/deckdrill.log",
//	}); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When neither a level nor DECKDRILL_LOG_LEVEL is set the logger is a no-op.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once initialization has
// completed. Initialize before starting goroutines that log.
package logging
