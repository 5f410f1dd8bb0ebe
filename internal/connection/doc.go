// Package connection implements the plugin side of the host websocket.
//
// The host application starts a plugin with a loopback port and expects a
// websocket connection on ws://127.0.0.1:<port>. The first message the plugin
// sends is its registration; afterwards the host streams events and accepts
// commands as JSON text frames.
//
// # Event Dispatch
//
// Run owns the read side. Each decoded event is handed to its subscribers
// synchronously, in subscription order, before the next frame is read, so every
// subscriber observes events in arrival order. Subscriptions return an
// unsubscribe func that is idempotent and may be called from inside a handler:
//
//	unsubscribe := conn.OnKeyUp(func(ev protocol.KeyEvent) {
//	    logging.Info("Key released", zap.String("context", ev.Context))
//	})
//	defer unsubscribe()
//
// Handlers run on the read goroutine. A handler that blocks waiting for another
// event stalls the connection.
//
// # Writes
//
// Commands are serialized by a write lock. The caller's context is checked
// after the lock is taken, so a write cancelled while queued is dropped rather
// than sent late:
//
//	ctx, cancel := context.WithCancel(parent)
//	cancel()
//	err := conn.SetImage(ctx, buttonContext, images.Close) // context.Canceled, nothing sent
package connection
