package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/deckdrill/internal/logging"
	"github.com/muurk/deckdrill/internal/protocol"
)

const (
	// Time allowed to write a message to the host
	writeWait = 10 * time.Second

	// Time allowed for the websocket handshake
	handshakeTimeout = 10 * time.Second
)

// ErrClosed is returned for writes on a closed connection.
var ErrClosed = errors.New("connection closed")

// Conn is a plugin's connection to the host application.
//
// Events are read by Run and dispatched synchronously, in arrival order, from
// that single goroutine. Handlers must not block on further events.
type Conn struct {
	ws       *websocket.Conn
	endpoint string

	writeMu sync.Mutex

	keyDown             handlers[protocol.KeyEvent]
	keyUp               handlers[protocol.KeyEvent]
	willAppear          handlers[protocol.AppearanceEvent]
	willDisappear       handlers[protocol.AppearanceEvent]
	deviceDidConnect    handlers[protocol.DeviceEvent]
	deviceDidDisconnect handlers[protocol.DeviceEvent]
	systemDidWakeUp     handlers[protocol.SystemEvent]

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the host on the loopback port it handed to the plugin.
func Dial(ctx context.Context, port int) (*Conn, error) {
	u := "ws://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	return DialURL(ctx, u)
}

// DialURL connects to a websocket endpoint.
func DialURL(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	logging.LogConnection(url, "connected")
	return newConn(ws, url), nil
}

func newConn(ws *websocket.Conn, endpoint string) *Conn {
	return &Conn{
		ws:       ws,
		endpoint: endpoint,
		done:     make(chan struct{}),
	}
}

// Register sends the registration message. It must be the first write.
func (c *Conn) Register(ctx context.Context, event, pluginUUID string) error {
	return c.send(ctx, protocol.BuildRegister(event, pluginUUID))
}

// Run reads and dispatches events until ctx ends, the host closes the
// connection or Close is called. A cancelled ctx or a normal close returns nil.
func (c *Conn) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.Close()
	})
	defer stop()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			_ = c.Close()
			if ctx.Err() != nil || c.isClosing(err) {
				logging.LogConnection(c.endpoint, "closed")
				return nil
			}
			return fmt.Errorf("read from host: %w", err)
		}
		if msgType != websocket.TextMessage {
			logging.Debug("Ignoring non-text message", zap.Int("type", msgType))
			continue
		}
		c.handle(data)
	}
}

func (c *Conn) isClosing(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) handle(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		var decErr *protocol.DecodeError
		if errors.As(err, &decErr) && errors.Is(err, protocol.ErrUnknownEvent) {
			logging.Debug("Ignoring unhandled event", zap.String("event", decErr.Event))
			return
		}
		logging.Warn("Failed to decode host message", zap.Error(err))
		return
	}
	logging.LogWebSocketMessage("received", websocket.TextMessage, protocol.EventName(msg), data)

	switch ev := msg.(type) {
	case *protocol.KeyEvent:
		if ev.Event == protocol.EventKeyDown {
			c.keyDown.dispatch(*ev)
		} else {
			c.keyUp.dispatch(*ev)
		}
	case *protocol.AppearanceEvent:
		if ev.Event == protocol.EventWillAppear {
			c.willAppear.dispatch(*ev)
		} else {
			c.willDisappear.dispatch(*ev)
		}
	case *protocol.DeviceEvent:
		if ev.Event == protocol.EventDeviceDidConnect {
			c.deviceDidConnect.dispatch(*ev)
		} else {
			c.deviceDidDisconnect.dispatch(*ev)
		}
	case *protocol.SystemEvent:
		c.systemDidWakeUp.dispatch(*ev)
	}
}

// OnKeyDown subscribes to keyDown events.
func (c *Conn) OnKeyDown(fn func(protocol.KeyEvent)) (unsubscribe func()) {
	return c.keyDown.add(fn)
}

// OnKeyUp subscribes to keyUp events.
func (c *Conn) OnKeyUp(fn func(protocol.KeyEvent)) (unsubscribe func()) {
	return c.keyUp.add(fn)
}

// OnWillAppear subscribes to willAppear events.
func (c *Conn) OnWillAppear(fn func(protocol.AppearanceEvent)) (unsubscribe func()) {
	return c.willAppear.add(fn)
}

// OnWillDisappear subscribes to willDisappear events.
func (c *Conn) OnWillDisappear(fn func(protocol.AppearanceEvent)) (unsubscribe func()) {
	return c.willDisappear.add(fn)
}

// OnDeviceDidConnect subscribes to deviceDidConnect events.
func (c *Conn) OnDeviceDidConnect(fn func(protocol.DeviceEvent)) (unsubscribe func()) {
	return c.deviceDidConnect.add(fn)
}

// OnDeviceDidDisconnect subscribes to deviceDidDisconnect events.
func (c *Conn) OnDeviceDidDisconnect(fn func(protocol.DeviceEvent)) (unsubscribe func()) {
	return c.deviceDidDisconnect.add(fn)
}

// OnSystemDidWakeUp subscribes to systemDidWakeUp events.
func (c *Conn) OnSystemDidWakeUp(fn func(protocol.SystemEvent)) (unsubscribe func()) {
	return c.systemDidWakeUp.add(fn)
}

// SwitchToProfile switches device to a profile bundled with the plugin. An
// empty profile returns to the previous profile.
func (c *Conn) SwitchToProfile(ctx context.Context, pluginUUID, deviceID, profile string) error {
	return c.send(ctx, protocol.BuildSwitchToProfile(pluginUUID, deviceID, profile))
}

// SetImage sets the image of an action instance.
func (c *Conn) SetImage(ctx context.Context, context, image string) error {
	return c.send(ctx, protocol.BuildSetImage(context, image))
}

// SetTitle sets the title of an action instance.
func (c *Conn) SetTitle(ctx context.Context, context, title string) error {
	return c.send(ctx, protocol.BuildSetTitle(context, title))
}

// ShowAlert flashes the alert overlay on an action instance.
func (c *Conn) ShowAlert(ctx context.Context, context string) error {
	return c.send(ctx, protocol.BuildShowAlert(context))
}

// ShowOk flashes the check mark overlay on an action instance.
func (c *Conn) ShowOk(ctx context.Context, context string) error {
	return c.send(ctx, protocol.BuildShowOk(context))
}

// send marshals v and writes it. ctx is checked under the write lock so a
// write cancelled while queued behind another is never sent.
func (c *Conn) send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write to host: %w", err)
	}

	logging.LogWebSocketMessage("sent", websocket.TextMessage, commandName(v), data)
	return nil
}

func commandName(v any) string {
	switch cmd := v.(type) {
	case protocol.RegisterCommand:
		return cmd.Event
	case protocol.SwitchToProfileCommand:
		return cmd.Event
	case protocol.SetImageCommand:
		return cmd.Event
	case protocol.SetTitleCommand:
		return cmd.Event
	case protocol.ContextCommand:
		return cmd.Event
	default:
		return ""
	}
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}
