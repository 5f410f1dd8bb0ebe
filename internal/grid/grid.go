// Package grid tracks the keys of one device as the host reports them and
// offers per-key display updates.
//
// The host only tells a plugin about keys that carry one of its actions, one
// willAppear per key. A drill-down profile places the plugin's item action on
// every key, so once every column/row position has been reported the grid is
// complete and safe to paint. Painting earlier would address keys the host
// does not know about yet.
package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/deckdrill/internal/protocol"
)

var (
	// ErrClosed is returned by operations on a closed grid.
	ErrClosed = errors.New("grid closed")

	// ErrSlotUnavailable is returned when a slot has not been reported by the host.
	ErrSlotUnavailable = errors.New("slot not reported by host")
)

// Source is the part of the host connection a grid needs.
type Source interface {
	OnWillAppear(handler func(protocol.AppearanceEvent)) (unsubscribe func())
	OnWillDisappear(handler func(protocol.AppearanceEvent)) (unsubscribe func())
	SetImage(ctx context.Context, context string, image string) error
	SetTitle(ctx context.Context, context string, title string) error
}

// Button is the handle of one reported key.
type Button struct {
	Context     string
	Index       int
	Coordinates protocol.Coordinates

	src Source
}

// Valid reports whether the host has reported this key.
func (b Button) Valid() bool {
	return b.Context != "" && b.src != nil
}

// SetImage paints an image (data URI) on the key; "" restores the default.
func (b Button) SetImage(ctx context.Context, image string) error {
	if !b.Valid() {
		return ErrSlotUnavailable
	}
	return b.src.SetImage(ctx, b.Context, image)
}

// SetTitle sets the key title; "" restores the default.
func (b Button) SetTitle(ctx context.Context, title string) error {
	if !b.Valid() {
		return ErrSlotUnavailable
	}
	return b.src.SetTitle(ctx, b.Context, title)
}

// Option configures a Grid.
type Option func(*Grid)

// WithAction limits the grid to keys carrying the given action UUID.
func WithAction(action string) Option {
	return func(g *Grid) {
		g.action = action
	}
}

// Grid is the ordered set of keys of one device.
type Grid struct {
	src    Source
	device protocol.Device
	action string

	mu      sync.Mutex
	buttons []Button
	owned   map[string]struct{}
	filled  int
	ready   chan struct{}
	closed  chan struct{}
	unsubs  []func()
}

// New starts tracking the keys of device. Call Close to stop.
func New(src Source, device protocol.Device, opts ...Option) *Grid {
	g := &Grid{
		src:     src,
		device:  device,
		buttons: make([]Button, device.Size.Keys()),
		owned:   make(map[string]struct{}),
		ready:   make(chan struct{}),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	if len(g.buttons) == 0 {
		// Nothing to wait for on a device without keys
		close(g.ready)
	}

	g.unsubs = append(g.unsubs,
		src.OnWillAppear(g.handleWillAppear),
		src.OnWillDisappear(g.handleWillDisappear),
	)
	return g
}

// Device returns the device the grid belongs to.
func (g *Grid) Device() protocol.Device {
	return g.device
}

// Len returns the number of addressable slots.
func (g *Grid) Len() int {
	return len(g.buttons)
}

// Button returns slot i. The zero Button is returned for unreported or out of
// range slots.
func (g *Grid) Button(i int) Button {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.buttons) {
		return Button{}
	}
	return g.buttons[i]
}

// Index maps a key press to a slot. It fails for presses from another device
// and for coordinates outside the layout.
func (g *Grid) Index(deviceID string, c protocol.Coordinates) (int, bool) {
	if deviceID != g.device.ID {
		return 0, false
	}
	size := g.device.Size
	if c.Column < 0 || c.Row < 0 || c.Column >= size.Columns || c.Row >= size.Rows {
		return 0, false
	}
	return c.Row*size.Columns + c.Column, true
}

// Owns reports whether context has ever been part of this grid's layout.
func (g *Grid) Owns(context string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.owned[context]
	return ok
}

// Full reports whether every slot is currently reported.
func (g *Grid) Full() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.filled == len(g.buttons)
}

// WaitFullLayout blocks until every slot has been reported, ctx is done or the
// grid is closed.
func (g *Grid) WaitFullLayout(ctx context.Context) error {
	g.mu.Lock()
	ready := g.ready
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-g.closed:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d keys on %s: %w", len(g.buttons), g.device.ID, ctx.Err())
	}
}

// SetDisplay paints image on slot i.
func (g *Grid) SetDisplay(ctx context.Context, i int, image string) error {
	if g.isClosed() {
		return ErrClosed
	}
	return g.Button(i).SetImage(ctx, image)
}

// Clear resets both image and title of slot i.
func (g *Grid) Clear(ctx context.Context, i int) error {
	if g.isClosed() {
		return ErrClosed
	}
	b := g.Button(i)
	if err := b.SetImage(ctx, ""); err != nil {
		return err
	}
	return b.SetTitle(ctx, "")
}

// Close stops tracking. It is safe to call more than once.
func (g *Grid) Close() {
	g.mu.Lock()
	select {
	case <-g.closed:
		g.mu.Unlock()
		return
	default:
		close(g.closed)
	}
	unsubs := g.unsubs
	g.unsubs = nil
	g.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (g *Grid) isClosed() bool {
	select {
	case <-g.closed:
		return true
	default:
		return false
	}
}

func (g *Grid) accepts(ev protocol.AppearanceEvent) (int, bool) {
	if g.action != "" && ev.Action != g.action {
		return 0, false
	}
	if !ev.Payload.IsKeypad() {
		return 0, false
	}
	return g.Index(ev.Device, ev.Payload.Coordinates)
}

func (g *Grid) handleWillAppear(ev protocol.AppearanceEvent) {
	i, ok := g.accepts(ev)
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isClosed() {
		return
	}

	if g.buttons[i].Context == "" {
		g.filled++
	}
	g.buttons[i] = Button{
		Context:     ev.Context,
		Index:       i,
		Coordinates: ev.Payload.Coordinates,
		src:         g.src,
	}
	g.owned[ev.Context] = struct{}{}

	if g.filled == len(g.buttons) {
		select {
		case <-g.ready:
		default:
			close(g.ready)
		}
	}
}

func (g *Grid) handleWillDisappear(ev protocol.AppearanceEvent) {
	i, ok := g.accepts(ev)
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.buttons[i].Context != ev.Context {
		return
	}

	wasFull := g.filled == len(g.buttons)
	g.buttons[i] = Button{}
	g.filled--
	if wasFull {
		// Layout is incomplete again; later waiters block until it refills
		g.ready = make(chan struct{})
	}
}
