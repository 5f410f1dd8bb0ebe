package drilldown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/deckdrill/internal/grid"
	"github.com/muurk/deckdrill/internal/images"
	"github.com/muurk/deckdrill/internal/logging"
	"github.com/muurk/deckdrill/internal/pager"
	"github.com/muurk/deckdrill/internal/protocol"
)

var (
	// ErrDisposed is returned when a closed session is used again.
	ErrDisposed = errors.New("drill-down session disposed")

	// ErrNoProfile is returned by Show when no drill-down profile is configured
	// for the device type.
	ErrNoProfile = errors.New("no drill-down profile for device")
)

// closeSlot is the grid slot of the close control.
const closeSlot = 0

// State is the lifecycle stage of a session.
type State int

const (
	// StateInitializing lasts until Show has rendered the first page.
	StateInitializing State = iota
	// StateActive means key presses are routed to the session.
	StateActive
	// StateClosed is terminal; the outcome has resolved.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of a session. Selected is false when the session
// closed without a selection.
type Result[T any] struct {
	Selected bool
	Value    T
}

// Session shows items on one device and resolves the user's choice.
type Session[T any] struct {
	conn       Connection
	pluginUUID string
	device     protocol.Device
	profile    string
	controller Controller[T]
	grid       *grid.Grid

	restoreTimeout time.Duration

	// ctx lives as long as the session; every render scope derives from it.
	ctx    context.Context
	cancel context.CancelFunc

	// showMu serializes the setup phase of Show.
	showMu sync.Mutex

	mu           sync.Mutex
	state        State
	pager        *pager.Pager[T]
	renderCancel context.CancelFunc
	unsubs       []func()
	subscribed   bool
	switched     bool
	result       Result[T]
	resolved     bool
	done         chan struct{}
}

// New creates a session for device. The grid starts tracking keys right away
// so that keys reported in reply to the profile switch are not missed.
func New[T any](f *Factory, device protocol.Device, controller Controller[T]) *Session[T] {
	var opts []grid.Option
	if f.itemAction != "" {
		opts = append(opts, grid.WithAction(f.itemAction))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session[T]{
		conn:           f.conn,
		pluginUUID:     f.pluginUUID,
		device:         device,
		profile:        f.Profile(device.Type),
		controller:     controller,
		grid:           grid.New(f.conn, device, opts...),
		restoreTimeout: f.restoreTimeout,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Device returns the device the session runs on.
func (s *Session[T]) Device() protocol.Device {
	return s.device
}

// Profile returns the drill-down profile the session switches to.
func (s *Session[T]) Profile() string {
	return s.profile
}

// Grid returns the session's button grid.
func (s *Session[T]) Grid() *grid.Grid {
	return s.grid
}

// Show presents items and blocks until the session resolves. If ctx ends
// first the session is closed without a selection and ctx's error is returned
// along with that outcome.
func (s *Session[T]) Show(ctx context.Context, items []T) (Result[T], error) {
	if err := s.setup(ctx, items); err != nil {
		switch {
		case errors.Is(err, ErrDisposed):
			return Result[T]{}, err
		case errors.Is(err, grid.ErrClosed):
			// Closed while waiting for keys; the outcome is already resolved
		default:
			s.Dispose()
			r, _ := s.Result()
			return r, err
		}
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		s.Close()
		r, _ := s.Result()
		return r, ctx.Err()
	}
	r, _ := s.Result()
	return r, nil
}

func (s *Session[T]) setup(ctx context.Context, items []T) error {
	s.showMu.Lock()
	defer s.showMu.Unlock()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.cancelRenderLocked()
	if s.profile == "" {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoProfile, s.device.Type)
	}
	// The switch is sent under the lock so a concurrent teardown's restore
	// always follows it.
	s.switched = true
	err := s.conn.SwitchToProfile(ctx, s.pluginUUID, s.device.ID, s.profile)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("switch %s to profile %q: %w", s.device.ID, s.profile, err)
	}

	// Keys are reported by the read loop; the session lock stays free meanwhile
	if err := s.grid.WaitFullLayout(ctx); err != nil {
		return err
	}

	p, err := pager.New(s.grid.Len()-1, items)
	if err != nil {
		return fmt.Errorf("%d keys on %s: %w", s.grid.Len(), s.device.ID, err)
	}

	if err := s.grid.SetDisplay(ctx, closeSlot, images.Close); err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn("Failed to paint close control",
			zap.String("device", s.device.ID),
			zap.Error(err),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return grid.ErrClosed
	}
	if !s.subscribed {
		s.unsubs = append(s.unsubs,
			s.conn.OnKeyUp(s.handleKeyUp),
			s.conn.OnWillDisappear(s.handleWillDisappear),
		)
		s.subscribed = true
	}
	s.pager = p
	s.setStateLocked(StateActive)
	s.renderLocked()

	logging.Info("Drill-down shown",
		zap.String("device", s.device.ID),
		zap.String("profile", s.profile),
		zap.Int("items", p.Len()),
		zap.Int("pages", p.PageCount()),
	)
	return nil
}

// Close ends the session without a selection unless one was already made.
// It is safe to call more than once.
func (s *Session[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// CloseWithResult ends the session with v as the selection. Only the first
// outcome counts.
func (s *Session[T]) CloseWithResult(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.resolveLocked(Result[T]{Selected: true, Value: v})
	s.teardownLocked()
}

// Dispose tears the session down synchronously. It is safe to call any
// number of times.
func (s *Session[T]) Dispose() {
	s.Close()
}

// Done is closed once the session is torn down and its outcome resolved.
func (s *Session[T]) Done() <-chan struct{} {
	return s.done
}

// Result returns the outcome and whether it has resolved.
func (s *Session[T]) Result() (Result[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.resolved
}

// State returns the lifecycle stage.
func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session[T]) setStateLocked(to State) {
	if s.state == to {
		return
	}
	logging.LogSessionTransition(s.device.ID, s.state.String(), to.String())
	s.state = to
}

func (s *Session[T]) resolveLocked(r Result[T]) {
	if s.resolved {
		return
	}
	s.result = r
	s.resolved = true
}

func (s *Session[T]) cancelRenderLocked() {
	if s.renderCancel != nil {
		s.renderCancel()
		s.renderCancel = nil
	}
}

// teardownLocked is the single exit path of a session.
func (s *Session[T]) teardownLocked() {
	if s.state == StateClosed {
		return
	}
	s.setStateLocked(StateClosed)

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.cancelRenderLocked()
	s.cancel()
	s.grid.Close()

	if s.switched {
		ctx, cancel := context.WithTimeout(context.Background(), s.restoreTimeout)
		if err := s.conn.SwitchToProfile(ctx, s.pluginUUID, s.device.ID, ""); err != nil {
			logging.Warn("Failed to restore previous profile",
				zap.String("device", s.device.ID),
				zap.Error(err),
			)
		}
		cancel()
	}

	s.resolveLocked(Result[T]{})
	close(s.done)

	logging.Info("Drill-down closed",
		zap.String("device", s.device.ID),
		zap.Bool("selected", s.result.Selected),
	)
}

// renderLocked paints the current page in a fresh cancellation scope,
// cancelling the previous one first.
func (s *Session[T]) renderLocked() {
	s.cancelRenderLocked()
	ctx, cancel := context.WithCancel(s.ctx)
	s.renderCancel = cancel

	p := s.pager
	items := p.Items()
	length := s.grid.Len()
	reserved := p.ReservedNavigationSlots()
	hasPrevious, hasNext := p.HasPrevious(), p.HasNext()
	page := p.CurrentPage()

	var g errgroup.Group
	for slot := 1; slot < length-reserved; slot++ {
		if i := slot - 1; i < len(items) {
			item := items[i]
			button := s.grid.Button(slot)
			g.Go(func() error {
				return s.slotError(slot, s.controller.OnShow(ctx, s, button, item))
			})
		} else {
			g.Go(func() error {
				return s.slotError(slot, s.grid.Clear(ctx, slot))
			})
		}
	}
	if reserved > 0 {
		g.Go(func() error {
			return s.slotError(length-2, s.paintNavigation(ctx, length-2, hasPrevious, images.Left))
		})
		g.Go(func() error {
			return s.slotError(length-1, s.paintNavigation(ctx, length-1, hasNext, images.Right))
		})
	}

	go func() {
		_ = g.Wait()
		cancel()
		logging.Debug("Page rendered",
			zap.String("device", s.device.ID),
			zap.Int("page", page),
		)
	}()
}

func (s *Session[T]) paintNavigation(ctx context.Context, slot int, available bool, glyph string) error {
	if !available {
		return s.grid.Clear(ctx, slot)
	}
	if err := s.grid.SetDisplay(ctx, slot, glyph); err != nil {
		return err
	}
	return s.grid.Button(slot).SetTitle(ctx, "")
}

// slotError logs a failed slot update. Cancellation is expected when a newer
// page replaces this one.
func (s *Session[T]) slotError(slot int, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	logging.Warn("Failed to render slot",
		zap.String("device", s.device.ID),
		zap.Int("slot", slot),
		zap.Error(err),
	)
	return err
}

func (s *Session[T]) handleKeyUp(ev protocol.KeyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return
	}
	slot, ok := s.grid.Index(ev.Device, ev.Payload.Coordinates)
	if !ok || !s.grid.Owns(ev.Context) {
		logging.Debug("Ignoring key press",
			zap.String("device", ev.Device),
			zap.String("context", ev.Context),
			zap.Int("column", ev.Payload.Coordinates.Column),
			zap.Int("row", ev.Payload.Coordinates.Row),
		)
		return
	}

	if slot == closeSlot {
		s.teardownLocked()
		return
	}

	length := s.grid.Len()
	if s.pager.ReservedNavigationSlots() > 0 {
		switch slot {
		case length - 1:
			if s.pager.MoveNext() {
				s.renderLocked()
			}
			return
		case length - 2:
			if s.pager.MovePrevious() {
				s.renderLocked()
			}
			return
		}
	}

	items := s.pager.Items()
	if i := slot - 1; i < len(items) {
		go s.selected(items[i])
	}
}

func (s *Session[T]) selected(item T) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Panic in selection handler",
				zap.String("device", s.device.ID),
				zap.Any("panic", r),
			)
		}
	}()

	if err := s.controller.OnSelected(s.ctx, s, item); err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn("Selection handler failed",
			zap.String("device", s.device.ID),
			zap.Error(err),
		)
	}
}

// handleWillDisappear tears down when one of the session's keys goes away,
// which means the profile was changed from outside.
func (s *Session[T]) handleWillDisappear(ev protocol.AppearanceEvent) {
	if ev.Device != s.device.ID || !s.grid.Owns(ev.Context) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	logging.Info("Drill-down keys reassigned",
		zap.String("device", s.device.ID),
		zap.String("context", ev.Context),
	)
	s.teardownLocked()
}
