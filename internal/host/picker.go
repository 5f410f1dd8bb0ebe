package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/deckdrill/internal/drilldown"
	"github.com/muurk/deckdrill/internal/logging"
	"github.com/muurk/deckdrill/internal/protocol"
)

// ErrNoItems is returned when a picker has nothing to offer.
var ErrNoItems = errors.New("picker has no items")

// pickerSettings are the per-key settings a property inspector may store.
// Items there take precedence over the configuration file.
type pickerSettings struct {
	Items []string `json:"items"`
}

// pickerState is shared by every picker instance. Instances are recreated
// each time their key reappears, which happens after every drill-down.
type pickerState struct {
	mu     sync.Mutex
	titles map[string]string   // chosen item per key context
	busy   map[string]struct{} // devices with a drill-down running
}

func (s *pickerState) acquire(device string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[device]; ok {
		return false
	}
	s.busy[device] = struct{}{}
	return true
}

func (s *pickerState) release(device string) {
	s.mu.Lock()
	delete(s.busy, device)
	s.mu.Unlock()
}

func (s *pickerState) title(actionContext string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.titles[actionContext]
	return t, ok
}

func (s *pickerState) setTitle(actionContext, title string) {
	s.mu.Lock()
	s.titles[actionContext] = title
	s.mu.Unlock()
}

// Picker drills down into a list of strings and shows the chosen one as the
// title of the key that started it.
type Picker struct {
	BaseAction
	ac    ActionContext
	state *pickerState

	// done is signalled after each drill-down; tests use it.
	done func(drilldown.Result[string], error)
}

// NewPickerFactory returns the factory for the picker action.
func NewPickerFactory() ActionFactory {
	return newPickerFactory(nil)
}

func newPickerFactory(done func(drilldown.Result[string], error)) ActionFactory {
	state := &pickerState{
		titles: make(map[string]string),
		busy:   make(map[string]struct{}),
	}
	return func(ac ActionContext) Action {
		return &Picker{ac: ac, state: state, done: done}
	}
}

// OnWillAppear restores the last chosen title.
func (p *Picker) OnWillAppear(ctx context.Context, ev protocol.AppearanceEvent) error {
	title, ok := p.state.title(ev.Context)
	if !ok {
		return nil
	}
	conn := p.ac.Host.Conn()
	if conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, feedbackTimeout)
	defer cancel()
	return conn.SetTitle(ctx, ev.Context, title)
}

// OnKeyUp starts the drill-down on its own goroutine; the handler runs on the
// connection's read loop, which the drill-down needs to receive key events.
func (p *Picker) OnKeyUp(ctx context.Context, ev protocol.KeyEvent) error {
	items, err := p.items(ev.Payload.Settings)
	if err != nil {
		return err
	}

	device, ok := p.ac.Host.Device(ev.Device)
	if !ok {
		return fmt.Errorf("unknown device %s", ev.Device)
	}
	if !p.state.acquire(device.ID) {
		logging.Debug("Drill-down already running", zap.String("device", device.ID))
		return nil
	}

	go p.run(ctx, device, ev.Context, items)
	return nil
}

func (p *Picker) items(settings json.RawMessage) ([]string, error) {
	if len(settings) > 0 {
		var s pickerSettings
		if err := json.Unmarshal(settings, &s); err != nil {
			return nil, fmt.Errorf("picker settings: %w", err)
		}
		if len(s.Items) > 0 {
			return s.Items, nil
		}
	}
	if picker := p.ac.Host.Config().GetPicker(p.ac.Action); picker != nil && len(picker.Items) > 0 {
		return picker.Items, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoItems, p.ac.Action)
}

func (p *Picker) run(ctx context.Context, device protocol.Device, launcher string, items []string) {
	defer p.state.release(device.ID)

	h := p.ac.Host
	dd := drilldown.New(h.Factory(), device, drilldown.ControllerFuncs[string]{
		Title: func(item string) string { return item },
	})
	res, err := dd.Show(ctx, items)
	if p.done != nil {
		defer p.done(res, err)
	}

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Warn("Drill-down failed",
				zap.String("device", device.ID),
				zap.Error(err),
			)
			h.Alert(launcher)
		}
		return
	}
	if !res.Selected {
		return
	}

	logging.Info("Item picked",
		zap.String("device", device.ID),
		zap.String("item", res.Value),
	)
	p.state.setTitle(launcher, res.Value)

	conn := h.Conn()
	wctx, cancel := context.WithTimeout(ctx, feedbackTimeout)
	defer cancel()
	if err := conn.SetTitle(wctx, launcher, res.Value); err != nil {
		logging.Warn("Failed to set picker title", zap.Error(err))
		return
	}
	if picker := h.Config().GetPicker(p.ac.Action); picker != nil && picker.ShowOk {
		if err := conn.ShowOk(wctx, launcher); err != nil {
			logging.Debug("Failed to show ok", zap.Error(err))
		}
	}
}
