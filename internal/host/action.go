package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/muurk/deckdrill/internal/protocol"
)

// Action is one instance of a plugin action on a key. Handlers run on the
// connection's read goroutine and must return quickly; long work such as a
// drill-down belongs on its own goroutine.
type Action interface {
	OnKeyDown(ctx context.Context, ev protocol.KeyEvent) error
	OnKeyUp(ctx context.Context, ev protocol.KeyEvent) error
	OnWillAppear(ctx context.Context, ev protocol.AppearanceEvent) error
	OnWillDisappear(ctx context.Context, ev protocol.AppearanceEvent) error
}

// BaseAction implements Action with no-ops for embedding.
type BaseAction struct{}

func (BaseAction) OnKeyDown(context.Context, protocol.KeyEvent) error { return nil }
func (BaseAction) OnKeyUp(context.Context, protocol.KeyEvent) error { return nil }
func (BaseAction) OnWillAppear(context.Context, protocol.AppearanceEvent) error { return nil }
func (BaseAction) OnWillDisappear(context.Context, protocol.AppearanceEvent) error { return nil }

// ActionContext identifies the key an action instance lives on.
type ActionContext struct {
	Host    *Host
	Action  string
	Context string
	Device  protocol.Device
}

// ActionFactory creates an action instance when its key appears.
type ActionFactory func(ac ActionContext) Action

// Registry maps action UUIDs from the plugin manifest to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ActionFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ActionFactory)}
}

// Register adds a factory for an action UUID.
func (r *Registry) Register(action string, factory ActionFactory) error {
	if action == "" || factory == nil {
		return fmt.Errorf("register action %q: empty uuid or factory", action)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[action]; exists {
		return fmt.Errorf("action %q already registered", action)
	}
	r.factories[action] = factory
	return nil
}

// MustRegister is Register for static setup; it panics on error.
func (r *Registry) MustRegister(action string, factory ActionFactory) {
	if err := r.Register(action, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for an action UUID.
func (r *Registry) Lookup(action string) (ActionFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[action]
	return f, ok
}

// Actions lists the registered action UUIDs in order.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for a := range r.factories {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
