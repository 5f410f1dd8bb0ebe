package connection

import (
	"sync"
	"sync/atomic"
)

type subscription[E any] struct {
	fn     func(E)
	active atomic.Bool
}

// handlers is an ordered list of subscribers for one event type.
type handlers[E any] struct {
	mu   sync.Mutex
	subs []*subscription[E]
}

// add registers fn and returns its unsubscribe func. Unsubscribing is
// idempotent and may happen from inside a callback.
func (h *handlers[E]) add(fn func(E)) func() {
	s := &subscription[E]{fn: fn}
	s.active.Store(true)

	h.mu.Lock()
	h.subs = append(h.subs, s)
	h.mu.Unlock()

	return func() {
		if !s.active.CompareAndSwap(true, false) {
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, other := range h.subs {
			if other == s {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				break
			}
		}
	}
}

// dispatch calls every active subscriber in subscription order. The list is
// snapshotted so callbacks can subscribe or unsubscribe freely; a handler
// removed earlier in the same dispatch is skipped.
func (h *handlers[E]) dispatch(ev E) {
	h.mu.Lock()
	snapshot := make([]*subscription[E], len(h.subs))
	copy(snapshot, h.subs)
	h.mu.Unlock()

	for _, s := range snapshot {
		if s.active.Load() {
			s.fn(ev)
		}
	}
}

func (h *handlers[E]) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
