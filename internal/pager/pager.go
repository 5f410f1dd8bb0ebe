// Package pager splits a fixed item slice into pages that fit a button grid.
//
// The pager knows nothing about devices. It is given the number of slots left
// once the close control is accounted for and decides whether the items fit on
// one page or whether two slots have to be given up for page navigation.
package pager

import (
	"errors"
	"fmt"
)

// NavigationSlots is the number of slots reserved for the previous and next
// controls whenever the items span more than one page.
const NavigationSlots = 2

// ErrTooFewSlots is returned when the items need paging but the grid cannot
// hold both navigation controls and at least one item.
var ErrTooFewSlots = errors.New("too few slots for paging")

// Pager tracks the current page over items. It is not safe for concurrent use;
// the drill-down session serializes access.
type Pager[T any] struct {
	items    []T
	pageSize int
	reserved int
	page     int
}

// New creates a pager for items over slots usable button slots.
// The slice is referenced, not copied, and must not change while the pager is
// in use.
func New[T any](slots int, items []T) (*Pager[T], error) {
	if slots < 1 {
		return nil, fmt.Errorf("%w: %d slots", ErrTooFewSlots, slots)
	}

	p := &Pager[T]{items: items, pageSize: slots}
	if len(items) > slots {
		if slots <= NavigationSlots {
			return nil, fmt.Errorf("%w: %d slots for %d items", ErrTooFewSlots, slots, len(items))
		}
		p.reserved = NavigationSlots
		p.pageSize = slots - NavigationSlots
	}
	return p, nil
}

// Len returns the total number of items.
func (p *Pager[T]) Len() int {
	return len(p.items)
}

// PageSize returns how many items a full page holds.
func (p *Pager[T]) PageSize() int {
	return p.pageSize
}

// PageCount returns the number of pages; an empty pager has one empty page.
func (p *Pager[T]) PageCount() int {
	if len(p.items) == 0 {
		return 1
	}
	return (len(p.items) + p.pageSize - 1) / p.pageSize
}

// CurrentPage returns the 0-based page index.
func (p *Pager[T]) CurrentPage() int {
	return p.page
}

// Items returns the items on the current page. The returned slice aliases the
// original items.
func (p *Pager[T]) Items() []T {
	start := p.page * p.pageSize
	end := min(len(p.items), start+p.pageSize)
	if start >= end {
		return nil
	}
	return p.items[start:end]
}

// HasPrevious reports whether a page exists before the current one.
func (p *Pager[T]) HasPrevious() bool {
	return p.page > 0
}

// HasNext reports whether a page exists after the current one.
func (p *Pager[T]) HasNext() bool {
	return p.page < p.PageCount()-1
}

// NavigationButtonCount returns how many navigation controls the current page
// needs: 0, 1 at either end of a multi-page list, 2 in between.
func (p *Pager[T]) NavigationButtonCount() int {
	n := 0
	if p.HasPrevious() {
		n++
	}
	if p.HasNext() {
		n++
	}
	return n
}

// ReservedNavigationSlots returns the number of trailing grid slots that are
// never item slots. It stays at NavigationSlots on every page of a multi-page
// list so items do not shift position between pages.
func (p *Pager[T]) ReservedNavigationSlots() int {
	return p.reserved
}

// MoveNext advances one page. It reports false, without moving, on the last page.
func (p *Pager[T]) MoveNext() bool {
	if !p.HasNext() {
		return false
	}
	p.page++
	return true
}

// MovePrevious goes back one page. It reports false, without moving, on the
// first page.
func (p *Pager[T]) MovePrevious() bool {
	if !p.HasPrevious() {
		return false
	}
	p.page--
	return true
}
