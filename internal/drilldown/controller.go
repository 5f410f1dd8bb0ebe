package drilldown

import (
	"context"

	"github.com/muurk/deckdrill/internal/grid"
)

// Controller supplies the item specific behaviour of a drill-down.
type Controller[T any] interface {
	// OnShow paints item on button. It runs concurrently with the other
	// slots of the page and ctx is cancelled when the page is replaced.
	OnShow(ctx context.Context, dd *Session[T], button grid.Button, item T) error

	// OnSelected runs on its own goroutine when item is pressed. It usually
	// ends with dd.CloseWithResult.
	OnSelected(ctx context.Context, dd *Session[T], item T) error
}

// ControllerFuncs adapts plain functions to Controller. A nil Show sets the
// item's title through Title; a nil Selected closes with the item.
type ControllerFuncs[T any] struct {
	Show     func(ctx context.Context, dd *Session[T], button grid.Button, item T) error
	Selected func(ctx context.Context, dd *Session[T], item T) error
	Title    func(item T) string
}

func (c ControllerFuncs[T]) OnShow(ctx context.Context, dd *Session[T], button grid.Button, item T) error {
	if c.Show != nil {
		return c.Show(ctx, dd, button, item)
	}
	if err := button.SetImage(ctx, ""); err != nil {
		return err
	}
	title := ""
	if c.Title != nil {
		title = c.Title(item)
	}
	return button.SetTitle(ctx, title)
}

func (c ControllerFuncs[T]) OnSelected(ctx context.Context, dd *Session[T], item T) error {
	if c.Selected != nil {
		return c.Selected(ctx, dd, item)
	}
	dd.CloseWithResult(item)
	return nil
}
