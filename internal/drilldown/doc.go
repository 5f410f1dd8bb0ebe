// Package drilldown shows a list of items across the keys of a device and
// resolves the user's choice.
//
// A session switches the device to a drill-down profile whose keys all carry
// the plugin's item action, waits until the host has reported every key, then
// paints:
//
//	slot 0                close control
//	slots 1..n            items of the current page
//	slots len-2, len-1    previous / next, only when the items span pages
//
// Pressing close, selecting an item or the keys disappearing because the user
// left the profile all end the session through the same teardown, which
// unsubscribes from the connection, cancels the page being painted, returns
// the device to its previous profile and resolves the outcome exactly once.
//
// Usage:
//
//	dd := drilldown.New(factory, device, drilldown.ControllerFuncs[string]{
//	    Title: func(s string) string { return s },
//	})
//	res, err := dd.Show(ctx, []string{"alpha", "beta", "gamma"})
//	if err != nil {
//	    return err
//	}
//	if res.Selected {
//	    logging.Info("Picked", zap.String("item", res.Value))
//	}
package drilldown
