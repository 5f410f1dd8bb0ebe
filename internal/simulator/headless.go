package simulator

import (
	"context"
	"fmt"
	"io"
)

// RunHeadless prints the device after every change until ctx ends. It is used
// when stdout is not a terminal.
func RunHeadless(ctx context.Context, server *Server, out io.Writer) error {
	last := ""
	for {
		snap := server.Snapshot()
		frame := RenderGrid(snap, -1, -1)
		if frame != last {
			profile := snap.Profile
			if profile == "" {
				profile = "default"
			}
			if _, err := fmt.Fprintf(out, "profile %s\n%s\n", profile, frame); err != nil {
				return err
			}
			last = frame
		}

		select {
		case <-ctx.Done():
			return nil
		case <-server.Updates():
		}
	}
}
