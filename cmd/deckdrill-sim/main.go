// Deckdrill-sim emulates the Stream Deck application for one device so the
// deckdrill plugin can be tried without hardware.
//
// Usage:
//
//	deckdrill-sim [flags]
//
// With --plugin the simulator launches the plugin itself, passing the same
// registration arguments the host application would.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/deckdrill/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "deckdrill-sim",
	Short: "Stream Deck host simulator",
	Long: `A terminal simulator of the Stream Deck application for a single device.

The simulator listens for one plugin on a local websocket, reports the
device and places a picker key at the top left of the default profile.
Profile switches requested by the plugin replace the keys the way the
real application does. Move with the arrow keys and press with enter.

When stdout is not a terminal, or with --headless, the device is printed
after every change instead.`,
	Example: `  # Simulate a Mini and start the plugin
  deckdrill-sim --type mini --plugin ./deckdrill

  # Simulate a 4x4 grid on a fixed port and connect a plugin by hand
  deckdrill-sim --columns 4 --rows 4 --port 28196`,
	Version:      version.Version,
	SilenceUsage: true,
	RunE:         runSimulator,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "deckdrill-sim %s\n", version.Full())
	},
}
