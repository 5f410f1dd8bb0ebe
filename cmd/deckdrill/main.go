// Deckdrill is a Stream Deck plugin that turns a single key into a paged
// drill-down menu.
//
// The host application starts the plugin with its registration parameters:
//
//	deckdrill -port 28196 -pluginUUID <uuid> -registerEvent registerPlugin -info <json>
//
// Picker keys read their items from the key settings or from the deckdrill
// configuration file. See 'deckdrill config --help'.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/deckdrill/internal/host"
	"github.com/muurk/deckdrill/internal/version"
)

func main() {
	rootCmd.SetArgs(host.NormalizeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "deckdrill",
	Short: "Drill-down menus for Stream Deck",
	Long: `A Stream Deck plugin that opens a paged drill-down menu on the whole device.

Pressing a picker key switches the device to the drill-down profile and
lays the configured items out over its keys. The first key closes the
menu; the last two page through long lists. Choosing an item returns to
the previous profile and shows the choice on the picker key.

The host application launches the plugin with -port, -pluginUUID,
-registerEvent and -info. Run it by hand only against deckdrill-sim.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPlugin,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "deckdrill %s (commit: %s, %s, %s)\n",
			info.Version, info.Commit, info.GoVersion, info.Platform)
	},
}
