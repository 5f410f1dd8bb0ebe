package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/deckdrill/internal/config"
	"github.com/muurk/deckdrill/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var (
	forceInit bool
	rawShow   bool
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with an example picker",
	Example: `  # Write the default location
  deckdrill config init

  # Write somewhere else, replacing an existing file
  deckdrill config init --config ./deckdrill.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.ExampleRegistry().SaveFile(path); err != nil {
			return err
		}
		printPanel(cmd, ui.NewPanel("configuration created", ui.SuccessMarker+" "+path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.LoadFile(path)
		if err != nil {
			printPanel(cmd, ui.NewPanel("configuration", path).Fail(err))
			return err
		}

		if rawShow || !ui.IsTerminal() {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}

		p := ui.NewPanel("configuration", path)
		p.Add("Default profile", valueOr(cfg.DefaultProfile, "(none)"))
		for _, key := range sortedKeys(cfg.Profiles) {
			p.Add("Profile "+key, cfg.Profiles[key])
		}
		for _, action := range sortedKeys(cfg.Pickers) {
			picker := cfg.Pickers[action]
			p.Addf(action, "%d items: %s", len(picker.Items), strings.Join(picker.Items, ", "))
		}
		p.Add("Log level", valueOr(cfg.Preferences.LogLevel, "(silent)"))
		p.Add("Log file", valueOr(cfg.Preferences.LogFile, "(stdout)"))
		p.Add("Restore timeout", cfg.RestoreTimeout().String())
		printPanel(cmd, p)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	configShowCmd.Flags().BoolVar(&rawShow, "raw", false, "Print YAML instead of a summary")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func printPanel(cmd *cobra.Command, p *ui.Panel) {
	fmt.Fprintln(cmd.OutOrStdout(), p.Render())
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
