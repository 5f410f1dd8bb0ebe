package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/deckdrill/internal/config"
	"github.com/muurk/deckdrill/internal/host"
	"github.com/muurk/deckdrill/internal/logging"
)

var (
	params     host.RegistrationParameters
	configPath string
	logLevel   string
	logFile    string
	logFormat  string
)

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&params.Port, host.ArgPort, 0, "Host application websocket port")
	flags.StringVar(&params.PluginUUID, host.ArgPluginUUID, "", "Plugin UUID assigned by the host")
	flags.StringVar(&params.RegisterEvent, host.ArgRegisterEvent, "", "Registration event name")
	flags.StringVar(&params.Info, host.ArgInfo, "", "Registration info JSON")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: $"+config.PathEnvVar+" or the user config dir)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	flags.StringVar(&logFile, "log-file", "", "Log file; overrides the config file")
	flags.StringVar(&logFormat, "log-format", "console", "Log encoding (console, json)")
}

func loadConfig() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadRegistry()
}

func runPlugin(cmd *cobra.Command, args []string) error {
	if err := params.Validate(); err != nil {
		_ = cmd.Usage()
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	opts := logging.Options{Level: logLevel, File: logFile, Encoding: logFormat}
	if opts.Level == "" {
		opts.Level = cfg.Preferences.LogLevel
	}
	if opts.File == "" {
		opts.File = cfg.Preferences.LogFile
	}
	if err := logging.InitializeWithOptions(opts); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	registry := host.NewRegistry()
	registry.MustRegister(host.PickerAction, host.NewPickerFactory())
	for action := range cfg.Pickers {
		if action == host.PickerAction {
			continue
		}
		if err := registry.Register(action, host.NewPickerFactory()); err != nil {
			return err
		}
	}

	h, err := host.New(params, registry, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("Starting plugin",
		zap.Int("port", params.Port),
		zap.String("plugin", params.PluginUUID),
	)
	err = h.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logging.Info("Plugin stopped", zap.Error(err))
	return err
}
