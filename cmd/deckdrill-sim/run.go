package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/deckdrill/internal/host"
	"github.com/muurk/deckdrill/internal/logging"
	"github.com/muurk/deckdrill/internal/protocol"
	"github.com/muurk/deckdrill/internal/simulator"
	"github.com/muurk/deckdrill/internal/ui"
)

// defaultLogFile keeps log output off the screen while the TUI is drawn.
const defaultLogFile = "deckdrill-sim.log"

var (
	deviceType   string
	columns      int
	rows         int
	deviceName   string
	listenHost   string
	port         int
	pluginPath   string
	pluginLog    string
	pickerAction string
	itemAction   string
	headless     bool
	logLevel     string
	logFile      string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&deviceType, "type", "streamdeck", "Device type (streamdeck, mini, xl, mobile, plus)")
	flags.IntVar(&columns, "columns", 0, "Key columns (default: from --type)")
	flags.IntVar(&rows, "rows", 0, "Key rows (default: from --type)")
	flags.StringVar(&deviceName, "name", "Simulator", "Device name reported to the plugin")
	flags.StringVar(&listenHost, "host", "127.0.0.1", "Listen address")
	flags.IntVar(&port, "port", 0, "Listen port (0 picks a free port)")
	flags.StringVar(&pluginPath, "plugin", "", "Plugin executable to launch")
	flags.StringVar(&pluginLog, "plugin-log", "", "File receiving the plugin's stdout and stderr")
	flags.StringVar(&pickerAction, "picker-action", host.PickerAction, "Action placed on the first key of the default profile")
	flags.StringVar(&itemAction, "item-action", host.ItemAction, "Action placed on drill-down profile keys")
	flags.BoolVar(&headless, "headless", false, "Print the device instead of drawing the TUI")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&logFile, "log-file", "", "Log file (default: "+defaultLogFile+" when drawing the TUI)")
}

func buildDevice() (protocol.Device, error) {
	t, ok := protocol.DeviceTypeFromKey(deviceType)
	if !ok {
		return protocol.Device{}, fmt.Errorf("unknown device type %q", deviceType)
	}
	size := t.DefaultSize()
	if columns > 0 {
		size.Columns = columns
	}
	if rows > 0 {
		size.Rows = rows
	}
	if size.Keys() == 0 {
		return protocol.Device{}, fmt.Errorf("device type %q has no keys; set --columns and --rows", deviceType)
	}
	return protocol.Device{
		DeviceInfo: protocol.DeviceInfo{Name: deviceName, Type: t, Size: size},
	}, nil
}

func runSimulator(cmd *cobra.Command, args []string) error {
	device, err := buildDevice()
	if err != nil {
		return err
	}

	interactive := !headless && ui.IsTerminal()
	opts := logging.Options{Level: logLevel, File: logFile}
	if interactive && opts.File == "" {
		opts.File = defaultLogFile
	}
	if err := logging.InitializeWithOptions(opts); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := simulator.New(simulator.Config{
		Host:         listenHost,
		Port:         port,
		Device:       device,
		PickerAction: pickerAction,
		ItemAction:   itemAction,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if pluginPath != "" {
		if _, err := srv.SpawnPlugin(ctx, pluginPath, pluginLog); err != nil {
			return err
		}
	} else {
		params, err := srv.RegistrationParameters("")
		if err != nil {
			return err
		}
		p := ui.NewPanel("deckdrill simulator", device.Type.String())
		p.Addf("Listening", "ws://%s:%d", listenHost, srv.Port())
		p.Addf("Keys", "%d x %d", device.Size.Columns, device.Size.Rows)
		p.Add("Register", params.RegisterEvent)
		fmt.Fprintln(cmd.ErrOrStderr(), p.Render())
		logging.Info("Waiting for plugin", zap.Strings("args", params.Args()))
	}

	if interactive {
		return simulator.RunTUI(ctx, srv)
	}
	return simulator.RunHeadless(ctx, srv, cmd.OutOrStdout())
}
