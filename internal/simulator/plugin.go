package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/muurk/deckdrill/internal/host"
	"github.com/muurk/deckdrill/internal/logging"
	"github.com/muurk/deckdrill/internal/protocol"
	"github.com/muurk/deckdrill/internal/version"
)

// DefaultPluginUUID is the plugin UUID handed to spawned plugins.
const DefaultPluginUUID = "com.muurk.deckdrill"

// RegistrationParameters returns the arguments the host application would
// pass to a plugin connecting to this simulator.
func (s *Server) RegistrationParameters(pluginUUID string) (host.RegistrationParameters, error) {
	if pluginUUID == "" {
		pluginUUID = DefaultPluginUUID
	}
	info := protocol.RegistrationInfo{
		Application: protocol.Application{
			Platform: protocol.PlatformMac,
			Version:  "deckdrill-sim " + version.Version,
		},
		Plugin:           protocol.PluginInfo{UUID: pluginUUID, Version: version.Version},
		DevicePixelRatio: 1,
		Devices:          []protocol.Device{s.config.Device},
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return host.RegistrationParameters{}, fmt.Errorf("marshal registration info: %w", err)
	}
	return host.RegistrationParameters{
		Port:          s.Port(),
		PluginUUID:    pluginUUID,
		RegisterEvent: s.config.RegisterEvent,
		Info:          string(raw),
	}, nil
}

// SpawnPlugin starts a plugin executable the way the host application does.
// The process is killed when ctx ends. Its output goes to stderrPath, or is
// discarded when stderrPath is empty, so it does not draw over the TUI.
func (s *Server) SpawnPlugin(ctx context.Context, path, stderrPath string) (*exec.Cmd, error) {
	params, err := s.RegistrationParameters("")
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, params.Args()...)
	if stderrPath != "" {
		f, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open plugin log: %w", err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start plugin %s: %w", path, err)
	}

	logging.Info("Plugin started",
		zap.String("path", path),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("port", params.Port),
	)
	go func() {
		err := cmd.Wait()
		logging.Info("Plugin exited", zap.String("path", path), zap.Error(err))
	}()
	return cmd, nil
}
