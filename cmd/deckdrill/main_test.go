package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/deckdrill/internal/config"
	"github.com/muurk/deckdrill/internal/host"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		configPath, forceInit, rawShow = "", false, false
		params = host.RegistrationParameters{}
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(host.NormalizeArgs(args))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deckdrill.yaml")

	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.GetPicker(config.ExamplePickerAction))

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")
	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)

	out, err := execute(t, "config", "show", "--config", path, "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "Bravo")
	assert.Contains(t, out, "DrillDownMini")
}

func TestConfigPath(t *testing.T) {
	out, err := execute(t, "config", "path", "--config", "/tmp/x.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.yaml\n", out)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "deckdrill ")
}

func TestPluginRequiresRegistrationParameters(t *testing.T) {
	_, err := execute(t, "-port", "28196")
	assert.ErrorIs(t, err, host.ErrMissingParameter)
}
