package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand_Defaults(t *testing.T) {
	// Equivalent of testing.T.Chdir (Go 1.24+) for older toolchains.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("FRAGREEL_CONFIG_PATH", "")

	out, err := runCommand(t, "config")
	require.NoError(t, err)

	assert.Contains(t, out, "Configuration source: defaults")
	assert.Contains(t, out, "server.address")
	assert.Contains(t, out, "0.0.0.0:5000")
	assert.Contains(t, out, "500 MiB")
	assert.Contains(t, out, "mp4, mov, avi")
}

func TestConfigCommand_FromFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fragreel.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 6100\n"), 0644))

	out, err := runCommand(t, "--config", path, "config")
	require.NoError(t, err)

	assert.Contains(t, out, "Configuration source: "+path)
	assert.Contains(t, out, "0.0.0.0:6100")
}

func TestConfigValidate_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fragreel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0644))

	_, err := runCommand(t, "--config", path, "config", "validate")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fragreel dev")
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Key", "Value"}, [][]string{{"a", "1"}, {"b"}})
	assert.Contains(t, out, "Key")
	assert.Contains(t, out, "a")
	assert.Empty(t, renderTable(nil, nil))
}
