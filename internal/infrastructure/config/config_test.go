package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultConnectURL, cfg.Connect.URL)
	assert.True(t, cfg.Connect.WebSocket)
	assert.Equal(t, 500*time.Millisecond, cfg.Connect.PollInterval)
	assert.Equal(t, time.Second, cfg.Connect.BackoffBase)
	assert.Equal(t, 20*time.Second, cfg.Connect.BackoffMax)

	assert.Equal(t, "auto", cfg.Host.Env)
	assert.Equal(t, 30*time.Second, cfg.Host.ReloadTimeout)

	assert.Equal(t, "console,repl", cfg.Output.Print)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
	assert.Empty(t, cfg.Status.Addr)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("BRIDGE_CONNECT_URL", "http://localhost:9500/figwheel-connect")
	t.Setenv("BRIDGE_WEBSOCKET", "false")
	t.Setenv("BRIDGE_POLL_INTERVAL", "250ms")
	t.Setenv("BRIDGE_HOST_ENV", "browser")
	t.Setenv("BRIDGE_PAGE_URL", "http://localhost:3449/index.html")
	t.Setenv("BRIDGE_RELOAD_TIMEOUT", "5s")
	t.Setenv("BRIDGE_PRINT_OUTPUT", "repl")
	t.Setenv("BRIDGE_LOG_LEVEL", "fine")
	t.Setenv("BRIDGE_SEND_RPS", "12.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9500/figwheel-connect", cfg.Connect.URL)
	assert.False(t, cfg.Connect.WebSocket)
	assert.Equal(t, 250*time.Millisecond, cfg.Connect.PollInterval)
	assert.Equal(t, 12.5, cfg.Connect.SendRPS)
	assert.Equal(t, "browser", cfg.Host.Env)
	assert.Equal(t, "http://localhost:3449/index.html", cfg.Connect.PageURL)
	assert.Equal(t, 5*time.Second, cfg.Host.ReloadTimeout)
	assert.Equal(t, "repl", cfg.Output.Print)
	assert.Equal(t, "fine", cfg.Logging.Level)

	// untouched values keep their defaults
	assert.Equal(t, 20*time.Second, cfg.Connect.BackoffMax)
}

func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("BRIDGE_POLL_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	content := `
connect:
  url: ws://devbox:9500/figwheel-connect
  poll_interval: 1s
host:
  env: worker
  root_dir: /srv/app
session:
  file: /tmp/session.json
status:
  addr: 127.0.0.1:9630
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://devbox:9500/figwheel-connect", cfg.Connect.URL)
	assert.Equal(t, time.Second, cfg.Connect.PollInterval)
	assert.Equal(t, "worker", cfg.Host.Env)
	assert.Equal(t, "/srv/app", cfg.Host.RootDir)
	assert.Equal(t, "/tmp/session.json", cfg.Session.File)
	assert.Equal(t, "127.0.0.1:9630", cfg.Status.Addr)
	// defaults survive partial files
	assert.True(t, cfg.Connect.WebSocket)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.toml")
	content := `
[connect]
url = "http://devbox:9500/figwheel-connect"

[output]
print = "console"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://devbox:9500/figwheel-connect", cfg.Connect.URL)
	assert.Equal(t, "console", cfg.Output.Print)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))
	t.Setenv("BRIDGE_LOG_LEVEL", "warning")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "warning", cfg.Logging.Level)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bridge.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestPrintReceivers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "console,repl", want: []string{"console", "repl"}},
		{in: " repl , ", want: []string{"repl"}},
		{in: "", want: nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputConfig{Print: tt.in}.PrintReceivers())
	}
}
