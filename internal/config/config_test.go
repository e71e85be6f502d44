package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/cw/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, "/ws", cfg.Server.WSPath)
	assert.Equal(t, 5*time.Second, cfg.Transport.ReconnectDelay)
	assert.Equal(t, 5, cfg.Transport.MaxReconnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.Polling.Interval)
	assert.Equal(t, PollAlways, cfg.Polling.Mode)
	assert.Equal(t, 60, cfg.Metrics.Window)
	assert.Equal(t, 5*time.Second, cfg.Alerts.DefaultDuration)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ".cw.yaml")

	content := `
version: 1
server:
  base_url: https://cluster.example.com/
  token: abc123
  timeout: 3s
transport:
  reconnect_delay: 2s
  max_reconnect_attempts: 3
  topics: [nodes, metrics]
polling:
  interval: 1m
  mode: Fallback
metrics:
  window: 100
alerts:
  default_duration: 0s
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://cluster.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "abc123", cfg.Server.Token)
	assert.Equal(t, 3*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Transport.ReconnectDelay)
	assert.Equal(t, 3, cfg.Transport.MaxReconnectAttempts)
	assert.Equal(t, []string{"nodes", "metrics"}, cfg.Transport.Topics)
	assert.Equal(t, time.Minute, cfg.Polling.Interval)
	assert.Equal(t, PollFallback, cfg.Polling.Mode)
	assert.Equal(t, 100, cfg.Metrics.Window)
	assert.Equal(t, time.Duration(0), cfg.Alerts.DefaultDuration)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Untouched keys keep their defaults
	assert.Equal(t, "/ws", cfg.Server.WSPath)
	assert.Equal(t, 10*time.Second, cfg.Transport.WriteWait)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ".cw.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  base_url: http://a:1\n"), 0644))

	t.Setenv("CW_SERVER_BASE_URL", "http://b:2")
	t.Setenv("CW_POLLING_INTERVAL", "45s")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "http://b:2", cfg.Server.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Polling.Interval)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	bad := filepath.Join(t.TempDir(), ".cw.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFind(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0644))

		found, err := Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("parent directory stops at git root", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("version: 1\n"), 0644))
		sub := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(sub, 0755))

		chdir(t, sub)
		found, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, ConfigFileName), found)
	})
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	chdir(t, root)
	t.Setenv("HOME", root)
	t.Setenv("CW_SERVER_TOKEN", "from-env")

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "from-env", cfg.Server.Token)
	assert.Equal(t, 60, cfg.Metrics.Window)
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://localhost:8080", "/ws", "ws://localhost:8080/ws"},
		{"https://cluster.example.com", "", "wss://cluster.example.com/ws"},
		{"https://cluster.example.com/dashboard/", "stream", "wss://cluster.example.com/dashboard/stream"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := ServerConfig{BaseURL: tt.base, WSPath: tt.path}.WebSocketURL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults ok", func(*Config) {}, ""},
		{"future version", func(c *Config) { c.Version = 99 }, "from the future"},
		{"missing base url", func(c *Config) { c.Server.BaseURL = "" }, "base_url is required"},
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://x" }, "http:// or https://"},
		{"negative delay", func(c *Config) { c.Transport.ReconnectDelay = -time.Second }, "reconnect_delay"},
		{"ping after pong", func(c *Config) { c.Transport.PingInterval = time.Minute; c.Transport.PongWait = time.Second }, "ping_interval"},
		{"zero interval", func(c *Config) { c.Polling.Interval = 0 }, "polling.interval"},
		{"sub-second interval", func(c *Config) { c.Polling.Interval = 100 * time.Millisecond }, "too aggressive"},
		{"bad mode", func(c *Config) { c.Polling.Mode = "sometimes" }, "polling.mode"},
		{"window too small", func(c *Config) { c.Metrics.Window = 1 }, "metrics.window"},
		{"negative alert duration", func(c *Config) { c.Alerts.DefaultDuration = -1 }, "default_duration"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}

	assert.Error(t, Validate(nil))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("CW_TEST_DIR", "/var/log/cw")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "x", "y"), ExpandPath("~/x/y"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, "~other/x", ExpandPath("~other/x"))
	assert.Equal(t, "/var/log/cw/cw.log", ExpandPath("$CW_TEST_DIR/cw.log"))
}

func TestLoad_TokenFromEnvironment(t *testing.T) {
	t.Setenv("CLUSTER_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "cw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  token: ${CLUSTER_TOKEN}\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.Token)
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
