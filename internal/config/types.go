package config

import (
	"net/url"
	"strings"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Polling modes.
const (
	// PollAlways refreshes every resource on every tick.
	PollAlways = "always"
	// PollFallback refreshes socket-pushed resources only while the
	// WebSocket is down. Users are always polled.
	PollFallback = "fallback"
)

// Config represents the complete .cw.yaml configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Polling   PollingConfig   `yaml:"polling" mapstructure:"polling"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Alerts    AlertsConfig    `yaml:"alerts" mapstructure:"alerts"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig points at the cluster API.
type ServerConfig struct {
	// BaseURL is the REST root, e.g. http://localhost:8080.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// WSPath is appended to the base URL (with ws/wss scheme) for the socket.
	WSPath string `yaml:"ws_path" mapstructure:"ws_path"`

	// Token is sent as a bearer token when set.
	Token string `yaml:"token" mapstructure:"token"`

	// Timeout bounds each REST request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TransportConfig controls the WebSocket connection.
type TransportConfig struct {
	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`

	// MaxReconnectAttempts caps automatic reconnects before giving up.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" mapstructure:"max_reconnect_attempts"`

	// PingInterval is how often the client pings the server.
	PingInterval time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`

	// PongWait is the read deadline extended by each pong.
	PongWait time.Duration `yaml:"pong_wait" mapstructure:"pong_wait"`

	// WriteWait bounds a single frame write.
	WriteWait time.Duration `yaml:"write_wait" mapstructure:"write_wait"`

	// Topics are subscribed on every (re)connect.
	Topics []string `yaml:"topics" mapstructure:"topics"`
}

// PollingConfig controls the REST refresh loop.
type PollingConfig struct {
	// Interval between refreshes.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Mode is "always" or "fallback".
	Mode string `yaml:"mode" mapstructure:"mode"`
}

// MetricsConfig controls metric history and client instrumentation.
type MetricsConfig struct {
	// Window is the ring buffer capacity per metric.
	Window int `yaml:"window" mapstructure:"window"`

	// Listen exposes Prometheus metrics on this address when set (e.g. :9108).
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// AlertsConfig controls the notification queue.
type AlertsConfig struct {
	// DefaultDuration applies to server alerts that carry no duration.
	// Zero keeps them until dismissed.
	DefaultDuration time.Duration `yaml:"default_duration" mapstructure:"default_duration"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level"`

	// Format: console or json.
	Format string `yaml:"format" mapstructure:"format"`

	// File, when set, receives logs instead of stderr.
	File string `yaml:"file" mapstructure:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
			WSPath:  "/ws",
			Timeout: 10 * time.Second,
		},
		Transport: TransportConfig{
			ReconnectDelay:       5 * time.Second,
			MaxReconnectAttempts: 5,
			PingInterval:         30 * time.Second,
			PongWait:             60 * time.Second,
			WriteWait:            10 * time.Second,
			Topics:               []string{},
		},
		Polling: PollingConfig{
			Interval: 30 * time.Second,
			Mode:     PollAlways,
		},
		Metrics: MetricsConfig{
			Window: 60,
		},
		Alerts: AlertsConfig{
			DefaultDuration: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// WebSocketURL derives the socket URL from the base URL: http becomes ws,
// https becomes wss, and WSPath is appended.
func (s ServerConfig) WebSocketURL() (string, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	path := s.WSPath
	if path == "" {
		path = "/ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}
