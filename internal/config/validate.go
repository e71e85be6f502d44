package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rileyhilliard/cw/internal/errors"
)

// Window bounds for metric history. Outside this range the sparklines are
// either useless or the snapshot gets heavy.
const (
	MinMetricsWindow = 10
	MaxMetricsWindow = 1000
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but cw only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade cw to a newer release.")
	}

	checks := []struct {
		section string
		fn      func() error
	}{
		{"server", func() error { return validateServer(cfg.Server) }},
		{"transport", func() error { return validateTransport(cfg.Transport) }},
		{"polling", func() error { return validatePolling(cfg.Polling) }},
		{"metrics", func() error { return validateMetrics(cfg.Metrics) }},
		{"alerts", func() error { return validateAlerts(cfg.Alerts) }},
		{"logging", func() error { return validateLogging(cfg.Logging) }},
	}
	for _, c := range checks {
		if err := c.fn(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				fmt.Sprintf("Check the '%s' section in your .cw.yaml.", c.section))
		}
	}

	return nil
}

func validateServer(s ServerConfig) error {
	if s.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url '%s' isn't a valid URL: %v", s.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url '%s' needs an http:// or https:// scheme", s.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("server.base_url '%s' has no host", s.BaseURL)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("server.timeout can't be negative")
	}
	return nil
}

func validateTransport(t TransportConfig) error {
	if t.ReconnectDelay < 0 {
		return fmt.Errorf("transport.reconnect_delay can't be negative")
	}
	if t.MaxReconnectAttempts < 0 {
		return fmt.Errorf("transport.max_reconnect_attempts can't be negative")
	}
	if t.PingInterval < 0 || t.PongWait < 0 || t.WriteWait < 0 {
		return fmt.Errorf("transport ping/pong/write timings can't be negative")
	}
	if t.PingInterval > 0 && t.PongWait > 0 && t.PingInterval >= t.PongWait {
		return fmt.Errorf("transport.ping_interval (%v) must be shorter than transport.pong_wait (%v) or the read deadline expires first", t.PingInterval, t.PongWait)
	}
	return nil
}

func validatePolling(p PollingConfig) error {
	if p.Interval <= 0 {
		return fmt.Errorf("polling.interval must be positive - try something like '30s'")
	}
	if p.Interval < time.Second {
		return fmt.Errorf("polling.interval '%v' is too aggressive - use at least 1s", p.Interval)
	}
	switch p.Mode {
	case PollAlways, PollFallback, "":
	default:
		return fmt.Errorf("polling.mode '%s' isn't valid - use 'always' or 'fallback'", p.Mode)
	}
	return nil
}

func validateMetrics(m MetricsConfig) error {
	if m.Window < MinMetricsWindow || m.Window > MaxMetricsWindow {
		return fmt.Errorf("metrics.window %d is out of range - use %d to %d", m.Window, MinMetricsWindow, MaxMetricsWindow)
	}
	return nil
}

func validateAlerts(a AlertsConfig) error {
	if a.DefaultDuration < 0 {
		return fmt.Errorf("alerts.default_duration can't be negative - use 0 to keep alerts until dismissed")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level '%s' isn't valid - use debug, info, warn, or error", l.Level)
	}
	validFormats := map[string]bool{"console": true, "json": true, "": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format '%s' isn't valid - use 'console' or 'json'", l.Format)
	}
	return nil
}
