package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/cw/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".cw.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/cw"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. CW_SERVER_BASE_URL.
	EnvPrefix = "CW"
)

// Load reads config from the specified path. Environment variables
// override file values.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'cw init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .cw.yaml in current directory
// 3. .cw.yaml in parent directories (stops at git root or home)
// 4. ~/.config/cw/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		explicit = ExpandPath(explicit)
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && parent == home {
			// Don't go above home directory
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Stop at git root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from explicit or the found path. Without a
// file it returns defaults with environment overrides applied.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, source string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+source)
	}

	cfg.Server.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.Server.BaseURL), "/")
	cfg.Polling.Mode = strings.ToLower(cfg.Polling.Mode)
	cfg.Logging.File = ExpandPath(cfg.Logging.File)
	cfg.Server.Token = expandSecret(cfg.Server.Token)

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal, even when the file doesn't mention the key.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.ws_path", d.Server.WSPath)
	v.SetDefault("server.token", "")
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("transport.reconnect_delay", d.Transport.ReconnectDelay)
	v.SetDefault("transport.max_reconnect_attempts", d.Transport.MaxReconnectAttempts)
	v.SetDefault("transport.ping_interval", d.Transport.PingInterval)
	v.SetDefault("transport.pong_wait", d.Transport.PongWait)
	v.SetDefault("transport.write_wait", d.Transport.WriteWait)
	v.SetDefault("transport.topics", d.Transport.Topics)
	v.SetDefault("polling.interval", d.Polling.Interval)
	v.SetDefault("polling.mode", d.Polling.Mode)
	v.SetDefault("metrics.window", d.Metrics.Window)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("alerts.default_duration", d.Alerts.DefaultDuration)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", "")
}
