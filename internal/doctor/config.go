package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rileyhilliard/cw/internal/config"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
)

// ConfigFileCheck reports which config file is in use.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return CategoryConfig }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    cwerrors.Short(err),
			Suggestion: "Check the --config path, or run 'cw init' to create a config",
		}
	}
	if path == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No config file found, using defaults and CW_* environment",
			Suggestion: "Run 'cw init' to create a .cw.yaml config file",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("Config file: %s", path)}
}

// ConfigSchemaCheck validates the effective config, after overrides.
type ConfigSchemaCheck struct {
	Config *config.Config
	Err    error // load error, if loading failed
}

func (c *ConfigSchemaCheck) Name() string     { return "config_schema" }
func (c *ConfigSchemaCheck) Category() string { return CategoryConfig }

func (c *ConfigSchemaCheck) Run(context.Context) CheckResult {
	if c.Err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Failed to load config: %s", cwerrors.Short(c.Err)),
			Suggestion: "Check the YAML syntax in your config file",
		}
	}
	if c.Config == nil {
		return CheckResult{Status: StatusFail, Message: "No config to validate"}
	}
	if err := config.Validate(c.Config); err != nil {
		res := CheckResult{Status: StatusFail, Message: fmt.Sprintf("Schema error: %s", cwerrors.Short(err))}
		var cwErr *cwerrors.Error
		if errors.As(err, &cwErr) {
			res.Suggestion = cwErr.Suggestion
		}
		return res
	}
	return CheckResult{Status: StatusPass, Message: "Schema valid"}
}
