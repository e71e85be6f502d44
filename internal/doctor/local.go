package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/rileyhilliard/cw/internal/config"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/prefs"
	"golang.org/x/term"
)

// PrefsCheck loads the preferences file.
type PrefsCheck struct {
	Path string
}

func (c *PrefsCheck) Name() string     { return "prefs" }
func (c *PrefsCheck) Category() string { return CategoryLocal }

func (c *PrefsCheck) Run(context.Context) CheckResult {
	if c.Path == "" {
		return CheckResult{Status: StatusWarn, Message: "No home directory, preferences won't be saved"}
	}
	p, err := prefs.Load(c.Path)
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    cwerrors.Short(err),
			Suggestion: fmt.Sprintf("Fix or delete %s; defaults are used meanwhile", c.Path),
		}
	}
	if _, err := os.Stat(c.Path); os.IsNotExist(err) {
		return CheckResult{Status: StatusPass, Message: "No preferences saved yet (theme auto)"}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("Preferences: theme %s", p.Theme)}
}

// TerminalCheck reports whether the dashboard can take over stdout.
type TerminalCheck struct {
	// IsTerminal defaults to term.IsTerminal on stdout.
	IsTerminal func() bool
}

func (c *TerminalCheck) Name() string     { return "terminal" }
func (c *TerminalCheck) Category() string { return CategoryLocal }

func (c *TerminalCheck) Run(context.Context) CheckResult {
	isTTY := c.IsTerminal
	if isTTY == nil {
		isTTY = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
	}
	if !isTTY() {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "stdout isn't a terminal",
			Suggestion: "'cw watch' will print summary lines instead of the dashboard",
		}
	}
	return CheckResult{Status: StatusPass, Message: "Terminal supports the dashboard"}
}

// Checks builds the standard check list. cfg may be nil when loading
// failed, in which case server checks are skipped.
func Checks(configPath string, cfg *config.Config, loadErr error, prefsPath string) []Check {
	checks := []Check{
		&ConfigFileCheck{ConfigPath: configPath},
		&ConfigSchemaCheck{Config: cfg, Err: loadErr},
	}
	if cfg != nil && loadErr == nil && config.Validate(cfg) == nil {
		checks = append(checks, &RESTCheck{Config: cfg}, &WebSocketCheck{Config: cfg})
	}
	return append(checks, &PrefsCheck{Path: prefsPath}, &TerminalCheck{})
}
