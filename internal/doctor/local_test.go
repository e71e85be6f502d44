package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/cw/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFileCheck_ExplicitMissing(t *testing.T) {
	res := (&ConfigFileCheck{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")}).Run(context.Background())
	assert.Equal(t, StatusFail, res.Status)
}

func TestConfigFileCheck_Explicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0600))

	res := (&ConfigFileCheck{ConfigPath: path}).Run(context.Background())
	assert.Equal(t, StatusPass, res.Status)
	assert.Contains(t, res.Message, path)
}

func TestConfigSchemaCheck(t *testing.T) {
	ok := (&ConfigSchemaCheck{Config: config.DefaultConfig()}).Run(context.Background())
	assert.Equal(t, StatusPass, ok.Status)

	bad := config.DefaultConfig()
	bad.Polling.Mode = "sometimes"
	res := (&ConfigSchemaCheck{Config: bad}).Run(context.Background())
	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "Schema error")

	res = (&ConfigSchemaCheck{Err: assert.AnError}).Run(context.Background())
	assert.Equal(t, StatusFail, res.Status)
}

func TestPrefsCheck(t *testing.T) {
	dir := t.TempDir()

	res := (&PrefsCheck{Path: filepath.Join(dir, "prefs.yaml")}).Run(context.Background())
	assert.Equal(t, StatusPass, res.Status)
	assert.Contains(t, res.Message, "No preferences")

	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: neon\n"), 0600))
	res = (&PrefsCheck{Path: path}).Run(context.Background())
	assert.Equal(t, StatusWarn, res.Status)
}

func TestTerminalCheck(t *testing.T) {
	res := (&TerminalCheck{IsTerminal: func() bool { return false }}).Run(context.Background())
	assert.Equal(t, StatusWarn, res.Status)

	res = (&TerminalCheck{IsTerminal: func() bool { return true }}).Run(context.Background())
	assert.Equal(t, StatusPass, res.Status)
}

func TestChecks_SkipsServerWhenConfigBroken(t *testing.T) {
	names := func(cs []Check) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Name())
		}
		return out
	}

	all := Checks("", config.DefaultConfig(), nil, "p")
	assert.Contains(t, names(all), "rest_api")
	assert.Contains(t, names(all), "websocket")

	broken := Checks("", nil, assert.AnError, "p")
	assert.NotContains(t, names(broken), "rest_api")
	assert.Contains(t, names(broken), "prefs")
}
