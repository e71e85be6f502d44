package cli

import (
	"testing"

	"github.com/rileyhilliard/cw/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefs_ShowDefaults(t *testing.T) {
	env := newCLIEnv(t)

	out, errOut, code := env.run("prefs", "show")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "theme: auto")
	assert.Contains(t, out, "file: "+env.prefs)
}

func TestPrefs_SetThenShow(t *testing.T) {
	env := newCLIEnv(t)

	out, errOut, code := env.run("prefs", "set", "theme", "Dark")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `theme set to "dark"`)

	_, errOut, code = env.run("prefs", "set", "remembered_username", "ops")
	require.Equal(t, 0, code, errOut)

	p, err := prefs.Load(env.prefs)
	require.NoError(t, err)
	assert.Equal(t, "dark", p.Theme)
	assert.Equal(t, "ops", p.RememberedUsername)

	out, _, code = env.run("--json", "prefs", "show")
	require.Equal(t, 0, code)
	data := decodeEnvelope(t, out).Data.(map[string]interface{})
	assert.Equal(t, "dark", data["theme"])
}

func TestPrefs_SetRejectsBadValues(t *testing.T) {
	env := newCLIEnv(t)

	_, errOut, code := env.run("prefs", "set", "theme", "neon")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "neon")

	_, _, code = env.run("prefs", "set", "font", "mono")
	assert.Equal(t, 1, code)
}
