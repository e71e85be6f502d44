package cli

import (
	"testing"

	"github.com/rileyhilliard/cw/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelStart(t *testing.T) {
	env := newCLIEnv(t)

	out, errOut, code := env.run("model", "start", "phi3:mini")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Model phi3:mini: start requested")

	var got model.Model
	for _, m := range env.mock.State().Models {
		if m.Name == "phi3:mini" {
			got = m
		}
	}
	assert.Equal(t, model.ModelRunning, got.Status)
	assert.True(t, got.Ready)
}

func TestModelStart_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, errOut, code := env.run("--json", "model", "stop", "llama2:7b")
	require.Equal(t, 0, code, errOut)

	envl := decodeEnvelope(t, out)
	require.True(t, envl.Success)
	data := envl.Data.(map[string]interface{})
	assert.Equal(t, "model.stop", data["action"])
	assert.Equal(t, "llama2:7b", data["target"])
	assert.Equal(t, float64(200), data["status"])
	assert.Contains(t, data["refreshed"], "models")
}

func TestModelStart_NotFound(t *testing.T) {
	env := newCLIEnv(t)

	out, _, code := env.run("--json", "model", "start", "nope")
	require.Equal(t, 1, code)

	envl := decodeEnvelope(t, out)
	assert.False(t, envl.Success)
	require.NotNil(t, envl.Error)
	assert.Equal(t, ErrCodeNotFound, envl.Error.Code)
	details := envl.Error.Details.(map[string]interface{})
	assert.Equal(t, float64(404), details["status"])
}

func TestNodeDelete(t *testing.T) {
	env := newCLIEnv(t)

	_, errOut, code := env.run("node", "delete", "node-3")
	require.Equal(t, 0, code, errOut)
	assert.Len(t, env.mock.State().Nodes, 2)
}

func TestUserUpdate(t *testing.T) {
	env := newCLIEnv(t)

	_, errOut, code := env.run("user", "update", "u-2", "--set", "active=false", "--set", "roles=read, write")
	require.Equal(t, 0, code, errOut)

	var got model.User
	for _, u := range env.mock.State().Users {
		if u.ID == "u-2" {
			got = u
		}
	}
	assert.False(t, got.Active)
	assert.Equal(t, []string{"read", "write"}, got.Roles)
}

func TestUserUpdate_BadField(t *testing.T) {
	env := newCLIEnv(t)

	_, errOut, code := env.run("user", "update", "u-2", "--set", "shoe_size=9")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "shoe_size")
}

func TestParseUserFields(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr string
	}{
		{
			name:  "strings",
			pairs: []string{"username=ops", "email=ops@example.com"},
			want:  map[string]any{"username": "ops", "email": "ops@example.com"},
		},
		{
			name:  "roles split and trimmed",
			pairs: []string{"roles= admin ,,viewer"},
			want:  map[string]any{"roles": []string{"admin", "viewer"}},
		},
		{
			name:  "empty roles clears",
			pairs: []string{"roles="},
			want:  map[string]any{"roles": []string{}},
		},
		{
			name:  "active",
			pairs: []string{"active=false"},
			want:  map[string]any{"active": false},
		},
		{
			name:    "bad bool",
			pairs:   []string{"active=maybe"},
			wantErr: "active must be true or false",
		},
		{
			name:    "missing equals",
			pairs:   []string{"email"},
			wantErr: "isn't key=value",
		},
		{
			name:    "unknown key",
			pairs:   []string{"password=x"},
			wantErr: "Unknown user field",
		},
		{
			name:    "nothing",
			pairs:   nil,
			wantErr: "Nothing to update",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUserFields(tt.pairs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
