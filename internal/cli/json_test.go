package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"testing"

	"github.com/rileyhilliard/cw/internal/api"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineMode_DefaultValue(t *testing.T) {
	oldMode := machineMode
	defer func() { machineMode = oldMode }()

	machineMode = false
	assert.False(t, MachineMode())

	machineMode = true
	assert.True(t, MachineMode())
}

func TestWriteJSONSuccess_BasicData(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSONSuccess(&buf, map[string]string{"key": "value"})
	require.NoError(t, err)

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	dataMap, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", dataMap["key"])
}

func TestWriteJSONFromError(t *testing.T) {
	var buf bytes.Buffer

	err := cwerrors.New(cwerrors.ErrState, "Model is busy", "Wait for the pull to finish")
	require.NoError(t, WriteJSONFromError(&buf, err))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeInvalidState, env.Error.Code)
	assert.Equal(t, "Model is busy", env.Error.Message)
	assert.Equal(t, "Wait for the pull to finish", env.Error.Suggestion)
}

func TestErrorToJSON_Nil(t *testing.T) {
	assert.Nil(t, ErrorToJSON(nil))
}

func TestErrorToJSON_PlainError(t *testing.T) {
	got := ErrorToJSON(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeUnknown, got.Code)
	assert.Equal(t, "boom", got.Message)
}

func statusErr(code int) error {
	se := &api.StatusError{Method: "PUT", Path: "/api/models/x", Code: code}
	return cwerrors.WrapWithCode(se, cwerrors.ErrAPI, se.Error(), "")
}

func TestErrorToJSON_CodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config missing", cwerrors.WrapWithCode(fs.ErrNotExist, cwerrors.ErrConfig, "Config file not found", ""), ErrCodeConfigNotFound},
		{"config invalid", cwerrors.New(cwerrors.ErrConfig, "bad polling.mode", ""), ErrCodeConfigInvalid},
		{"transport", cwerrors.New(cwerrors.ErrTransport, "dial failed", ""), ErrCodeUnreachable},
		{"api no status", cwerrors.WrapWithCode(fmt.Errorf("connection refused"), cwerrors.ErrAPI, "GET /api/nodes failed", ""), ErrCodeUnreachable},
		{"api 401", statusErr(401), ErrCodeUnauthorized},
		{"api 403", statusErr(403), ErrCodeUnauthorized},
		{"api 404", statusErr(404), ErrCodeNotFound},
		{"api 500", statusErr(500), ErrCodeRequestFailed},
		{"decode", cwerrors.New(cwerrors.ErrDecode, "bad json", ""), ErrCodeBadResponse},
		{"state", cwerrors.New(cwerrors.ErrState, "busy", ""), ErrCodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorToJSON(tt.err).Code)
		})
	}
}

func TestErrorToJSON_StatusDetails(t *testing.T) {
	got := ErrorToJSON(statusErr(404))

	details, ok := got.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "PUT", details["method"])
	assert.Equal(t, "/api/models/x", details["path"])
	assert.Equal(t, 404, details["status"])
}
