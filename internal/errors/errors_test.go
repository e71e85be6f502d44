package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrTransport,
		ErrAPI,
		ErrDecode,
		ErrState,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration in .cw.yaml",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "transport error",
			code:       ErrTransport,
			message:    "WebSocket closed after 5 reconnect attempts",
			suggestion: "Press R in cw watch to retry",
		},
		{
			name:       "api error",
			code:       ErrAPI,
			message:    "GET /api/nodes returned 500",
			suggestion: "Check the cluster API logs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("dial tcp 127.0.0.1:8080: connection refused")
	err := WrapWithCode(cause, ErrTransport, "Can't reach the cluster", "Is the API server running?")

	out := err.Error()
	lines := strings.Split(out, "\n")
	assert.Equal(t, "✗ Can't reach the cluster", lines[0])
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "Is the API server running?")
}

func TestWrapDefaultsToTransport(t *testing.T) {
	err := Wrap(errors.New("boom"), "socket failed")
	assert.Equal(t, ErrTransport, err.Code)
}

func TestUnwrapAndIsCode(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := WrapWithCode(sentinel, ErrAPI, "request failed", "")

	assert.True(t, errors.Is(err, sentinel))
	assert.True(t, IsCode(err, ErrAPI))
	assert.False(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(nil, ErrAPI))
	assert.False(t, IsCode(sentinel, ErrAPI))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsCode(wrapped, ErrAPI))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "", Short(nil))
	assert.Equal(t, "plain", Short(errors.New("plain")))
	assert.Equal(t, "no cause", Short(New(ErrState, "no cause", "ignored")))
	assert.Equal(t, "fetch failed: timeout", Short(WrapWithCode(errors.New("timeout"), ErrAPI, "fetch failed", "")))
}
