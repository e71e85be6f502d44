package cli

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"

	"github.com/rileyhilliard/cw/internal/api"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeUnreachable    = "SERVER_UNREACHABLE"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeRequestFailed  = "REQUEST_FAILED"
	ErrCodeBadResponse    = "BAD_RESPONSE"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeUnknown        = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: false, Error: ErrorToJSON(err)})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var cwErr *cwerrors.Error
	if !errors.As(err, &cwErr) {
		return &JSONError{Code: ErrCodeUnknown, Message: err.Error()}
	}

	out := &JSONError{
		Code:       mapErrorCode(cwErr),
		Message:    cwerrors.Short(cwErr),
		Suggestion: cwErr.Suggestion,
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		out.Details = map[string]interface{}{
			"method": se.Method,
			"path":   se.Path,
			"status": se.Code,
		}
	}
	return out
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(e *cwerrors.Error) string {
	switch e.Code {
	case cwerrors.ErrConfig:
		if errors.Is(e.Cause, fs.ErrNotExist) {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case cwerrors.ErrTransport:
		return ErrCodeUnreachable
	case cwerrors.ErrAPI:
		switch api.StatusCode(e) {
		case 0:
			return ErrCodeUnreachable
		case 401, 403:
			return ErrCodeUnauthorized
		case 404:
			return ErrCodeNotFound
		default:
			return ErrCodeRequestFailed
		}
	case cwerrors.ErrDecode:
		return ErrCodeBadResponse
	case cwerrors.ErrState:
		return ErrCodeInvalidState
	}
	return ErrCodeUnknown
}
