package event

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/model"
)

// Decode converts an envelope into its event variant. Unrecognized types
// become Unknown rather than an error; only malformed payloads of known
// types fail.
func Decode(env Envelope) (Event, error) {
	payload := env.Payload()

	switch env.Type {
	case TypeClusterStatus:
		var cs model.ClusterStatus
		if err := unmarshal(env.Type, payload, &cs); err != nil {
			return nil, err
		}
		if cs.UpdatedAt.IsZero() {
			cs.UpdatedAt = env.Timestamp
		}
		return ClusterStatus{Status: cs}, nil

	case TypeNodeUpdate:
		var p model.NodePatch
		if err := unmarshal(env.Type, payload, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, errors.New(errors.ErrDecode, "node_update without id", "")
		}
		return NodeUpdate{Patch: p}, nil

	case TypeModelUpdate:
		var p model.ModelPatch
		if err := unmarshal(env.Type, payload, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, errors.New(errors.ErrDecode, "model_update without name", "")
		}
		return ModelUpdate{Patch: p}, nil

	case TypeMetrics:
		return decodeMetrics(env, payload)

	case TypeAlert:
		return decodeAlert(payload)

	case TypeError:
		msg := env.Error
		if msg == "" {
			var body struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(payload, &body)
			msg = body.Message
		}
		return ServerError{Message: msg}, nil

	case TypeWelcome, TypeHeartbeat, TypeSubscribe, TypeUnsubscribe,
		TypeSubscriptionConfirmed, TypeUnsubscriptionConfirmed:
		return Control{Type: env.Type, Data: env.Data}, nil

	default:
		return Unknown{Type: env.Type, Raw: payload}, nil
	}
}

// DecodeBytes parses a raw frame and decodes it.
func DecodeBytes(raw []byte) (Event, error) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrDecode, "malformed frame", "")
	}
	return Decode(env)
}

func unmarshal(typ string, payload []byte, v any) error {
	if len(payload) == 0 {
		return errors.New(errors.ErrDecode, typ+" with empty payload", "")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.WrapWithCode(err, errors.ErrDecode, "malformed "+typ+" payload", "")
	}
	return nil
}

// Metrics payloads arrive in three shapes:
//
//	{"timestamp": ..., "values": {"cpu": 12.5, "memory": 40}}
//	{"name": "cpu", "value": 12.5}
//	{"cpu": 12.5, "memory": 40}
func decodeMetrics(env Envelope, payload []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := unmarshal(env.Type, payload, &fields); err != nil {
		return nil, err
	}

	ts := env.Timestamp
	if raw, ok := fields["timestamp"]; ok {
		if t, err := parseTime(raw); err == nil {
			ts = t
		}
	}

	out := Metrics{Timestamp: ts}

	if raw, ok := fields["values"]; ok {
		var values map[string]float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrDecode, "malformed metrics values", "")
		}
		for name, v := range values {
			out.Samples = append(out.Samples, Sample{Name: name, Value: v})
		}
	} else if rawName, ok := fields["name"]; ok {
		var s Sample
		if err := json.Unmarshal(rawName, &s.Name); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrDecode, "malformed metrics name", "")
		}
		if err := json.Unmarshal(fields["value"], &s.Value); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrDecode, "malformed metrics value", "")
		}
		out.Samples = append(out.Samples, s)
	} else {
		for name, raw := range fields {
			switch name {
			case "type", "id", "timestamp", "data", "error":
				continue
			}
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				continue // non-numeric side fields
			}
			out.Samples = append(out.Samples, Sample{Name: name, Value: v})
		}
	}

	out.Samples = dropNonFinite(out.Samples)
	if len(out.Samples) == 0 {
		return nil, errors.New(errors.ErrDecode, "metrics event without samples", "")
	}
	sort.Slice(out.Samples, func(i, j int) bool { return out.Samples[i].Name < out.Samples[j].Name })
	return out, nil
}

func dropNonFinite(in []Sample) []Sample {
	out := in[:0]
	for _, s := range in {
		if s.Name == "" || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func decodeAlert(payload []byte) (Event, error) {
	var w struct {
		Severity string          `json:"severity"`
		Level    string          `json:"level"`
		Message  string          `json:"message"`
		Duration json.RawMessage `json:"duration"`
	}
	if err := unmarshal(TypeAlert, payload, &w); err != nil {
		return nil, err
	}
	if w.Message == "" {
		return nil, errors.New(errors.ErrDecode, "alert without message", "")
	}

	sev := w.Severity
	if sev == "" {
		sev = w.Level
	}
	a := Alert{Severity: model.ParseSeverity(strings.ToLower(sev)), Message: w.Message}

	if len(w.Duration) > 0 && string(w.Duration) != "null" {
		d, err := parseDuration(w.Duration)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrDecode, "malformed alert duration", "")
		}
		a.Duration = &d
	}
	return a, nil
}

// parseDuration accepts milliseconds as a number or a Go duration string.
func parseDuration(raw json.RawMessage) (time.Duration, error) {
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %v", ms)
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Millisecond)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// parseTime accepts RFC 3339 strings or unix milliseconds.
func parseTime(raw json.RawMessage) (time.Time, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	var t time.Time
	err := json.Unmarshal(raw, &t)
	return t, err
}
