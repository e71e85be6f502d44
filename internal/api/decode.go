package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rileyhilliard/cw/internal/event"
	"github.com/rileyhilliard/cw/internal/model"
)

// wrapperKeys are tried, in order, when a list arrives inside an object.
var wrapperKeys = []string{"data", "items", "results"}

// decodeList fills out from a bare JSON array or from an object wrapping
// one under key, a common wrapper key, or its only field.
func decodeList(raw []byte, key string, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '[':
		return json.Unmarshal(raw, out)
	case '{':
	default:
		return fmt.Errorf("expected array or object, got %q", truncate(raw))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for _, k := range append([]string{key}, wrapperKeys...) {
		if inner, ok := fields[k]; ok {
			return decodeList(inner, key, out)
		}
	}
	if len(fields) == 1 {
		for _, inner := range fields {
			return decodeList(inner, key, out)
		}
	}
	return fmt.Errorf("no %q list in response", key)
}

// decodeObject fills out from a bare object or one wrapped under key or
// "data".
func decodeObject(raw []byte, key string, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return fmt.Errorf("expected object, got %q", truncate(raw))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for _, k := range []string{key, "data"} {
		if inner, ok := fields[k]; ok && isObject(inner) {
			return json.Unmarshal(inner, out)
		}
	}
	return json.Unmarshal(raw, out)
}

// MetricsResult is the decoded /api/metrics response. Servers either send
// history per metric (Series) or the current sample set (Values).
type MetricsResult struct {
	Series    map[string][]model.MetricPoint
	Timestamp time.Time
	Values    map[string]float64
}

// Empty reports whether the response carried no usable samples.
func (r MetricsResult) Empty() bool {
	return len(r.Series) == 0 && len(r.Values) == 0
}

func decodeMetrics(raw []byte) (MetricsResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return MetricsResult{}, fmt.Errorf("expected object, got %q", truncate(raw))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return MetricsResult{}, err
	}
	if len(fields) == 0 {
		return MetricsResult{}, nil
	}
	for _, k := range []string{"metrics", "data"} {
		if inner, ok := fields[k]; ok && isObject(inner) {
			return decodeMetrics(inner)
		}
	}

	if series, ok := decodeSeries(fields); ok {
		return MetricsResult{Series: series}, nil
	}

	ev, err := event.Decode(event.Envelope{Type: event.TypeMetrics, Data: raw})
	if err != nil {
		return MetricsResult{}, err
	}
	m := ev.(event.Metrics)
	res := MetricsResult{Timestamp: m.Timestamp, Values: make(map[string]float64, len(m.Samples))}
	for _, s := range m.Samples {
		res.Values[s.Name] = s.Value
	}
	return res, nil
}

// decodeSeries succeeds when every array-valued field is a list of points.
func decodeSeries(fields map[string]json.RawMessage) (map[string][]model.MetricPoint, bool) {
	series := make(map[string][]model.MetricPoint)
	for name, inner := range fields {
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || inner[0] != '[' {
			continue
		}
		var points []model.MetricPoint
		if err := json.Unmarshal(inner, &points); err != nil {
			return nil, false
		}
		kept := points[:0]
		for _, p := range points {
			if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				continue
			}
			kept = append(kept, p)
		}
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].Timestamp.Before(kept[j].Timestamp) })
		series[name] = kept
	}
	if len(series) == 0 {
		return nil, false
	}
	return series, true
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func truncate(raw []byte) string {
	if len(raw) > 64 {
		return string(raw[:64]) + "..."
	}
	return string(raw)
}
