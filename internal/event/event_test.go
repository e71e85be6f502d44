package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures which variant was dispatched.
type recorder struct {
	got []Event
}

func (r *recorder) HandleClusterStatus(e ClusterStatus) { r.got = append(r.got, e) }
func (r *recorder) HandleNodeUpdate(e NodeUpdate)       { r.got = append(r.got, e) }
func (r *recorder) HandleModelUpdate(e ModelUpdate)     { r.got = append(r.got, e) }
func (r *recorder) HandleMetrics(e Metrics)             { r.got = append(r.got, e) }
func (r *recorder) HandleAlert(e Alert)                 { r.got = append(r.got, e) }
func (r *recorder) HandleControl(e Control)             { r.got = append(r.got, e) }
func (r *recorder) HandleServerError(e ServerError)     { r.got = append(r.got, e) }
func (r *recorder) HandleUnknown(e Unknown)             { r.got = append(r.got, e) }

func mustDecode(t *testing.T, frame string) Event {
	t.Helper()
	ev, err := DecodeBytes([]byte(frame))
	require.NoError(t, err)
	return ev
}

func TestDecode_Variants(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  any
	}{
		{"cluster status", `{"type":"cluster_status","data":{"leader":"n1","node_count":3}}`, ClusterStatus{}},
		{"node update", `{"type":"node_update","data":{"id":"n1","cpu":40}}`, NodeUpdate{}},
		{"model update", `{"type":"model_update","data":{"name":"llama2:7b","status":"running"}}`, ModelUpdate{}},
		{"metrics", `{"type":"metrics","data":{"values":{"cpu":1}}}`, Metrics{}},
		{"alert", `{"type":"alert","data":{"severity":"warning","message":"disk"}}`, Alert{}},
		{"welcome", `{"type":"welcome","data":{"client_id":"abc"}}`, Control{}},
		{"heartbeat", `{"type":"heartbeat"}`, Control{}},
		{"error", `{"type":"error","error":"Invalid topics format"}`, ServerError{}},
		{"unknown", `{"type":"inference","data":{}}`, Unknown{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := mustDecode(t, tt.frame)
			r := &recorder{}
			ev.Dispatch(r)
			require.Len(t, r.got, 1)
			assert.IsType(t, tt.want, r.got[0])
		})
	}
}

func TestDecode_FlatPayload(t *testing.T) {
	ev := mustDecode(t, `{"type":"node_update","id":"n7","status":"offline"}`)
	nu, ok := ev.(NodeUpdate)
	require.True(t, ok)
	assert.Equal(t, "n7", nu.Patch.ID)
	require.NotNil(t, nu.Patch.Status)
	assert.Equal(t, model.NodeOffline, *nu.Patch.Status)
	assert.Nil(t, nu.Patch.CPU)
}

func TestDecode_MetricsShapes(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  []Sample
	}{
		{
			"values map",
			`{"type":"metrics","data":{"values":{"memory":40,"cpu":12.5}}}`,
			[]Sample{{"cpu", 12.5}, {"memory", 40}},
		},
		{
			"single named sample",
			`{"type":"metrics","data":{"name":"requests_per_sec","value":210}}`,
			[]Sample{{"requests_per_sec", 210}},
		},
		{
			"flat fields skip non-numeric",
			`{"type":"metrics","data":{"cpu":3,"node":"n1","latency_ms":18}}`,
			[]Sample{{"cpu", 3}, {"latency_ms", 18}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := mustDecode(t, tt.frame).(Metrics)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Samples)
		})
	}
}

func TestDecode_MetricsTimestamp(t *testing.T) {
	m := mustDecode(t, `{"type":"metrics","data":{"timestamp":1700000000000,"values":{"cpu":1}}}`).(Metrics)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), m.Timestamp)

	m = mustDecode(t, `{"type":"metrics","timestamp":"2024-05-01T10:00:00Z","data":{"values":{"cpu":1}}}`).(Metrics)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), m.Timestamp)
}

func TestDecode_AlertDuration(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		want  *time.Duration
		sev   model.Severity
		isErr bool
	}{
		{"millis", `{"severity":"error","message":"x","duration":5000}`, durPtr(5 * time.Second), model.SeverityError, false},
		{"go string", `{"level":"warn","message":"x","duration":"1m"}`, durPtr(time.Minute), model.SeverityWarning, false},
		{"numeric string", `{"message":"x","duration":"250"}`, durPtr(250 * time.Millisecond), model.SeverityInfo, false},
		{"absent", `{"severity":"success","message":"x"}`, nil, model.SeveritySuccess, false},
		{"negative", `{"message":"x","duration":-1}`, nil, "", true},
		{"garbage", `{"message":"x","duration":"soon"}`, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeBytes([]byte(`{"type":"alert","data":` + tt.data + `}`))
			if tt.isErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrDecode))
				return
			}
			require.NoError(t, err)
			a := ev.(Alert)
			assert.Equal(t, tt.sev, a.Severity)
			assert.Equal(t, tt.want, a.Duration)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	frames := map[string]string{
		"not json":           `{"type":`,
		"node without id":    `{"type":"node_update","data":{"cpu":1}}`,
		"model without name": `{"type":"model_update","data":{"ready":true}}`,
		"metrics no samples": `{"type":"metrics","data":{"node":"n1"}}`,
		"alert no message":   `{"type":"alert","data":{"severity":"info"}}`,
		"bad cluster shape":  `{"type":"cluster_status","data":[1,2]}`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(frame))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrDecode))
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	cpu := 71.5
	status := model.NodeUnhealthy
	d := 3 * time.Second
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	events := []Event{
		ClusterStatus{Status: model.ClusterStatus{Leader: "n1", NodeCount: 2, UpdatedAt: ts}},
		NodeUpdate{Patch: model.NodePatch{ID: "n1", CPU: &cpu, Status: &status}},
		ModelUpdate{Patch: model.FullModelPatch(model.Model{Name: "m", Status: model.ModelRunning, Replicas: []string{"n1"}})},
		Metrics{Timestamp: ts, Samples: []Sample{{"cpu", 1}, {"mem", 2}}},
		Alert{Severity: model.SeverityWarning, Message: "hot", Duration: &d},
		Alert{Severity: model.SeverityInfo, Message: "sticky"},
	}

	for _, in := range events {
		t.Run(in.Kind(), func(t *testing.T) {
			env, err := Encode(in)
			require.NoError(t, err)
			b, err := json.Marshal(env)
			require.NoError(t, err)

			out, err := DecodeBytes(b)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestEncode_ServerError(t *testing.T) {
	env, err := Encode(ServerError{Message: "nope"})
	require.NoError(t, err)
	assert.Equal(t, TypeError, env.Type)
	assert.Equal(t, "nope", env.Error)
}

func TestSubscribeFrames(t *testing.T) {
	b, err := json.Marshal(Subscribe("nodes", "metrics"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"subscribe"`)
	assert.Contains(t, string(b), `"data":{"topics":["nodes","metrics"]}`)

	env := Unsubscribe("nodes")
	var p TopicsPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, []string{"nodes"}, p.Topics)
}

func durPtr(d time.Duration) *time.Duration { return &d }
