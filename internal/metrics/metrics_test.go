package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value finds a single sample in the registry by name and label values.
func value(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.SetConnected(true)
	m.RecordReconnect()
	m.RecordReconnect()
	m.RecordMessage("node_update")
	m.RecordDecodeError()
	m.RecordPoll("nodes", nil, 10*time.Millisecond)
	m.RecordPoll("nodes", errors.New("boom"), time.Millisecond)
	m.RecordAlert("warning")
	m.SetActiveAlerts(3)
	m.RecordAction("model_pull", nil)

	assert.Equal(t, 1.0, value(t, m, "cw_ws_connected", nil))
	assert.Equal(t, 2.0, value(t, m, "cw_ws_reconnect_attempts_total", nil))
	assert.Equal(t, 1.0, value(t, m, "cw_ws_messages_total", map[string]string{"type": "node_update"}))
	assert.Equal(t, 1.0, value(t, m, "cw_ws_decode_errors_total", nil))
	assert.Equal(t, 1.0, value(t, m, "cw_poll_requests_total", map[string]string{"resource": "nodes", "status": "error"}))
	assert.Equal(t, 2.0, value(t, m, "cw_poll_duration_seconds", map[string]string{"resource": "nodes"}))
	assert.Equal(t, 1.0, value(t, m, "cw_alerts_total", map[string]string{"severity": "warning"}))
	assert.Equal(t, 3.0, value(t, m, "cw_alerts_active", nil))
	assert.Equal(t, 1.0, value(t, m, "cw_actions_total", map[string]string{"action": "model_pull", "status": "ok"}))

	m.SetConnected(false)
	assert.Equal(t, 0.0, value(t, m, "cw_ws_connected", nil))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetConnected(true)
		m.RecordReconnect()
		m.RecordMessage("x")
		m.RecordDecodeError()
		m.RecordPoll("nodes", nil, 0)
		m.RecordAlert("info")
		m.SetActiveAlerts(1)
		m.RecordAction("x", nil)
	})
	assert.Nil(t, m.Registry())
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordReconnect()
	assert.Equal(t, 1.0, value(t, a, "cw_ws_reconnect_attempts_total", nil))
	assert.Equal(t, 0.0, value(t, b, "cw_ws_reconnect_attempts_total", nil))
}

func TestServer_ExposesMetrics(t *testing.T) {
	m := New()
	m.RecordAlert("error")

	srv, err := NewServer("127.0.0.1:0", m, logger.Noop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.Contains(t, body, `cw_alerts_total{severity="error"} 1`)

	cancel()
	require.NoError(t, <-done)
}
