// Package metrics instruments the client itself with Prometheus
// collectors. Every method is safe on a nil *Metrics so components can
// run uninstrumented in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cw"

// Metrics holds all Prometheus collectors for one client instance.
type Metrics struct {
	registry *prometheus.Registry

	// Transport
	Connected         prometheus.Gauge
	ReconnectAttempts prometheus.Counter
	MessagesReceived  *prometheus.CounterVec
	DecodeErrors      prometheus.Counter

	// Polling
	PollRequests *prometheus.CounterVec
	PollDuration *prometheus.HistogramVec

	// Alerts
	AlertsPushed *prometheus.CounterVec
	AlertsActive prometheus.Gauge

	// Actions
	ActionsTotal *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connected",
			Help:      "1 while the WebSocket is connected, 0 otherwise",
		}),
		ReconnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_reconnect_attempts_total",
			Help:      "Total number of scheduled reconnect attempts",
		}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Total number of socket messages received by type",
		}, []string{"type"}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_decode_errors_total",
			Help:      "Total number of dropped frames that failed to decode",
		}),

		PollRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_requests_total",
			Help:      "Total number of REST refreshes by resource and status",
		}, []string{"resource", "status"}),
		PollDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of REST refreshes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),

		AlertsPushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of alerts pushed by severity",
		}, []string{"severity"}),
		AlertsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_active",
			Help:      "Number of alerts currently queued",
		}),

		ActionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of user actions by kind and status",
		}, []string{"action", "status"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetConnected records whether the socket is up.
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// RecordReconnect counts a scheduled reconnect attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// RecordMessage counts a received frame.
func (m *Metrics) RecordMessage(msgType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordDecodeError counts a dropped frame.
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// RecordPoll records one resource refresh.
func (m *Metrics) RecordPoll(resource string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PollRequests.WithLabelValues(resource, status).Inc()
	m.PollDuration.WithLabelValues(resource).Observe(d.Seconds())
}

// RecordAlert counts a pushed alert.
func (m *Metrics) RecordAlert(severity string) {
	if m == nil {
		return
	}
	m.AlertsPushed.WithLabelValues(severity).Inc()
}

// SetActiveAlerts updates the queued alert gauge.
func (m *Metrics) SetActiveAlerts(n int) {
	if m == nil {
		return
	}
	m.AlertsActive.Set(float64(n))
}

// RecordAction counts a user action outcome.
func (m *Metrics) RecordAction(action string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ActionsTotal.WithLabelValues(action, status).Inc()
}
