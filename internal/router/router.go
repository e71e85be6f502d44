// Package router applies decoded socket events to the view-model.
package router

import (
	"time"

	"github.com/rileyhilliard/cw/internal/alerts"
	"github.com/rileyhilliard/cw/internal/event"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/metrics"
	"github.com/rileyhilliard/cw/internal/store"
)

var _ event.Handler = (*Router)(nil)

// Router reduces each event variant into the store or the alert queue.
type Router struct {
	store   *store.Store
	alerts  *alerts.Queue
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a router writing into st and q.
func New(st *store.Store, q *alerts.Queue, log logger.Logger, m *metrics.Metrics) *Router {
	return &Router{
		store:   st,
		alerts:  q,
		log:     logger.OrDefault(log),
		metrics: m,
		now:     time.Now,
	}
}

// Route decodes env and applies it. Frames that fail to decode are logged
// and dropped. Its signature matches transport.Handler.
func (r *Router) Route(env event.Envelope) {
	ev, err := event.Decode(env)
	if err != nil {
		r.metrics.RecordDecodeError()
		r.log.Warn("dropping %s frame: %v", env.Type, err)
		return
	}
	r.Apply(ev)
}

// Apply dispatches an already decoded event.
func (r *Router) Apply(ev event.Event) {
	ev.Dispatch(r)
}

func (r *Router) HandleClusterStatus(e event.ClusterStatus) {
	cs := e.Status
	if cs.UpdatedAt.IsZero() {
		cs.UpdatedAt = r.now()
	}
	r.store.SetCluster(cs)
}

func (r *Router) HandleNodeUpdate(e event.NodeUpdate) {
	r.store.UpsertNode(e.Patch)
}

func (r *Router) HandleModelUpdate(e event.ModelUpdate) {
	r.store.UpsertModel(e.Patch)
}

func (r *Router) HandleMetrics(e event.Metrics) {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	values := make(map[string]float64, len(e.Samples))
	for _, s := range e.Samples {
		values[s.Name] = s.Value
	}
	r.store.AppendMetrics(ts, values)
}

func (r *Router) HandleAlert(e event.Alert) {
	d := r.alerts.DefaultDuration()
	if e.Duration != nil {
		d = *e.Duration
	}
	r.alerts.Push(e.Severity, e.Message, d)
}

func (r *Router) HandleControl(e event.Control) {
	r.log.Debug("control frame %s", e.Type)
}

func (r *Router) HandleServerError(e event.ServerError) {
	r.log.Warn("server reported error: %s", e.Message)
}

func (r *Router) HandleUnknown(e event.Unknown) {
	r.log.Warn("ignoring unknown event type %q", e.Type)
}
