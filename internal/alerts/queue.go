// Package alerts manages transient user-facing notifications. Alerts live
// in the store so every reader sees them; this package owns their ids and
// expiry timers.
package alerts

import (
	"sync"
	"time"

	"github.com/rileyhilliard/cw/internal/metrics"
	"github.com/rileyhilliard/cw/internal/model"
)

// Sink is where alerts are kept. *store.Store satisfies it.
type Sink interface {
	AddAlert(model.Alert)
	RemoveAlert(id uint64) bool
	ClearAlerts()
	Alerts() []model.Alert
}

// Queue hands out monotonic ids and expires alerts after their duration.
// There is no de-duplication and no priority: alerts are kept in push order.
type Queue struct {
	sink            Sink
	defaultDuration time.Duration
	metrics         *metrics.Metrics
	now             func() time.Time

	mu     sync.Mutex
	nextID uint64
	timers map[uint64]*time.Timer
	closed bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithMetrics records pushes and queue depth.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a queue over sink. defaultDuration applies to PushDefault;
// zero makes those alerts sticky.
func New(sink Sink, defaultDuration time.Duration, opts ...Option) *Queue {
	q := &Queue{
		sink:            sink,
		defaultDuration: defaultDuration,
		now:             time.Now,
		timers:          make(map[uint64]*time.Timer),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// DefaultDuration returns the duration applied by PushDefault.
func (q *Queue) DefaultDuration() time.Duration {
	return q.defaultDuration
}

// Push queues an alert and returns its id. A positive duration removes the
// alert once it elapses; zero keeps it until dismissed.
func (q *Queue) Push(sev model.Severity, message string, duration time.Duration) uint64 {
	if duration < 0 {
		duration = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	a := model.Alert{
		ID:        q.nextID,
		Severity:  sev,
		Message:   message,
		Duration:  duration,
		CreatedAt: q.now(),
	}
	q.sink.AddAlert(a)
	if duration > 0 && !q.closed {
		q.armLocked(a.ID, duration)
	}

	q.metrics.RecordAlert(string(sev))
	q.metrics.SetActiveAlerts(len(q.sink.Alerts()))
	return a.ID
}

// PushDefault queues an alert with the default duration.
func (q *Queue) PushDefault(sev model.Severity, message string) uint64 {
	return q.Push(sev, message, q.defaultDuration)
}

// Dismiss removes an alert immediately and reports whether it was queued.
func (q *Queue) Dismiss(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	removed := q.sink.RemoveAlert(id)
	q.metrics.SetActiveAlerts(len(q.sink.Alerts()))
	return removed
}

// DismissNewest removes the most recently pushed alert, if any.
func (q *Queue) DismissNewest() bool {
	list := q.sink.Alerts()
	if len(list) == 0 {
		return false
	}
	return q.Dismiss(list[len(list)-1].ID)
}

// List returns the queued alerts, oldest first.
func (q *Queue) List() []model.Alert {
	return q.sink.Alerts()
}

// Clear removes every alert and cancels pending timers.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopTimersLocked()
	q.sink.ClearAlerts()
	q.metrics.SetActiveAlerts(0)
}

// Restore replaces the queue with previously exported alerts. Timed alerts
// keep their original deadline; ones already past it are dropped. New ids
// continue after the highest restored id.
func (q *Queue) Restore(list []model.Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopTimersLocked()
	q.sink.ClearAlerts()

	now := q.now()
	for _, a := range list {
		if a.ID > q.nextID {
			q.nextID = a.ID
		}
		if a.Duration > 0 {
			remaining := a.CreatedAt.Add(a.Duration).Sub(now)
			if remaining <= 0 {
				continue
			}
			q.sink.AddAlert(a)
			if !q.closed {
				q.armLocked(a.ID, remaining)
			}
			continue
		}
		q.sink.AddAlert(a)
	}
	q.metrics.SetActiveAlerts(len(q.sink.Alerts()))
}

// Close cancels pending timers. Queued alerts stay in the sink and no new
// timers are armed afterwards.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.stopTimersLocked()
}

// Pending returns the number of armed expiry timers.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// armLocked must be called with q.mu held.
func (q *Queue) armLocked(id uint64, d time.Duration) {
	q.timers[id] = time.AfterFunc(d, func() { q.expire(id) })
}

func (q *Queue) expire(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.timers[id]; !ok {
		return // dismissed or cleared first
	}
	delete(q.timers, id)
	q.sink.RemoveAlert(id)
	q.metrics.SetActiveAlerts(len(q.sink.Alerts()))
}

func (q *Queue) stopTimersLocked() {
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}
