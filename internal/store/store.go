// Package store holds the reconciled view-model state. It is the single
// read path for everything that presents cluster state.
//
// Writers are the event router (socket pushes), the poller (REST
// refreshes) and the alert queue. All of them go through the same mutex,
// so the last write wins regardless of its source.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/rileyhilliard/cw/internal/model"
)

// Store is the in-memory view-model. The zero value is not usable; call New.
type Store struct {
	mu     sync.RWMutex
	window int
	now    func() time.Time

	cluster   *model.ClusterStatus
	nodes     []model.Node
	nodeIdx   map[string]int
	models    []model.Model
	modelIdx  map[string]int
	users     []model.User
	metrics   map[string]*series
	alerts    []model.Alert
	conn      model.Connection
	refreshed map[string]time.Time
	revision  uint64
	changes   chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for connection and refresh stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store keeping window points per metric.
func New(window int, opts ...Option) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Store{
		window:    window,
		now:       time.Now,
		nodeIdx:   make(map[string]int),
		modelIdx:  make(map[string]int),
		metrics:   make(map[string]*series),
		refreshed: make(map[string]time.Time),
		conn:      model.Connection{State: model.StateDisconnected},
		changes:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the per-metric capacity.
func (s *Store) Window() int {
	return s.window
}

// Changes returns a channel that receives a value after any mutation.
// Notifications coalesce: many writes between two reads yield one value.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Revision increases by one on every mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// touch records a mutation. Must be called with s.mu held.
func (s *Store) touch() {
	s.revision++
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// SetCluster replaces the cluster status snapshot.
func (s *Store) SetCluster(cs model.ClusterStatus) {
	cs.UpdatedAt = normTime(cs.UpdatedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cluster = &cs
	s.touch()
}

// Cluster returns the cluster status and whether one has been received.
func (s *Store) Cluster() (model.ClusterStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cluster == nil {
		return model.ClusterStatus{}, false
	}
	return *s.cluster, true
}

// UpsertNode merges p into the node with the same id, or appends a new
// node when none matches. Returns the stored record.
func (s *Store) UpsertNode(p model.NodePatch) model.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.nodeIdx[p.ID]; ok {
		s.nodes[i] = p.Apply(s.nodes[i])
		s.touch()
		return s.nodes[i].Clone()
	}

	n := p.Apply(model.Node{})
	s.nodeIdx[n.ID] = len(s.nodes)
	s.nodes = append(s.nodes, n)
	s.touch()
	return n.Clone()
}

// ReplaceNodes overwrites the node collection wholesale. Duplicate ids
// collapse into the first position with the last record's values.
func (s *Store) ReplaceNodes(nodes []model.Node) {
	list, idx := indexNodes(nodes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes, s.nodeIdx = list, idx
	s.touch()
}

func indexNodes(nodes []model.Node) ([]model.Node, map[string]int) {
	list := make([]model.Node, 0, len(nodes))
	idx := make(map[string]int, len(nodes))
	for _, n := range nodes {
		n = n.Clone()
		if i, ok := idx[n.ID]; ok {
			list[i] = n
			continue
		}
		idx[n.ID] = len(list)
		list = append(list, n)
	}
	return list, idx
}

// Node returns the node with id.
func (s *Store) Node(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.nodeIdx[id]
	if !ok {
		return model.Node{}, false
	}
	return s.nodes[i].Clone(), true
}

// Nodes returns a copy of all nodes in insertion order.
func (s *Store) Nodes() []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNodes(s.nodes)
}

// UpsertModel merges p into the model with the same name, or appends.
func (s *Store) UpsertModel(p model.ModelPatch) model.Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.modelIdx[p.Name]; ok {
		s.models[i] = p.Apply(s.models[i])
		s.touch()
		return s.models[i].Clone()
	}

	m := p.Apply(model.Model{})
	s.modelIdx[m.Name] = len(s.models)
	s.models = append(s.models, m)
	s.touch()
	return m.Clone()
}

// ReplaceModels overwrites the model collection wholesale.
func (s *Store) ReplaceModels(models []model.Model) {
	list, idx := indexModels(models)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models, s.modelIdx = list, idx
	s.touch()
}

func indexModels(models []model.Model) ([]model.Model, map[string]int) {
	list := make([]model.Model, 0, len(models))
	idx := make(map[string]int, len(models))
	for _, m := range models {
		m = m.Clone()
		if i, ok := idx[m.Name]; ok {
			list[i] = m
			continue
		}
		idx[m.Name] = len(list)
		list = append(list, m)
	}
	return list, idx
}

// Model returns the model with name.
func (s *Store) Model(name string) (model.Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.modelIdx[name]
	if !ok {
		return model.Model{}, false
	}
	return s.models[i].Clone(), true
}

// Models returns a copy of all models in insertion order.
func (s *Store) Models() []model.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneModels(s.models)
}

// ReplaceUsers overwrites the user collection. Users only arrive via REST.
func (s *Store) ReplaceUsers(users []model.User) {
	list := cloneUsers(users)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = list
	s.touch()
}

// Users returns a copy of all users.
func (s *Store) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users)
}

// AppendMetric adds a point to the named series, evicting the oldest point
// once the window is full.
func (s *Store) AppendMetric(name string, p model.MetricPoint) {
	p.Timestamp = normTime(p.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendMetricLocked(name, p)
	s.touch()
}

// AppendMetrics adds several points that share a timestamp in one mutation.
func (s *Store) AppendMetrics(ts time.Time, values map[string]float64) {
	ts = normTime(ts)

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, v := range values {
		s.appendMetricLocked(name, model.MetricPoint{Timestamp: ts, Value: v})
	}
	s.touch()
}

func (s *Store) appendMetricLocked(name string, p model.MetricPoint) {
	ser, ok := s.metrics[name]
	if !ok {
		ser = newSeries(s.window)
		s.metrics[name] = ser
	}
	ser.push(p)
}

// ReplaceMetrics overwrites every series with the given points. Series
// longer than the window keep their newest points.
func (s *Store) ReplaceMetrics(metrics map[string][]model.MetricPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = s.buildSeries(metrics)
	s.touch()
}

func (s *Store) buildSeries(metrics map[string][]model.MetricPoint) map[string]*series {
	out := make(map[string]*series, len(metrics))
	for name, pts := range metrics {
		if len(pts) == 0 {
			continue
		}
		ser := newSeries(s.window)
		for _, p := range pts {
			p.Timestamp = normTime(p.Timestamp)
			ser.push(p)
		}
		out[name] = ser
	}
	return out
}

// Metric returns up to n most recent points of a series, oldest first.
// n <= 0 returns the whole window.
func (s *Store) Metric(name string, n int) []model.MetricPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.metrics[name]
	if !ok {
		return nil
	}
	return ser.last(n)
}

// MetricValues is Metric without timestamps, shaped for sparklines.
func (s *Store) MetricValues(name string, n int) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.metrics[name]
	if !ok {
		return nil
	}
	return ser.values(n)
}

// MetricNames returns the names of all series, sorted.
func (s *Store) MetricNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.metrics))
	for name := range s.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddAlert appends an alert.
func (s *Store) AddAlert(a model.Alert) {
	a.CreatedAt = normTime(a.CreatedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	s.touch()
}

// RemoveAlert deletes the alert with id and reports whether it existed.
func (s *Store) RemoveAlert(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.alerts {
		if a.ID == id {
			s.alerts = append(s.alerts[:i:i], s.alerts[i+1:]...)
			s.touch()
			return true
		}
	}
	return false
}

// ClearAlerts removes every alert.
func (s *Store) ClearAlerts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.alerts) == 0 {
		return
	}
	s.alerts = nil
	s.touch()
}

// Alerts returns a copy of the alert queue, oldest first.
func (s *Store) Alerts() []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// SetConnection records a transport state change.
func (s *Store) SetConnection(state model.ConnectionState, attempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn.State == state && s.conn.Attempts == attempts {
		return
	}
	s.conn = model.Connection{State: state, Attempts: attempts, Since: s.now()}
	s.touch()
}

// Connection returns the last recorded transport state.
func (s *Store) Connection() model.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// MarkRefreshed stamps the last successful REST refresh of a resource.
func (s *Store) MarkRefreshed(resource string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed[resource] = s.now()
	s.touch()
}

// RefreshedAt returns when resource was last refreshed over REST.
func (s *Store) RefreshedAt(resource string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.refreshed[resource]
	return t, ok
}

func cloneNodes(in []model.Node) []model.Node {
	out := make([]model.Node, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}

func cloneModels(in []model.Model) []model.Model {
	out := make([]model.Model, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func cloneUsers(in []model.User) []model.User {
	out := make([]model.User, len(in))
	for i, u := range in {
		out[i] = u.Clone()
	}
	return out
}
