package store

import (
	"encoding/json"
	"io"

	"github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/model"
)

// Snapshot is a deep, JSON-serializable copy of the store. It doubles as
// the seed format of the mock server.
type Snapshot struct {
	Cluster *model.ClusterStatus           `json:"cluster,omitempty"`
	Nodes   []model.Node                   `json:"nodes"`
	Models  []model.Model                  `json:"models"`
	Users   []model.User                   `json:"users"`
	Metrics map[string][]model.MetricPoint `json:"metrics"`
	Alerts  []model.Alert                  `json:"alerts"`
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Nodes:   cloneNodes(s.nodes),
		Models:  cloneModels(s.models),
		Users:   cloneUsers(s.users),
		Metrics: make(map[string][]model.MetricPoint, len(s.metrics)),
		Alerts:  make([]model.Alert, len(s.alerts)),
	}
	if s.cluster != nil {
		cs := *s.cluster
		snap.Cluster = &cs
	}
	for name, ser := range s.metrics {
		snap.Metrics[name] = ser.last(0)
	}
	copy(snap.Alerts, s.alerts)
	return snap
}

// Load replaces the whole state with snap. Connection state and refresh
// stamps are left alone since they describe this process, not the data.
func (s *Store) Load(snap Snapshot) {
	nodes, nodeIdx := indexNodes(snap.Nodes)
	models, modelIdx := indexModels(snap.Models)
	users := cloneUsers(snap.Users)
	alerts := make([]model.Alert, len(snap.Alerts))
	for i, a := range snap.Alerts {
		a.CreatedAt = normTime(a.CreatedAt)
		alerts[i] = a
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cluster = nil
	if snap.Cluster != nil {
		cs := *snap.Cluster
		cs.UpdatedAt = normTime(cs.UpdatedAt)
		s.cluster = &cs
	}
	s.nodes, s.nodeIdx = nodes, nodeIdx
	s.models, s.modelIdx = models, modelIdx
	s.users = users
	s.metrics = s.buildSeries(snap.Metrics)
	s.alerts = alerts
	s.touch()
}

// Export writes the current state as indented JSON.
func (s *Store) Export(w io.Writer) error {
	return WriteSnapshot(w, s.Snapshot())
}

// Import replaces the current state with a snapshot read from r.
func (s *Store) Import(r io.Reader) error {
	snap, err := ReadSnapshot(r)
	if err != nil {
		return err
	}
	s.Load(snap)
	return nil
}

// WriteSnapshot encodes snap as indented JSON.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return errors.WrapWithCode(err, errors.ErrState,
			"Failed to write snapshot",
			"Check the output path is writable")
	}
	return nil
}

// ReadSnapshot decodes a snapshot produced by WriteSnapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, errors.WrapWithCode(err, errors.ErrDecode,
			"Failed to read snapshot",
			"The file should be the JSON written by 'cw export'")
	}
	if snap.Metrics == nil {
		snap.Metrics = map[string][]model.MetricPoint{}
	}
	return snap, nil
}
