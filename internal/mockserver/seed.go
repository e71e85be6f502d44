package mockserver

import (
	"time"

	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/store"
)

// DemoSeed is a small three-node cluster used when no seed file is given.
func DemoSeed() store.Snapshot {
	now := time.Now().UTC().Truncate(time.Second)
	return store.Snapshot{
		Cluster: &model.ClusterStatus{Status: "healthy", Leader: "node-1", Version: "0.3.0-mock"},
		Nodes: []model.Node{
			{ID: "node-1", Address: "10.0.0.11:11434", Status: model.NodeHealthy, CPU: 32, Memory: 48, Disk: 61, Models: []string{"llama2:7b", "phi3:mini"}},
			{ID: "node-2", Address: "10.0.0.12:11434", Status: model.NodeHealthy, CPU: 55, Memory: 63, Disk: 40, Models: []string{"llama2:7b"}},
			{ID: "node-3", Address: "10.0.0.13:11434", Status: model.NodeOffline},
		},
		Models: []model.Model{
			{Name: "llama2:7b", Size: "3.8GB", Status: model.ModelRunning, Replicas: []string{"node-1", "node-2"}, Ready: true},
			{Name: "phi3:mini", Size: "2.3GB", Status: model.ModelAvailable, Replicas: []string{"node-1"}},
			{Name: "mistral:7b", Size: "4.1GB", Status: model.ModelStopped},
		},
		Users: []model.User{
			{ID: "u-1", Username: "admin", Email: "admin@example.com", Roles: []string{"admin"}, Active: true},
			{ID: "u-2", Username: "viewer", Roles: []string{"read"}, Active: true},
		},
		Metrics: map[string][]model.MetricPoint{
			"cpu":    {{Timestamp: now.Add(-time.Minute), Value: 41}, {Timestamp: now, Value: 43.5}},
			"memory": {{Timestamp: now.Add(-time.Minute), Value: 55}, {Timestamp: now, Value: 55.5}},
		},
	}
}
