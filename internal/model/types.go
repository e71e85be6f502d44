// Package model holds the view-model records reconciled from the cluster's
// WebSocket events and REST resources. They are plain data; all mutation
// rules live in the store.
package model

import "time"

// NodeStatus is the health/status of a cluster node.
type NodeStatus string

const (
	NodeOnline    NodeStatus = "online"
	NodeOffline   NodeStatus = "offline"
	NodeHealthy   NodeStatus = "healthy"
	NodeUnhealthy NodeStatus = "unhealthy"
)

// IsUp reports whether the node is considered reachable.
func (s NodeStatus) IsUp() bool {
	return s == NodeOnline || s == NodeHealthy
}

// Valid reports whether s is one of the known node statuses.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeOnline, NodeOffline, NodeHealthy, NodeUnhealthy:
		return true
	}
	return false
}

// ModelStatus is the lifecycle status of a served model.
type ModelStatus string

const (
	ModelAvailable   ModelStatus = "available"
	ModelDownloading ModelStatus = "downloading"
	ModelRunning     ModelStatus = "running"
	ModelStopped     ModelStatus = "stopped"
	ModelError       ModelStatus = "error"
)

// Valid reports whether s is one of the known model statuses.
func (s ModelStatus) Valid() bool {
	switch s {
	case ModelAvailable, ModelDownloading, ModelRunning, ModelStopped, ModelError:
		return true
	}
	return false
}

// Node is a cluster member as seen by the dashboard.
type Node struct {
	ID      string     `json:"id"`
	Address string     `json:"address,omitempty"`
	Status  NodeStatus `json:"status,omitempty"`
	CPU     float64    `json:"cpu"`
	Memory  float64    `json:"memory"`
	Disk    float64    `json:"disk"`
	Models  []string   `json:"models,omitempty"`
}

// Model is a served model. Name is its identifier.
type Model struct {
	Name     string      `json:"name"`
	Size     string      `json:"size,omitempty"`
	Status   ModelStatus `json:"status,omitempty"`
	Replicas []string    `json:"replicas,omitempty"`
	Ready    bool        `json:"ready"`
}

// User is a dashboard user account. Only refreshed via REST.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Active   bool     `json:"active"`
}

// ClusterStatus is the cluster-wide summary snapshot.
type ClusterStatus struct {
	Status       string    `json:"status,omitempty"`
	Leader       string    `json:"leader,omitempty"`
	Version      string    `json:"version,omitempty"`
	NodeCount    int       `json:"node_count"`
	HealthyNodes int       `json:"healthy_nodes"`
	ModelCount   int       `json:"model_count"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// MetricPoint is one sample of a named metric.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Severity classifies user-facing alerts.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity maps free-form server severities onto the known set.
// Unknown values become SeverityInfo.
func ParseSeverity(s string) Severity {
	switch s {
	case "success", "ok":
		return SeveritySuccess
	case "warning", "warn":
		return SeverityWarning
	case "error", "critical", "danger", "fatal":
		return SeverityError
	default:
		return SeverityInfo
	}
}

// Alert is a transient user-facing notification.
// Duration 0 means the alert stays until dismissed.
type Alert struct {
	ID        uint64        `json:"id"`
	Severity  Severity      `json:"severity"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// ConnectionState is the lifecycle state of the WebSocket transport.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateError        ConnectionState = "error"
)

// Connection is the transport state as shown to the user.
type Connection struct {
	State    ConnectionState `json:"state"`
	Attempts int             `json:"attempts"`
	Since    time.Time       `json:"since"`
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	n.Models = cloneStrings(n.Models)
	return n
}

// Clone returns a deep copy of m.
func (m Model) Clone() Model {
	m.Replicas = cloneStrings(m.Replicas)
	return m
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	u.Roles = cloneStrings(u.Roles)
	return u
}

// cloneStrings copies s. Empty slices become nil so records survive a JSON
// round trip unchanged.
func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
