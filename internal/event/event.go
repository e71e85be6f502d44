// Package event turns socket envelopes into a closed set of typed events.
//
// Every variant implements Event, and dispatch goes through Handler, which
// has one method per variant. Adding a variant means adding a Handler
// method, so every consumer fails to compile until it handles the new case.
package event

import (
	"encoding/json"
	"time"

	"github.com/rileyhilliard/cw/internal/model"
)

// Event is one decoded socket message.
type Event interface {
	// Kind is the wire type the event was decoded from.
	Kind() string
	// Dispatch calls the Handler method for this variant.
	Dispatch(h Handler)

	payload() any
}

// Handler receives each event variant.
type Handler interface {
	HandleClusterStatus(ClusterStatus)
	HandleNodeUpdate(NodeUpdate)
	HandleModelUpdate(ModelUpdate)
	HandleMetrics(Metrics)
	HandleAlert(Alert)
	HandleControl(Control)
	HandleServerError(ServerError)
	HandleUnknown(Unknown)
}

// ClusterStatus replaces the cluster summary wholesale.
type ClusterStatus struct {
	Status model.ClusterStatus
}

// NodeUpdate is a partial node record to upsert by id.
type NodeUpdate struct {
	Patch model.NodePatch
}

// ModelUpdate is a partial model record to upsert by name.
type ModelUpdate struct {
	Patch model.ModelPatch
}

// Sample is one named value inside a metrics event.
type Sample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Metrics carries one or more samples taken at the same instant.
// Samples are sorted by name.
type Metrics struct {
	Timestamp time.Time
	Samples   []Sample
}

// Alert is a server-pushed notification. A nil Duration means the
// receiver's default applies.
type Alert struct {
	Severity model.Severity
	Message  string
	Duration *time.Duration
}

// Control is a protocol frame such as welcome or heartbeat.
type Control struct {
	Type string
	Data []byte
}

// ServerError is an error frame reported by the server.
type ServerError struct {
	Message string
}

// Unknown is a frame whose type this client doesn't understand.
type Unknown struct {
	Type string
	Raw  []byte
}

func (ClusterStatus) Kind() string { return TypeClusterStatus }
func (NodeUpdate) Kind() string    { return TypeNodeUpdate }
func (ModelUpdate) Kind() string   { return TypeModelUpdate }
func (Metrics) Kind() string       { return TypeMetrics }
func (Alert) Kind() string         { return TypeAlert }
func (c Control) Kind() string     { return c.Type }
func (ServerError) Kind() string   { return TypeError }
func (u Unknown) Kind() string     { return u.Type }

func (e ClusterStatus) Dispatch(h Handler) { h.HandleClusterStatus(e) }
func (e NodeUpdate) Dispatch(h Handler)    { h.HandleNodeUpdate(e) }
func (e ModelUpdate) Dispatch(h Handler)   { h.HandleModelUpdate(e) }
func (e Metrics) Dispatch(h Handler)       { h.HandleMetrics(e) }
func (e Alert) Dispatch(h Handler)         { h.HandleAlert(e) }
func (e Control) Dispatch(h Handler)       { h.HandleControl(e) }
func (e ServerError) Dispatch(h Handler)   { h.HandleServerError(e) }
func (e Unknown) Dispatch(h Handler)       { h.HandleUnknown(e) }

func (e ClusterStatus) payload() any { return e.Status }
func (e NodeUpdate) payload() any    { return e.Patch }
func (e ModelUpdate) payload() any   { return e.Patch }

func (e Metrics) payload() any {
	values := make(map[string]float64, len(e.Samples))
	for _, s := range e.Samples {
		values[s.Name] = s.Value
	}
	return metricsWire{Timestamp: e.Timestamp, Values: values}
}

func (e Alert) payload() any {
	w := alertWire{Severity: string(e.Severity), Message: e.Message}
	if e.Duration != nil {
		ms := e.Duration.Milliseconds()
		w.Duration = &ms
	}
	return w
}

func (e Control) payload() any {
	if len(e.Data) == 0 {
		return nil
	}
	return json.RawMessage(e.Data)
}

func (e ServerError) payload() any { return nil }

func (e Unknown) payload() any {
	if len(e.Raw) == 0 {
		return nil
	}
	return json.RawMessage(e.Raw)
}

type metricsWire struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

type alertWire struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Duration *int64 `json:"duration,omitempty"`
}

// Encode builds the envelope a server would send for e. Durations are
// written in milliseconds.
func Encode(e Event) (Envelope, error) {
	env, err := NewEnvelope(e.Kind(), e.payload())
	if err != nil {
		return Envelope{}, err
	}
	if se, ok := e.(ServerError); ok {
		env.Error = se.Message
	}
	return env, nil
}
