package event

import (
	"encoding/json"
	"time"
)

// Wire message types pushed by the cluster.
const (
	TypeClusterStatus = "cluster_status"
	TypeNodeUpdate    = "node_update"
	TypeModelUpdate   = "model_update"
	TypeMetrics       = "metrics"
	TypeAlert         = "alert"
)

// Control frame types. These carry protocol state, not view-model data.
const (
	TypeWelcome                 = "welcome"
	TypeHeartbeat               = "heartbeat"
	TypeSubscribe               = "subscribe"
	TypeUnsubscribe             = "unsubscribe"
	TypeSubscriptionConfirmed   = "subscription_confirmed"
	TypeUnsubscriptionConfirmed = "unsubscription_confirmed"
	TypeError                   = "error"
)

// Envelope is the frame shape on the socket. Data holds the payload; some
// servers put the payload fields next to type instead, which Decode accepts.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`

	raw []byte
}

// ParseEnvelope decodes one socket frame. The original bytes are retained
// for payloads that aren't nested under data.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	env.raw = append([]byte(nil), raw...)
	return env, nil
}

// NewEnvelope builds an envelope with data marshaled as the payload.
func NewEnvelope(typ string, data any) (Envelope, error) {
	env := Envelope{Type: typ, Timestamp: time.Now().UTC()}
	if data == nil {
		return env, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = b
	return env, nil
}

// Payload returns the nested data, or the whole frame when data is absent.
func (e Envelope) Payload() json.RawMessage {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return e.Data
	}
	return e.raw
}

// TopicsPayload is the data of subscribe and unsubscribe frames.
type TopicsPayload struct {
	Topics []string `json:"topics"`
}

// Subscribe builds a subscribe frame for topics.
func Subscribe(topics ...string) Envelope {
	env, _ := NewEnvelope(TypeSubscribe, TopicsPayload{Topics: topics})
	return env
}

// Unsubscribe builds an unsubscribe frame for topics.
func Unsubscribe(topics ...string) Envelope {
	env, _ := NewEnvelope(TypeUnsubscribe, TopicsPayload{Topics: topics})
	return env
}
