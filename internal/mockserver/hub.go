package mockserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/cw/internal/event"
	"github.com/rileyhilliard/cw/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// defaultTopics are subscribed for every new client.
var defaultTopics = []string{
	event.TypeClusterStatus,
	event.TypeNodeUpdate,
	event.TypeModelUpdate,
	event.TypeMetrics,
	event.TypeAlert,
	event.TypeHeartbeat,
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	// subs is guarded by Hub.mu.
	subs map[string]bool
}

type outbound struct {
	topic string
	data  []byte
}

type direct struct {
	c    *client
	data []byte
}

// Hub fans frames out to connected sockets by topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan outbound
	direct     chan direct
	done       chan struct{}

	upgrader  websocket.Upgrader
	heartbeat time.Duration
	log       logger.Logger
}

// NewHub creates a hub. heartbeat <= 0 disables heartbeat frames.
func NewHub(heartbeat time.Duration, log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outbound, 256),
		direct:     make(chan direct, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			// non-browser clients only; any origin is fine for a mock
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		heartbeat: heartbeat,
		log:       logger.OrDefault(log),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	var tick <-chan time.Time
	if h.heartbeat > 0 {
		t := time.NewTicker(h.heartbeat)
		defer t.Stop()
		tick = t.C
	}
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Info("client %s connected", c.id)
			h.deliver(c, h.frame(event.TypeWelcome, map[string]any{
				"client_id": c.id,
				"message":   "Connected to cw mock cluster",
			}))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info("client %s disconnected", c.id)

		case d := <-h.direct:
			h.deliver(d.c, d.data)

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-tick:
			h.fanOut(outbound{topic: event.TypeHeartbeat, data: h.frame(event.TypeHeartbeat, nil)})
		}
	}
}

func (h *Hub) fanOut(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.subs[msg.topic] {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			// slow consumer
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// deliver must only be called from Run.
func (h *Hub) deliver(c *client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) frame(typ string, data any) []byte {
	env, err := event.NewEnvelope(typ, data)
	if err != nil {
		h.log.Error("encode %s frame: %v", typ, err)
		return nil
	}
	b, _ := json.Marshal(env)
	return b
}

// Broadcast sends env to every client subscribed to its type. It returns
// false once the hub has stopped.
func (h *Hub) Broadcast(env event.Envelope) bool {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error("marshal %s: %v", env.Type, err)
		return false
	}
	select {
	case h.broadcast <- outbound{topic: env.Type, data: data}:
		return true
	case <-h.done:
		return false
	}
}

// Emit encodes ev and broadcasts it.
func (h *Hub) Emit(ev event.Event) bool {
	env, err := event.Encode(ev)
	if err != nil {
		h.log.Error("encode %s: %v", ev.Kind(), err)
		return false
	}
	return h.Broadcast(env)
}

// ClientCount returns the number of connected sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscriptions returns the sorted topics of every client, keyed by id.
func (h *Hub) Subscriptions() map[string][]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]string, len(h.clients))
	for c := range h.clients {
		topics := make([]string, 0, len(c.subs))
		for t, on := range c.subs {
			if on {
				topics = append(topics, t)
			}
		}
		sort.Strings(topics)
		out[c.id] = topics
	}
	return out
}

// ServeHTTP upgrades the request and registers the socket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade: %v", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 64),
		subs: make(map[string]bool, len(defaultTopics)),
	}
	for _, t := range defaultTopics {
		c.subs[t] = true
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (h *Hub) reply(c *client, typ string, data any) {
	select {
	case h.direct <- direct{c: c, data: h.frame(typ, data)}:
	case <-h.done:
	}
}

func (h *Hub) replyError(c *client, msg string) {
	env := event.Envelope{Type: event.TypeError, Timestamp: time.Now().UTC(), Error: msg}
	data, _ := json.Marshal(env)
	select {
	case h.direct <- direct{c: c, data: data}:
	case <-h.done:
	}
}

func (h *Hub) setTopics(c *client, topics []string, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		if on {
			c.subs[t] = true
		} else {
			delete(c.subs, t)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := event.ParseEnvelope(raw)
		if err != nil {
			h.replyError(c, "Invalid message format")
			continue
		}

		switch env.Type {
		case event.TypeSubscribe, event.TypeUnsubscribe:
			var p event.TopicsPayload
			if err := json.Unmarshal(env.Payload(), &p); err != nil || p.Topics == nil {
				h.replyError(c, "Invalid topics format")
				continue
			}
			if env.Type == event.TypeSubscribe {
				h.setTopics(c, p.Topics, true)
				h.reply(c, event.TypeSubscriptionConfirmed, map[string]any{"subscribed_topics": p.Topics})
			} else {
				h.setTopics(c, p.Topics, false)
				h.reply(c, event.TypeUnsubscriptionConfirmed, map[string]any{"unsubscribed_topics": p.Topics})
			}
		case event.TypeHeartbeat:
			h.reply(c, event.TypeHeartbeat, nil)
		default:
			h.log.Warn("client %s sent unknown message type %q", c.id, env.Type)
			h.replyError(c, "Unknown message type")
		}
	}
}
