// Package transport owns the single WebSocket connection to the cluster.
//
// The client reconnects a bounded number of times with a fixed delay.
// Once the budget is spent it stays disconnected until Retry is called.
// Incoming frames are parsed into envelopes and handed to the per-topic
// handlers and then to the default handler, in arrival order, on the
// connection's read goroutine.
package transport

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rileyhilliard/cw/internal/config"
	"github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/event"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/metrics"
	"github.com/rileyhilliard/cw/internal/model"
)

// Handler receives parsed envelopes.
type Handler func(event.Envelope)

// StateFunc observes connection state transitions.
type StateFunc func(state model.ConnectionState, attempts int)

// GiveUpFunc is told when the reconnect budget is spent.
type GiveUpFunc func(attempts int)

// Config controls the connection.
type Config struct {
	URL                  string
	Header               http.Header
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	PingInterval         time.Duration
	PongWait             time.Duration
	WriteWait            time.Duration
	// Topics are subscribed on every connect, in addition to Subscribe calls.
	Topics []string
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// ConfigFrom derives the transport settings from the app config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	u, err := cfg.Server.WebSocketURL()
	if err != nil {
		return Config{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't derive the WebSocket URL from server.base_url",
			"Check server.base_url in your .cw.yaml")
	}
	header := http.Header{}
	if cfg.Server.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Server.Token)
	}
	return Config{
		URL:                  u,
		Header:               header,
		ReconnectDelay:       cfg.Transport.ReconnectDelay,
		MaxReconnectAttempts: cfg.Transport.MaxReconnectAttempts,
		PingInterval:         cfg.Transport.PingInterval,
		PongWait:             cfg.Transport.PongWait,
		WriteWait:            cfg.Transport.WriteWait,
		Topics:               append([]string(nil), cfg.Transport.Topics...),
	}, nil
}

// Client is one WebSocket connection with reconnect. Create it with New;
// nothing happens until Connect.
type Client struct {
	cfg       Config
	dialer    *websocket.Dialer
	onMessage Handler
	log       logger.Logger
	metrics   *metrics.Metrics

	writeMu sync.Mutex
	wg      sync.WaitGroup

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	state     model.ConnectionState
	attempts  int
	started   bool
	stopped   bool
	dialing   bool
	conn      *websocket.Conn
	done      chan struct{}
	gen       uint64
	timer     *time.Timer
	topics    map[string]Handler
	listeners []StateFunc
	giveUps   []GiveUpFunc
}

// New creates a client. onMessage receives every frame after any topic
// handler; it may be nil.
func New(cfg Config, onMessage Handler, log logger.Logger, m *metrics.Metrics) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &Client{
		cfg:       cfg,
		dialer:    dialer,
		onMessage: onMessage,
		log:       logger.OrDefault(log),
		metrics:   m,
		state:     model.StateDisconnected,
		topics:    make(map[string]Handler),
	}
}

// URL returns the socket URL.
func (c *Client) URL() string {
	return c.cfg.URL
}

// State returns the current connection state.
func (c *Client) State() model.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns how many reconnects have been scheduled since the last
// successful open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// OnStateChange registers fn for every transition. Callbacks run outside
// the client's lock and may call State.
func (c *Client) OnStateChange(fn StateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OnGiveUp registers fn to run once each time the client stops
// reconnecting. It does not fire while a reconnect is still pending.
func (c *Client) OnGiveUp(fn GiveUpFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.giveUps = append(c.giveUps, fn)
}

// Connect opens the socket. A failed first dial is returned, and the
// reconnect loop takes over as if the connection had closed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New(errors.ErrState, "transport already started", "Call Disconnect before connecting again")
	}
	c.started = true
	c.stopped = false
	c.attempts = 0
	c.ctx, c.cancel = context.WithCancel(ctx)
	gen := c.gen
	c.mu.Unlock()

	return c.dial(gen)
}

// Retry resets the attempt counter and dials immediately. Use it after the
// client gave up. It is a no-op while connected or dialing.
func (c *Client) Retry(ctx context.Context) error {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return c.Connect(ctx)
	}
	if c.conn != nil || c.dialing {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.attempts = 0
	gen := c.gen
	c.mu.Unlock()

	return c.dial(gen)
}

// Disconnect closes the socket and cancels any pending reconnect. The
// client can be connected again afterwards. Handlers must not call it.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.stopped = true
	c.dialing = false
	c.gen++
	if c.cancel != nil {
		c.cancel()
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.closeConnLocked()
	c.attempts = 0
	c.state = model.StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	c.wg.Wait()

	c.metrics.SetConnected(false)
	c.notify(model.StateDisconnected, 0)
}

// Subscribe routes frames whose type equals topic to handler, and asks the
// server to send that topic. Re-subscribing replaces the handler.
func (c *Client) Subscribe(topic string, handler Handler) {
	c.mu.Lock()
	c.topics[topic] = handler
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.write(conn, event.Subscribe(topic)); err != nil {
			c.log.Warn("subscribe %s: %v", topic, err)
		}
	}
}

// Unsubscribe removes the topic handler and tells the server.
func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.topics, topic)
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.write(conn, event.Unsubscribe(topic)); err != nil {
			c.log.Warn("unsubscribe %s: %v", topic, err)
		}
	}
}

// Topics returns the active topic subscriptions, sorted.
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topicsLocked()
}

// Send writes v as a JSON text frame.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.New(errors.ErrTransport, "WebSocket is not connected", "Wait for the connection or call Retry")
	}
	if err := c.write(conn, v); err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport, "WebSocket write failed", "")
	}
	return nil
}

func (c *Client) write(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return conn.WriteJSON(v)
}

// dial opens a connection for generation gen. A dial that outlives its
// generation (Disconnect ran meanwhile) leaves the client untouched.
func (c *Client) dial(gen uint64) error {
	c.mu.Lock()
	if c.stopped || c.dialing || c.conn != nil || gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.dialing = true
	c.timer = nil
	c.state = model.StateConnecting
	ctx := c.ctx
	attempts := c.attempts
	c.mu.Unlock()
	c.notify(model.StateConnecting, attempts)

	c.log.Debug("dialing %s (attempt %d)", c.cfg.URL, attempts)
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.log.Warn("websocket dial %s: %v", c.cfg.URL, err)
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return err
		}
		c.dialing = false
		if c.stopped {
			c.mu.Unlock()
			return err
		}
		state, attempts, gaveUp := c.scheduleLocked(err)
		c.mu.Unlock()
		c.notify(state, attempts)
		if gaveUp {
			c.notifyGiveUp(attempts)
		}
		return errors.WrapWithCode(err, errors.ErrTransport,
			"Couldn't open the WebSocket to "+c.cfg.URL,
			"Check the server is up; cw keeps polling REST meanwhile")
	}

	c.mu.Lock()
	if gen != c.gen || c.stopped {
		if gen == c.gen {
			c.dialing = false
		}
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.dialing = false
	c.gen++
	gen = c.gen
	done := make(chan struct{})
	c.conn = conn
	c.done = done
	c.attempts = 0
	c.state = model.StateConnected
	topics := c.topicsLocked()
	c.wg.Add(2)
	c.mu.Unlock()

	c.log.Info("websocket connected to %s", c.cfg.URL)
	c.metrics.SetConnected(true)
	c.notify(model.StateConnected, 0)

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	go c.readLoop(conn, gen)
	go c.pingLoop(conn, done)

	if len(topics) > 0 {
		if err := c.write(conn, event.Subscribe(topics...)); err != nil {
			c.log.Warn("resubscribe: %v", err)
		}
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	defer c.wg.Done()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("websocket read: %v", err)
			} else {
				c.log.Debug("websocket closed: %v", err)
			}
			c.lost(gen, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		env, err := event.ParseEnvelope(raw)
		if err != nil {
			c.metrics.RecordDecodeError()
			c.log.Warn("dropping malformed frame: %v", err)
			continue
		}
		c.metrics.RecordMessage(env.Type)

		c.mu.Lock()
		h := c.topics[env.Type]
		c.mu.Unlock()
		if h != nil {
			h(env)
		}
		if c.onMessage != nil {
			c.onMessage(env)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.log.Debug("ping: %v", err)
				return
			}
		}
	}
}

// lost handles the end of connection gen. Stale generations are ignored.
func (c *Client) lost(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.conn == nil || c.stopped {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.closeConnLocked()
	state, attempts, gaveUp := c.scheduleLocked(err)
	c.mu.Unlock()

	_ = conn.Close()
	c.metrics.SetConnected(false)
	c.notify(state, attempts)
	if gaveUp {
		c.notifyGiveUp(attempts)
	}
}

// scheduleLocked arms the next reconnect if the budget allows and returns
// the resulting state. gaveUp is true only when no reconnect was armed.
// Must be called with c.mu held.
func (c *Client) scheduleLocked(cause error) (state model.ConnectionState, attempts int, gaveUp bool) {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.state = model.StateDisconnected
		c.log.Warn("websocket gave up after %d reconnect attempts", c.attempts)
		return c.state, c.attempts, true
	}

	c.attempts++
	c.metrics.RecordReconnect()
	c.state = model.StateDisconnected
	if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.state = model.StateError
	}
	c.log.Info("reconnecting in %v (%d/%d)", c.cfg.ReconnectDelay, c.attempts, c.cfg.MaxReconnectAttempts)
	gen := c.gen
	c.timer = time.AfterFunc(c.cfg.ReconnectDelay, func() { _ = c.dial(gen) })
	return c.state, c.attempts, false
}

// closeConnLocked drops the current connection. Must be called with c.mu held.
func (c *Client) closeConnLocked() {
	if c.conn == nil {
		return
	}
	close(c.done)
	c.conn = nil
	c.done = nil
}

func (c *Client) topicsLocked() []string {
	seen := make(map[string]bool, len(c.cfg.Topics)+len(c.topics))
	var out []string
	for _, t := range c.cfg.Topics {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for t := range c.topics {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Client) notify(state model.ConnectionState, attempts int) {
	c.mu.Lock()
	listeners := append([]StateFunc(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(state, attempts)
	}
}

func (c *Client) notifyGiveUp(attempts int) {
	c.mu.Lock()
	fns := append([]GiveUpFunc(nil), c.giveUps...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(attempts)
	}
}
