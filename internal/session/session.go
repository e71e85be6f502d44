// Package session wires the data layer together from a config and owns its
// lifecycle. Everything a presentation surface needs hangs off a Session;
// there is no package-level state.
package session

import (
	"context"
	"io"
	"sync"

	"github.com/rileyhilliard/cw/internal/actions"
	"github.com/rileyhilliard/cw/internal/alerts"
	"github.com/rileyhilliard/cw/internal/api"
	"github.com/rileyhilliard/cw/internal/config"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/metrics"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/poller"
	"github.com/rileyhilliard/cw/internal/router"
	"github.com/rileyhilliard/cw/internal/store"
	"github.com/rileyhilliard/cw/internal/transport"
)

// Session is one client's view of one cluster.
type Session struct {
	Config    *config.Config
	Log       logger.Logger
	Metrics   *metrics.Metrics
	Store     *store.Store
	Alerts    *alerts.Queue
	Router    *router.Router
	API       *api.Client
	Transport *transport.Client
	Poller    *poller.Poller
	Actions   *actions.Executor

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	closed  bool
}

// Option customizes New.
type Option func(*options)

type options struct {
	log     logger.Logger
	metrics *metrics.Metrics
	http    []api.Option
}

// WithLogger sets the logger shared by every component.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records into m instead of a fresh registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithAPIOptions passes extra options to the REST client.
func WithAPIOptions(opts ...api.Option) Option {
	return func(o *options) { o.http = append(o.http, opts...) }
}

// New validates cfg and builds every component. Nothing connects until
// Start.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.OrDefault(o.log)
	m := o.metrics
	if m == nil {
		m = metrics.New()
	}

	tcfg, err := transport.ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{Config: cfg, Log: log, Metrics: m}
	s.Store = store.New(cfg.Metrics.Window)
	s.Alerts = alerts.New(s.Store, cfg.Alerts.DefaultDuration, alerts.WithMetrics(m))
	s.Router = router.New(s.Store, s.Alerts, logger.With(log, "router"), m)

	apiOpts := append([]api.Option{
		api.WithToken(cfg.Server.Token),
		api.WithTimeout(cfg.Server.Timeout),
	}, o.http...)
	s.API = api.NewClient(cfg.Server.BaseURL, apiOpts...)

	s.Transport = transport.New(tcfg, s.Router.Route, logger.With(log, "transport"), m)
	s.Transport.OnStateChange(s.Store.SetConnection)
	s.Transport.OnGiveUp(s.onGiveUp)

	pcfg := poller.ConfigFrom(cfg)
	pcfg.Connected = func() bool { return s.Transport.State() == model.StateConnected }
	s.Poller = poller.New(s.API, s.Store, pcfg, logger.With(log, "poller"), m)

	s.Actions = actions.New(s.API, s.Poller, s.Alerts, logger.With(log, "actions"), m)
	return s, nil
}

func (s *Session) onGiveUp(attempts int) {
	s.Log.Warn("giving up on the socket after %d attempts; REST polling continues", attempts)
	s.Alerts.PushDefault(model.SeverityWarning, "Live updates unavailable, press R to retry")
}

// Start connects the socket and starts polling. A failed first connect is
// logged and left to the reconnect loop; polling runs regardless.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cwerrors.New(cwerrors.ErrState, "Session already stopped", "Create a new session")
	}
	if s.running {
		return cwerrors.New(cwerrors.ErrState, "Session already started", "")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	if err := s.Transport.Connect(runCtx); err != nil {
		s.Log.Error("connect %s: %s", s.Transport.URL(), cwerrors.Short(err))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Poller.Run(runCtx)
	}()
	return nil
}

// Stop disconnects, stops polling and cancels alert timers. It is safe to
// call more than once. A stopped session can't be started again.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.Transport.Disconnect()
	s.wg.Wait()
	s.Alerts.Close()
}

// Refresh re-fetches resources over REST (all when none are given).
func (s *Session) Refresh(ctx context.Context, resources ...poller.Resource) error {
	return s.Poller.Refresh(ctx, resources...)
}

// Retry re-dials the socket after the reconnect budget ran out.
func (s *Session) Retry(ctx context.Context) error {
	return s.Transport.Retry(ctx)
}

// Execute runs a mutation and re-fetches what it touched.
func (s *Session) Execute(ctx context.Context, cmd actions.Command) actions.Result {
	return s.Actions.Execute(ctx, cmd)
}

// Export writes the view-model as JSON.
func (s *Session) Export(w io.Writer) error {
	return s.Store.Export(w)
}

// Import replaces the view-model with an exported snapshot. Alerts are
// handed to the queue so their remaining lifetime is honoured.
func (s *Session) Import(r io.Reader) error {
	snap, err := store.ReadSnapshot(r)
	if err != nil {
		return err
	}
	list := snap.Alerts
	snap.Alerts = nil
	s.Store.Load(snap)
	s.Alerts.Restore(list)
	return nil
}
