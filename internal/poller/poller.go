// Package poller refreshes the view-model from the REST API on a fixed
// interval. A failed fetch keeps the last-known data in place.
package poller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/rileyhilliard/cw/internal/api"
	"github.com/rileyhilliard/cw/internal/config"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/metrics"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/store"
)

// Resource names a REST collection.
type Resource string

const (
	Cluster Resource = "cluster"
	Nodes   Resource = "nodes"
	Models  Resource = "models"
	Users   Resource = "users"
	Metrics Resource = "metrics"
)

// All lists every resource, cluster status first.
var All = []Resource{Cluster, Nodes, Models, Users, Metrics}

// pushed are the resources the socket keeps current while connected.
var pushed = map[Resource]bool{Cluster: true, Nodes: true, Models: true, Metrics: true}

// ParseResources maps names onto resources. No names means All.
func ParseResources(names []string) ([]Resource, error) {
	if len(names) == 0 {
		return All, nil
	}
	out := make([]Resource, 0, len(names))
	for _, n := range names {
		r := Resource(strings.ToLower(strings.TrimSpace(n)))
		switch r {
		case Cluster, Nodes, Models, Users, Metrics:
			out = append(out, r)
		default:
			return nil, cwerrors.New(cwerrors.ErrConfig,
				fmt.Sprintf("Unknown resource %q", n),
				"Valid resources: cluster, nodes, models, users, metrics")
		}
	}
	return out, nil
}

// Source is the subset of the REST client the poller reads from.
type Source interface {
	ClusterStatus(ctx context.Context) (model.ClusterStatus, error)
	Nodes(ctx context.Context) ([]model.Node, error)
	Models(ctx context.Context) ([]model.Model, error)
	Users(ctx context.Context) ([]model.User, error)
	Metrics(ctx context.Context) (api.MetricsResult, error)
}

var _ Source = (*api.Client)(nil)

// Config controls polling cadence.
type Config struct {
	Interval time.Duration
	// Mode is config.PollAlways or config.PollFallback.
	Mode string
	// Connected reports whether the socket is up. Only consulted in
	// fallback mode; nil counts as disconnected.
	Connected func() bool
}

// ConfigFrom builds a poller config from the polling section of cfg.
func ConfigFrom(cfg *config.Config) Config {
	return Config{Interval: cfg.Polling.Interval, Mode: cfg.Polling.Mode}
}

// Poller copies REST resources into the store.
type Poller struct {
	src     Source
	store   *store.Store
	cfg     Config
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a poller reading from src and writing into st.
func New(src Source, st *store.Store, cfg Config, log logger.Logger, m *metrics.Metrics) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultConfig().Polling.Interval
	}
	if cfg.Mode == "" {
		cfg.Mode = config.PollAlways
	}
	return &Poller{
		src:     src,
		store:   st,
		cfg:     cfg,
		log:     logger.OrDefault(log),
		metrics: m,
		now:     time.Now,
	}
}

// Interval returns the tick period.
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// Run refreshes immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Due returns the resources a tick should fetch under the current mode.
func (p *Poller) Due() []Resource {
	if p.cfg.Mode != config.PollFallback || p.cfg.Connected == nil || !p.cfg.Connected() {
		return All
	}
	var out []Resource
	for _, r := range All {
		if !pushed[r] {
			out = append(out, r)
		}
	}
	return out
}

// Tick runs one scheduled refresh. Errors are logged, not returned.
func (p *Poller) Tick(ctx context.Context) {
	_ = p.Refresh(ctx, p.Due()...)
}

// Refresh fetches the given resources (all when none are given). Cluster
// status goes first; the rest run in parallel. Every failure is returned
// combined, and the affected collections keep their previous contents.
func (p *Poller) Refresh(ctx context.Context, resources ...Resource) error {
	if len(resources) == 0 {
		resources = All
	}

	var err error
	rest := make([]Resource, 0, len(resources))
	for _, r := range dedupe(resources) {
		if r == Cluster {
			err = multierr.Append(err, p.fetch(ctx, Cluster))
			continue
		}
		rest = append(rest, r)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, r := range rest {
		wg.Add(1)
		go func(r Resource) {
			defer wg.Done()
			if ferr := p.fetch(ctx, r); ferr != nil {
				mu.Lock()
				errs = multierr.Append(errs, ferr)
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	return multierr.Append(err, errs)
}

func (p *Poller) fetch(ctx context.Context, r Resource) error {
	start := time.Now()
	err := p.load(ctx, r)
	p.metrics.RecordPoll(string(r), err, time.Since(start))
	if err != nil {
		p.log.Warn("refresh %s failed, keeping last-known data: %s", r, cwerrors.Short(err))
		return err
	}
	p.store.MarkRefreshed(string(r))
	p.log.Debug("refreshed %s in %s", r, time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Poller) load(ctx context.Context, r Resource) error {
	switch r {
	case Cluster:
		cs, err := p.src.ClusterStatus(ctx)
		if err != nil {
			return err
		}
		if cs.UpdatedAt.IsZero() {
			cs.UpdatedAt = p.now()
		}
		p.store.SetCluster(cs)
	case Nodes:
		nodes, err := p.src.Nodes(ctx)
		if err != nil {
			return err
		}
		p.store.ReplaceNodes(nodes)
	case Models:
		models, err := p.src.Models(ctx)
		if err != nil {
			return err
		}
		p.store.ReplaceModels(models)
	case Users:
		users, err := p.src.Users(ctx)
		if err != nil {
			return err
		}
		p.store.ReplaceUsers(users)
	case Metrics:
		res, err := p.src.Metrics(ctx)
		if err != nil {
			return err
		}
		switch {
		case len(res.Series) > 0:
			p.store.ReplaceMetrics(res.Series)
		case len(res.Values) > 0:
			ts := res.Timestamp
			if ts.IsZero() {
				ts = p.now()
			}
			p.store.AppendMetrics(ts, res.Values)
		}
	default:
		return cwerrors.New(cwerrors.ErrState, fmt.Sprintf("Unknown resource %q", r), "")
	}
	return nil
}

func dedupe(in []Resource) []Resource {
	seen := make(map[Resource]bool, len(in))
	out := in[:0:0]
	for _, r := range in {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
