// Package actions runs user-initiated cluster mutations. Each command is
// sent to the API, its structured result awaited, and then only the
// collections it touches are re-fetched. Nothing is applied to the store
// optimistically.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/cw/internal/alerts"
	"github.com/rileyhilliard/cw/internal/api"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/metrics"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/poller"
)

// Kind identifies a mutation.
type Kind string

const (
	PullModel   Kind = "model.pull"
	StartModel  Kind = "model.start"
	StopModel   Kind = "model.stop"
	DeleteModel Kind = "model.delete"
	DrainNode   Kind = "node.drain"
	DeleteNode  Kind = "node.delete"
	UpdateUser  Kind = "user.update"
	DeleteUser  Kind = "user.delete"
)

// Command is one mutation against a single target.
type Command struct {
	Kind Kind
	// Target is a model name, node id or user id.
	Target string
	// Body is sent as-is for UpdateUser.
	Body map[string]any
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s", c.Kind, c.Target)
}

// Result is the outcome of Execute.
type Result struct {
	Command  Command       `json:"command"`
	OK       bool          `json:"ok"`
	Code     int           `json:"code,omitempty"`
	Message  string        `json:"message,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
	// Refreshed lists the collections re-fetched after success.
	Refreshed []poller.Resource `json:"refreshed,omitempty"`
	// RefreshErr is set when the mutation succeeded but a re-fetch didn't.
	RefreshErr error `json:"-"`
}

// Mutator is the subset of the REST client used for mutations.
type Mutator interface {
	PullModel(ctx context.Context, name string) (api.Response, error)
	UpdateModel(ctx context.Context, name string, body any) (api.Response, error)
	DeleteModel(ctx context.Context, name string) (api.Response, error)
	UpdateNode(ctx context.Context, id string, body any) (api.Response, error)
	DeleteNode(ctx context.Context, id string) (api.Response, error)
	UpdateUser(ctx context.Context, id string, body any) (api.Response, error)
	DeleteUser(ctx context.Context, id string) (api.Response, error)
}

var _ Mutator = (*api.Client)(nil)

// Refresher re-fetches collections. *poller.Poller satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, resources ...poller.Resource) error
}

// Executor runs commands.
type Executor struct {
	api     Mutator
	refresh Refresher
	alerts  *alerts.Queue
	log     logger.Logger
	metrics *metrics.Metrics
}

// New creates an executor. q may be nil, in which case no alerts are pushed.
func New(m Mutator, r Refresher, q *alerts.Queue, log logger.Logger, mt *metrics.Metrics) *Executor {
	return &Executor{api: m, refresh: r, alerts: q, log: logger.OrDefault(log), metrics: mt}
}

type spec struct {
	verb    string
	noun    string
	affects []poller.Resource
	run     func(ctx context.Context, m Mutator, c Command) (api.Response, error)
}

var specs = map[Kind]spec{
	PullModel: {"pull", "model", []poller.Resource{poller.Models, poller.Cluster},
		func(ctx context.Context, m Mutator, c Command) (api.Response, error) {
			return m.PullModel(ctx, c.Target)
		}},
	StartModel: {"start", "model", []poller.Resource{poller.Models},
		func(ctx context.Context, m Mutator, c Command) (api.Response, error) {
			return m.UpdateModel(ctx, c.Target, map[string]string{"action": "start"})
		}},
	StopModel: {"stop", "model", []poller.Resource{poller.Models},
		func(ctx context.Context, m Mutator, c Command) (api.Response, error) {
			return m.UpdateModel(ctx, c.Target, map[string]string{"action": "stop"})
		}},
	DeleteModel: {"delete", "model", []poller.Resource{poller.Models, poller.Cluster},
		func(ctx context.Context, m Mutator, c Command) (api.Response, error) {
			return m.DeleteModel(ctx, c.Target)
		}},
	DrainNode: {"drain", "node", []poller.Resource{poller.Nodes, poller.Cluster},
		func(ctx context.Context, m Mutator, c Command) (api.Response, error) {
			return m.UpdateNode(ctx, c.Target, map[string]string{"action": "drain"})
		}},
	DeleteNode: {"delete", "node", []poller.Resource{poller.Nodes, poller.Cluster},
		func(ctx context.Context, m Mutator, c Command) (api.Response, error) {
			return m.DeleteNode(ctx, c.Target)
		}},
	UpdateUser: {"update", "user", []poller.Resource{poller.Users},
		func(ctx context.Context, m Mutator, c Command) (api.Response, error) {
			return m.UpdateUser(ctx, c.Target, c.Body)
		}},
	DeleteUser: {"delete", "user", []poller.Resource{poller.Users},
		func(ctx context.Context, m Mutator, c Command) (api.Response, error) {
			return m.DeleteUser(ctx, c.Target)
		}},
}

// Affects returns the collections kind touches.
func Affects(kind Kind) []poller.Resource {
	return append([]poller.Resource(nil), specs[kind].affects...)
}

// Execute runs cmd and reports its outcome. It never panics and always
// returns a Result; Err is set on failure.
func (e *Executor) Execute(ctx context.Context, cmd Command) Result {
	start := time.Now()
	res := Result{Command: cmd}

	sp, ok := specs[cmd.Kind]
	switch {
	case !ok:
		res.Err = cwerrors.New(cwerrors.ErrState, fmt.Sprintf("Unknown action %q", cmd.Kind), "")
	case strings.TrimSpace(cmd.Target) == "":
		res.Err = cwerrors.New(cwerrors.ErrState,
			fmt.Sprintf("Can't %s a %s without a name", sp.verb, sp.noun), "")
	case cmd.Kind == UpdateUser && len(cmd.Body) == 0:
		res.Err = cwerrors.New(cwerrors.ErrState, "Nothing to update", "Pass at least one field to change")
	}
	if res.Err != nil {
		res.Duration = time.Since(start)
		e.metrics.RecordAction(string(cmd.Kind), res.Err)
		return res
	}

	e.log.Debug("executing %s", cmd)
	resp, err := sp.run(ctx, e.api, cmd)
	res.Code = resp.Code
	res.Message = resp.Message
	e.metrics.RecordAction(string(cmd.Kind), err)

	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		e.log.Warn("%s failed: %s", cmd, cwerrors.Short(err))
		e.push(model.SeverityError, fmt.Sprintf("Couldn't %s %s %s: %s", sp.verb, sp.noun, cmd.Target, cwerrors.Short(err)))
		return res
	}

	res.OK = true
	if e.refresh != nil {
		res.Refreshed = append([]poller.Resource(nil), sp.affects...)
		if rerr := e.refresh.Refresh(ctx, res.Refreshed...); rerr != nil {
			res.RefreshErr = rerr
			e.log.Warn("%s succeeded but refresh failed: %s", cmd, cwerrors.Short(rerr))
		}
	}
	res.Duration = time.Since(start)

	e.push(model.SeveritySuccess, fmt.Sprintf("%s %s: %s requested", strings.ToUpper(sp.noun[:1])+sp.noun[1:], cmd.Target, sp.verb))
	return res
}

func (e *Executor) push(sev model.Severity, msg string) {
	if e.alerts == nil {
		return
	}
	e.alerts.PushDefault(sev, msg)
}
