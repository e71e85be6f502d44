package doctor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rileyhilliard/cw/internal/api"
	"github.com/rileyhilliard/cw/internal/config"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/transport"
)

// DefaultTimeout bounds each network check.
const DefaultTimeout = 5 * time.Second

// RESTCheck fetches the cluster status over REST.
type RESTCheck struct {
	Config  *config.Config
	Timeout time.Duration
}

func (c *RESTCheck) Name() string     { return "rest_api" }
func (c *RESTCheck) Category() string { return CategoryServer }

func (c *RESTCheck) Run(ctx context.Context) CheckResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := api.NewClient(c.Config.Server.BaseURL, api.WithToken(c.Config.Server.Token), api.WithTimeout(timeout))

	start := time.Now()
	cs, err := client.ClusterStatus(ctx)
	if err != nil {
		res := CheckResult{Status: StatusFail, Message: cwerrors.Short(err)}
		switch api.StatusCode(err) {
		case 0:
			res.Suggestion = "Check the cluster is running and server.base_url is right"
		case http.StatusUnauthorized, http.StatusForbidden:
			res.Message = "Token rejected by " + c.Config.Server.BaseURL
			res.Suggestion = "Set server.token in .cw.yaml or pass --token"
		default:
			res.Suggestion = "The server answered but not like a cluster API; check the URL path"
		}
		return res
	}

	msg := fmt.Sprintf("%s answered in %s", c.Config.Server.BaseURL, time.Since(start).Round(time.Millisecond))
	if cs.Status != "" {
		msg += fmt.Sprintf(" (cluster %s, %d/%d nodes healthy)", cs.Status, cs.HealthyNodes, cs.NodeCount)
	}
	return CheckResult{Status: StatusPass, Message: msg}
}

// WebSocketCheck performs one socket handshake and closes it.
type WebSocketCheck struct {
	Config  *config.Config
	Timeout time.Duration
}

func (c *WebSocketCheck) Name() string     { return "websocket" }
func (c *WebSocketCheck) Category() string { return CategoryServer }

func (c *WebSocketCheck) Run(ctx context.Context) CheckResult {
	tc, err := transport.ConfigFrom(c.Config)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: cwerrors.Short(err)}
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: timeout, Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, tc.URL, tc.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		res := CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Can't open %s: %v", tc.URL, err),
			Suggestion: "Live updates won't work; the dashboard will fall back to REST polling",
		}
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			res.Message = "Socket handshake rejected the token"
		}
		return res
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	conn.Close()

	return CheckResult{Status: StatusPass, Message: "Live updates available at " + tc.URL}
}
