// Package api is a client for the cluster REST endpoints the dashboard
// consumes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rileyhilliard/cw/internal/config"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/model"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// Client is a REST client for the cluster API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a new API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig builds a client from the server section of cfg.
func FromConfig(cfg *config.Config) *Client {
	return NewClient(cfg.Server.BaseURL,
		WithToken(cfg.Server.Token),
		WithTimeout(cfg.Server.Timeout))
}

// BaseURL returns the REST root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, body)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// ClusterStatus fetches GET /api/cluster/status.
func (c *Client) ClusterStatus(ctx context.Context) (model.ClusterStatus, error) {
	var cs model.ClusterStatus
	raw, err := c.get(ctx, "/api/cluster/status")
	if err != nil {
		return cs, err
	}
	if err := decodeObject(raw, "status", &cs); err != nil {
		return cs, decodeErr("cluster status", err)
	}
	return cs, nil
}

// Nodes fetches GET /api/nodes.
func (c *Client) Nodes(ctx context.Context) ([]model.Node, error) {
	var nodes []model.Node
	raw, err := c.get(ctx, "/api/nodes")
	if err != nil {
		return nil, err
	}
	if err := decodeList(raw, "nodes", &nodes); err != nil {
		return nil, decodeErr("nodes", err)
	}
	return nodes, nil
}

// Models fetches GET /api/models.
func (c *Client) Models(ctx context.Context) ([]model.Model, error) {
	var models []model.Model
	raw, err := c.get(ctx, "/api/models")
	if err != nil {
		return nil, err
	}
	if err := decodeList(raw, "models", &models); err != nil {
		return nil, decodeErr("models", err)
	}
	return models, nil
}

// Users fetches GET /api/users.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	raw, err := c.get(ctx, "/api/users")
	if err != nil {
		return nil, err
	}
	if err := decodeList(raw, "users", &users); err != nil {
		return nil, decodeErr("users", err)
	}
	return users, nil
}

// Metrics fetches GET /api/metrics.
func (c *Client) Metrics(ctx context.Context) (MetricsResult, error) {
	raw, err := c.get(ctx, "/api/metrics")
	if err != nil {
		return MetricsResult{}, err
	}
	res, err := decodeMetrics(raw)
	if err != nil {
		return MetricsResult{}, decodeErr("metrics", err)
	}
	return res, nil
}

// Response is the structured outcome of a mutation.
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// PullModel issues POST /api/models/{name}.
func (c *Client) PullModel(ctx context.Context, name string) (Response, error) {
	return c.mutate(ctx, http.MethodPost, "/api/models/"+url.PathEscape(name), nil)
}

// UpdateModel issues PUT /api/models/{name} with body.
func (c *Client) UpdateModel(ctx context.Context, name string, body any) (Response, error) {
	return c.mutate(ctx, http.MethodPut, "/api/models/"+url.PathEscape(name), body)
}

// DeleteModel issues DELETE /api/models/{name}.
func (c *Client) DeleteModel(ctx context.Context, name string) (Response, error) {
	return c.mutate(ctx, http.MethodDelete, "/api/models/"+url.PathEscape(name), nil)
}

// UpdateNode issues PUT /api/nodes/{id} with body.
func (c *Client) UpdateNode(ctx context.Context, id string, body any) (Response, error) {
	return c.mutate(ctx, http.MethodPut, "/api/nodes/"+url.PathEscape(id), body)
}

// DeleteNode issues DELETE /api/nodes/{id}.
func (c *Client) DeleteNode(ctx context.Context, id string) (Response, error) {
	return c.mutate(ctx, http.MethodDelete, "/api/nodes/"+url.PathEscape(id), nil)
}

// UpdateUser issues PUT /api/users/{id} with body.
func (c *Client) UpdateUser(ctx context.Context, id string, body any) (Response, error) {
	return c.mutate(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), body)
}

// DeleteUser issues DELETE /api/users/{id}.
func (c *Client) DeleteUser(ctx context.Context, id string) (Response, error) {
	return c.mutate(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) mutate(ctx context.Context, method, path string, body any) (Response, error) {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return Response{Code: StatusCode(err)}, err
	}

	resp := Response{Code: http.StatusOK}
	if len(bytes.TrimSpace(raw)) > 0 {
		resp.Body = raw
		var msg struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		}
		if json.Unmarshal(raw, &msg) == nil {
			resp.Message = msg.Message
			if resp.Message == "" {
				resp.Message = msg.Status
			}
		}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, cwerrors.WrapWithCode(err, cwerrors.ErrAPI, "Couldn't encode request body", "")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, cwerrors.WrapWithCode(err, cwerrors.ErrAPI, "Couldn't build request for "+path, "Check server.base_url")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cwerrors.WrapWithCode(err, cwerrors.ErrAPI,
			fmt.Sprintf("%s %s failed", method, path),
			"Check the cluster API is reachable at "+c.baseURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cwerrors.WrapWithCode(err, cwerrors.ErrAPI, "Reading response from "+path+" failed", "")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(raw)}
		return nil, cwerrors.WrapWithCode(se, cwerrors.ErrAPI, se.Error(), suggestionFor(resp.StatusCode))
	}
	return raw, nil
}

func suggestionFor(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "Check server.token (or CW_SERVER_TOKEN)"
	case code == http.StatusNotFound:
		return "The resource doesn't exist, or the server doesn't expose this endpoint"
	case code >= 500:
		return "The cluster API is having trouble; try again shortly"
	default:
		return ""
	}
}

func decodeErr(what string, err error) error {
	return cwerrors.WrapWithCode(err, cwerrors.ErrDecode,
		"Unexpected "+what+" response shape",
		"The server response didn't match the expected format")
}
