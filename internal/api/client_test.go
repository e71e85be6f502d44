package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithToken("secret"))
}

func TestNodes_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"id":"n1","cpu":12.5},{"id":"n2"}]`},
		{"named wrapper", `{"nodes":[{"id":"n1","cpu":12.5},{"id":"n2"}]}`},
		{"data wrapper", `{"data":[{"id":"n1","cpu":12.5},{"id":"n2"}]}`},
		{"nested wrapper", `{"data":{"nodes":[{"id":"n1","cpu":12.5},{"id":"n2"}]}}`},
		{"single unknown key", `{"cluster_nodes":[{"id":"n1","cpu":12.5},{"id":"n2"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/nodes", r.URL.Path)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, tt.body)
			})

			nodes, err := c.Nodes(context.Background())
			require.NoError(t, err)
			require.Len(t, nodes, 2)
			assert.Equal(t, "n1", nodes[0].ID)
			assert.Equal(t, 12.5, nodes[0].CPU)
		})
	}
}

func TestNodes_NullIsEmpty(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"nodes":null}`)
	})
	nodes, err := c.Nodes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestModelsAndUsers(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/models":
			_, _ = io.WriteString(w, `{"models":[{"name":"llama2:7b","status":"running","ready":true}]}`)
		case "/api/users":
			_, _ = io.WriteString(w, `[{"id":"u1","username":"ada","active":true}]`)
		default:
			http.NotFound(w, r)
		}
	})

	models, err := c.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, model.ModelRunning, models[0].Status)

	users, err := c.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ada", users[0].Username)
}

func TestClusterStatus(t *testing.T) {
	for _, body := range []string{
		`{"status":"healthy","leader":"n1","node_count":3,"healthy_nodes":2}`,
		`{"cluster":{"status":"healthy","leader":"n1","node_count":3,"healthy_nodes":2}}`,
		`{"data":{"status":"healthy","leader":"n1","node_count":3,"healthy_nodes":2}}`,
	} {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/cluster/status", r.URL.Path)
			_, _ = io.WriteString(w, body)
		})
		cs, err := c.ClusterStatus(context.Background())
		require.NoError(t, err, body)
		assert.Equal(t, "healthy", cs.Status)
		assert.Equal(t, 3, cs.NodeCount)
		assert.Equal(t, 2, cs.HealthyNodes)
	}
}

func TestMetrics_Series(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"metrics":{
			"cpu":[{"timestamp":"2026-01-01T00:00:02Z","value":2},{"timestamp":"2026-01-01T00:00:01Z","value":1}],
			"memory":[]
		}}`)
	})

	res, err := c.Metrics(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Series["cpu"], 2)
	assert.Equal(t, 1.0, res.Series["cpu"][0].Value, "points are ordered oldest first")
	assert.Empty(t, res.Series["memory"])
	assert.Nil(t, res.Values)
}

func TestMetrics_CurrentValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"flat", `{"timestamp":"2026-01-01T00:00:00Z","cpu":40,"memory":60,"host":"n1"}`},
		{"values map", `{"timestamp":"2026-01-01T00:00:00Z","values":{"cpu":40,"memory":60}}`},
		{"wrapped", `{"data":{"timestamp":"2026-01-01T00:00:00Z","cpu":40,"memory":60}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			res, err := c.Metrics(context.Background())
			require.NoError(t, err)
			assert.Equal(t, map[string]float64{"cpu": 40, "memory": 60}, res.Values)
			assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), res.Timestamp.UTC())
			assert.False(t, res.Empty())
		})
	}
}

func TestErrors_StatusAndDecode(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/nodes":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, "bad token")
		case "/api/models":
			_, _ = io.WriteString(w, `"not a list"`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	_, err := c.Nodes(context.Background())
	require.Error(t, err)
	assert.True(t, cwerrors.IsCode(err, cwerrors.ErrAPI))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Contains(t, err.Error(), "bad token")

	_, err = c.Models(context.Background())
	require.Error(t, err)
	assert.True(t, cwerrors.IsCode(err, cwerrors.ErrDecode))
	assert.Zero(t, StatusCode(err))

	_, err = c.Users(context.Background())
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(srv.URL, WithTimeout(time.Second))
	_, err := c.ClusterStatus(context.Background())
	require.Error(t, err)
	assert.True(t, cwerrors.IsCode(err, cwerrors.ErrAPI))
}

func TestContextCancelled(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Nodes(ctx)
	assert.Error(t, err)
}

func TestMutations(t *testing.T) {
	type call struct {
		method, path string
		body         map[string]any
	}
	var calls []call

	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		calls = append(calls, call{r.Method, r.URL.EscapedPath(), body})
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})

	ctx := context.Background()
	resp, err := c.PullModel(ctx, "llama2:7b")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message)
	assert.Equal(t, http.StatusOK, resp.Code)

	_, err = c.UpdateModel(ctx, "llama2:7b", map[string]string{"action": "start"})
	require.NoError(t, err)
	_, err = c.DeleteModel(ctx, "llama2:7b")
	require.NoError(t, err)
	_, err = c.UpdateNode(ctx, "node 1", map[string]string{"action": "drain"})
	require.NoError(t, err)
	_, err = c.DeleteNode(ctx, "n2")
	require.NoError(t, err)
	_, err = c.UpdateUser(ctx, "u1", map[string]bool{"active": false})
	require.NoError(t, err)
	_, err = c.DeleteUser(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, calls, 7)
	assert.Equal(t, call{http.MethodPost, "/api/models/llama2:7b", nil}, calls[0])
	assert.Equal(t, "start", calls[1].body["action"])
	assert.Equal(t, http.MethodPut, calls[1].method)
	assert.Equal(t, http.MethodDelete, calls[2].method)
	assert.Equal(t, "/api/nodes/node%201", calls[3].path)
	assert.Equal(t, "drain", calls[3].body["action"])
	assert.Equal(t, "/api/nodes/n2", calls[4].path)
	assert.Equal(t, false, calls[5].body["active"])
	assert.Equal(t, call{http.MethodDelete, "/api/users/u1", nil}, calls[6])
}

func TestMutation_Failure(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, "model busy")
	})

	resp, err := c.DeleteModel(context.Background(), "m")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, cwerrors.Short(err), "model busy")
}

func TestNewClient_TrimsSlash(t *testing.T) {
	assert.Equal(t, "http://x:8080", NewClient("http://x:8080/").BaseURL())
}

func TestMetrics_EmptyObject(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"metrics":{}}`)
	})
	res, err := c.Metrics(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Empty())
}
