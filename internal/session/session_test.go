package session

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/cw/internal/actions"
	"github.com/rileyhilliard/cw/internal/config"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/event"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/mockserver"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMock(t *testing.T) (*mockserver.Server, string) {
	t.Helper()
	srv := mockserver.New(mockserver.DemoSeed(), mockserver.Options{Heartbeat: -1, Log: logger.Noop()})
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		hs.Close()
	})
	return srv, hs.URL
}

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = baseURL
	cfg.Transport.ReconnectDelay = 20 * time.Millisecond
	cfg.Polling.Interval = time.Hour
	cfg.Alerts.DefaultDuration = time.Minute
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = ""
	_, err := New(cfg, WithLogger(logger.Noop()))
	require.Error(t, err)
	assert.True(t, cwerrors.IsCode(err, cwerrors.ErrConfig))
}

func TestSession_StartSyncsAndStreams(t *testing.T) {
	mock, url := startMock(t)
	s, err := New(testConfig(url), WithLogger(logger.NewBufferLogger()))
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return s.Store.Connection().State == model.StateConnected && len(s.Store.Nodes()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok := s.Store.RefreshedAt(string(poller.Users))
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cpu := 99.5
	mock.Hub().Emit(event.NodeUpdate{Patch: model.NodePatch{ID: "node-1", CPU: &cpu}})
	assert.Eventually(t, func() bool {
		n, ok := s.Store.Node("node-1")
		return ok && n.CPU == 99.5
	}, 2*time.Second, 10*time.Millisecond)

	err = s.Start(context.Background())
	assert.True(t, cwerrors.IsCode(err, cwerrors.ErrState), "double start")
}

func TestSession_ExecuteRefreshesTarget(t *testing.T) {
	_, url := startMock(t)
	s, err := New(testConfig(url), WithLogger(logger.Noop()))
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	require.NoError(t, s.Refresh(context.Background()))
	m, ok := s.Store.Model("mistral:7b")
	require.True(t, ok)
	require.Equal(t, model.ModelStopped, m.Status)

	res := s.Execute(context.Background(), actions.Command{Kind: actions.StartModel, Target: "mistral:7b"})
	require.NoError(t, res.Err)
	assert.True(t, res.OK)

	m, _ = s.Store.Model("mistral:7b")
	assert.Equal(t, model.ModelRunning, m.Status, "re-fetched without a socket")

	alerts := s.Alerts.List()
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeveritySuccess, alerts[0].Severity)

	res = s.Execute(context.Background(), actions.Command{Kind: actions.DeleteNode, Target: "nope"})
	require.Error(t, res.Err)
	assert.Len(t, s.Store.Nodes(), 3, "failed mutation leaves data alone")
}

func TestSession_GivesUpAndAlerts(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Transport.MaxReconnectAttempts = 2

	s, err := New(cfg, WithLogger(logger.Noop()))
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	require.NoError(t, s.Start(context.Background()), "a failed dial isn't fatal")

	assert.Eventually(t, func() bool {
		c := s.Store.Connection()
		return c.State == model.StateDisconnected && c.Attempts == 2
	}, 3*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		for _, a := range s.Alerts.List() {
			if a.Severity == model.SeverityWarning {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestSession_NoGiveUpAlertWhileReconnectPending(t *testing.T) {
	mock := mockserver.New(mockserver.DemoSeed(), mockserver.Options{Heartbeat: -1, Log: logger.Noop()})
	ctx, cancel := context.WithCancel(context.Background())
	go mock.Run(ctx)

	// The first socket is closed cleanly by the server; later ones are served.
	var sockets atomic.Int32
	upgrader := websocket.Upgrader{}
	inner := mock.Handler()
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" && sockets.Add(1) == 1 {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}
		inner.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		cancel()
		hs.Close()
	})

	cfg := testConfig(hs.URL)
	cfg.Transport.MaxReconnectAttempts = 1
	s, err := New(cfg, WithLogger(logger.Noop()))
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return sockets.Load() == 2 && s.Store.Connection().State == model.StateConnected
	}, 3*time.Second, 10*time.Millisecond)

	for _, a := range s.Alerts.List() {
		assert.NotEqual(t, model.SeverityWarning, a.Severity, "unexpected alert %q", a.Message)
	}
}

func TestSession_ExportImport(t *testing.T) {
	_, url := startMock(t)
	s, err := New(testConfig(url), WithLogger(logger.Noop()))
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	require.NoError(t, s.Refresh(context.Background()))
	s.Alerts.Push(model.SeverityError, "sticky", 0)

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))
	exported := buf.String()

	other, err := New(testConfig(url), WithLogger(logger.Noop()))
	require.NoError(t, err)
	t.Cleanup(other.Stop)
	require.NoError(t, other.Import(bytes.NewBufferString(exported)))

	assert.Equal(t, s.Store.Snapshot(), other.Store.Snapshot())

	id := other.Alerts.Push(model.SeverityInfo, "next", 0)
	assert.Greater(t, id, s.Alerts.List()[0].ID, "ids continue after restored alerts")

	assert.Error(t, other.Import(bytes.NewBufferString("{")))
}

func TestSession_StopIdempotent(t *testing.T) {
	_, url := startMock(t)
	s, err := New(testConfig(url), WithLogger(logger.Noop()))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()

	assert.Equal(t, model.StateDisconnected, s.Store.Connection().State)
	err = s.Start(context.Background())
	assert.True(t, cwerrors.IsCode(err, cwerrors.ErrState))
}
