package doctor

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rileyhilliard/cw/internal/config"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/mockserver"
	"github.com/stretchr/testify/assert"
)

func startMock(t *testing.T, token string) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := mockserver.New(mockserver.DemoSeed(), mockserver.Options{Token: token, Heartbeat: -1, Log: logger.Noop()})
	go srv.Run(ctx)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		cancel()
	})
	return hs.URL
}

func configFor(url, token string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = url
	cfg.Server.Token = token
	return cfg
}

func TestRESTCheck_Pass(t *testing.T) {
	url := startMock(t, "")

	res := (&RESTCheck{Config: configFor(url, "")}).Run(context.Background())
	assert.Equal(t, StatusPass, res.Status, res.Message)
	assert.Contains(t, res.Message, "2/3 nodes healthy")
}

func TestRESTCheck_BadToken(t *testing.T) {
	url := startMock(t, "s3cret")

	res := (&RESTCheck{Config: configFor(url, "wrong")}).Run(context.Background())
	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "Token rejected")
	assert.Contains(t, res.Suggestion, "--token")
}

func TestRESTCheck_Unreachable(t *testing.T) {
	res := (&RESTCheck{Config: configFor("http://127.0.0.1:1", "")}).Run(context.Background())
	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Suggestion, "cluster is running")
}

func TestWebSocketCheck(t *testing.T) {
	url := startMock(t, "s3cret")

	res := (&WebSocketCheck{Config: configFor(url, "s3cret")}).Run(context.Background())
	assert.Equal(t, StatusPass, res.Status, res.Message)
	assert.Contains(t, res.Message, "ws://")

	res = (&WebSocketCheck{Config: configFor(url, "wrong")}).Run(context.Background())
	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, res.Message, "rejected the token")
}
