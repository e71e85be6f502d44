package transport

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/model"
)

// For any reconnect budget, an unreachable server sees exactly one dial
// plus budget reconnects, after which the client stays disconnected.
func TestProperty_ReconnectBudget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 10
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	srv := newWSServer(t)
	srv.reject.Store(true)

	properties.Property("dials == budget + 1", prop.ForAll(
		func(budget int) bool {
			srv.hits.Store(0)
			cfg := testConfig(srv.wsURL())
			cfg.ReconnectDelay = time.Millisecond
			cfg.MaxReconnectAttempts = budget

			c := New(cfg, nil, logger.Noop(), nil)
			_ = c.Connect(context.Background())
			defer c.Disconnect()

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if c.State() == model.StateDisconnected && c.Attempts() == budget {
					break
				}
				time.Sleep(2 * time.Millisecond)
			}
			time.Sleep(20 * time.Millisecond)

			return c.State() == model.StateDisconnected &&
				c.Attempts() == budget &&
				int(srv.hits.Load()) == budget+1
		},
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
