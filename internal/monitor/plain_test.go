package monitor

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSummary(t *testing.T) {
	st := store.New(5)
	seedStore(st)
	st.SetConnection(model.StateConnected, 0)

	assert.Equal(t, "connected cluster=degraded nodes=1/2 models=2 metrics=2 alerts=0", Summary(st))

	st.SetConnection(model.StateDisconnected, 3)
	assert.True(t, strings.HasPrefix(Summary(st), "disconnected(3) cluster=degraded"))
}

func TestRunPlain(t *testing.T) {
	st := store.New(5)
	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer

	done := make(chan error, 1)
	go func() { done <- RunPlain(ctx, &out, st) }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "disconnected nodes=0/0")
	}, time.Second, 10*time.Millisecond)

	st.ReplaceNodes([]model.Node{{ID: "node-1", Status: model.NodeHealthy}})
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "nodes=1/1")
	}, time.Second, 10*time.Millisecond)

	st.AddAlert(model.Alert{ID: 7, Severity: model.SeverityWarning, Message: "node-2 drained"})
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "alert warning: node-2 drained")
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunPlain did not stop")
	}

	// Unchanged summaries are not repeated.
	assert.Equal(t, 1, strings.Count(out.String(), "nodes=0/0"))
}
