package monitor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/cw/internal/alerts"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/store"
	"github.com/rileyhilliard/cw/internal/util"
)

// Run shows the dashboard full screen until the user quits or ctx ends.
func Run(ctx context.Context, st *store.Store, q *alerts.Queue, ctl Controller) error {
	p := tea.NewProgram(NewModel(ctx, st, q, ctl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Summary renders the store as one line, e.g.
//
//	connected cluster=healthy nodes=2/3 models=3 metrics=2 alerts=1
func Summary(st *store.Store) string {
	f := capture(st, time.Now())
	return summaryLine(f)
}

func summaryLine(f frame) string {
	var b strings.Builder
	b.WriteString(string(f.conn.State))
	if f.conn.State != model.StateConnected && f.conn.Attempts > 0 {
		fmt.Fprintf(&b, "(%d)", f.conn.Attempts)
	}
	if f.hasClust {
		fmt.Fprintf(&b, " cluster=%s", util.OrDash(f.cluster.Status))
	}

	up := 0
	for _, n := range f.nodes {
		if n.Status.IsUp() {
			up++
		}
	}
	fmt.Fprintf(&b, " nodes=%d/%d models=%d metrics=%d alerts=%d",
		up, len(f.nodes), len(f.models), len(f.metrics), len(f.alerts))
	return b.String()
}

// RunPlain is the non-interactive watch: it prints a timestamped summary
// line whenever the store changes and one line per new alert. It returns
// when ctx ends.
func RunPlain(ctx context.Context, w io.Writer, st *store.Store) error {
	var lastLine string
	var lastAlert uint64

	emit := func() error {
		now := time.Now()
		f := capture(st, now)
		for _, a := range f.alerts {
			if a.ID <= lastAlert {
				continue
			}
			lastAlert = a.ID
			if _, err := fmt.Fprintf(w, "%s alert %s: %s\n", now.Format(time.TimeOnly), a.Severity, a.Message); err != nil {
				return err
			}
		}
		line := summaryLine(f)
		if line == lastLine {
			return nil
		}
		lastLine = line
		_, err := fmt.Fprintf(w, "%s %s\n", now.Format(time.TimeOnly), line)
		return err
	}

	if err := emit(); err != nil {
		return err
	}
	changes := st.Changes()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if err := emit(); err != nil {
				return err
			}
		}
	}
}
