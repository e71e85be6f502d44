package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/cw/internal/alerts"
	"github.com/rileyhilliard/cw/internal/poller"
	"github.com/rileyhilliard/cw/internal/store"
)

// Controller is the part of a session the dashboard drives.
type Controller interface {
	Refresh(ctx context.Context, resources ...poller.Resource) error
	Retry(ctx context.Context) error
}

// clockInterval re-renders relative times ("updated 4s ago").
const clockInterval = time.Second

// Model is the Bubble Tea model for the watch dashboard. It only reads the
// store; every write goes through the controller or the alert queue.
type Model struct {
	ctx    context.Context
	store  *store.Store
	alerts *alerts.Queue
	ctl    Controller

	spinner  spinner.Model
	width    int
	height   int
	showHelp bool
	quitting bool
	busy     bool
	notice   string
	now      func() time.Time
}

// changedMsg signals that the store was mutated.
type changedMsg struct{}

// tickMsg drives the clock.
type tickMsg time.Time

// doneMsg reports the outcome of a refresh or retry.
type doneMsg struct {
	what string
	err  error
}

// NewModel creates a dashboard over st. q may be nil, in which case the
// dismiss key does nothing.
func NewModel(ctx context.Context, st *store.Store, q *alerts.Queue, ctl Controller) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"◐", "◓", "◑", "◒"},
		FPS:    time.Second / 8,
	}
	return Model{
		ctx:     ctx,
		store:   st,
		alerts:  q,
		ctl:     ctl,
		spinner: sp,
		now:     time.Now,
	}
}

// Init starts the change watcher, the clock and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), tickCmd(), m.spinner.Tick)
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case changedMsg:
		return m, m.waitForChange()

	case tickMsg:
		return m, tickCmd()

	case doneMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = msg.what + " failed: " + msg.err.Error()
		} else {
			m.notice = msg.what + " done"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard or the help overlay.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// waitForChange blocks until the store changes or the context ends.
func (m Model) waitForChange() tea.Cmd {
	ch := m.store.Changes()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		return doneMsg{what: "refresh", err: ctl.Refresh(ctx)}
	}
}

func (m Model) retryCmd() tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		return doneMsg{what: "reconnect", err: ctl.Retry(ctx)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
