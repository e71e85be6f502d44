package monitor

import tea "github.com/charmbracelet/bubbletea"

// Key bindings as constants for consistency.
const (
	KeyQuit       = "q"
	KeyQuitAlt    = "ctrl+c"
	KeyRefresh    = "r"
	KeyRetry      = "R"
	KeyDismiss    = "d"
	KeyCollapse   = "esc"
	KeyToggleHelp = "?"
)

// HandleKeyMsg processes keyboard input and returns the command to run.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}

	if m.showHelp && key == KeyCollapse {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case KeyRefresh:
		if m.busy {
			return true, nil
		}
		m.busy = true
		m.notice = "refreshing..."
		return true, m.refreshCmd()

	case KeyRetry:
		if m.busy {
			return true, nil
		}
		m.busy = true
		m.notice = "reconnecting..."
		return true, m.retryCmd()

	case KeyDismiss:
		if m.alerts != nil {
			m.alerts.DismissNewest()
		}
		return true, nil
	}

	return false, nil
}
