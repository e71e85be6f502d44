package monitor

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/ui"
)

// Base styles for the dashboard. Colors come from the ui palette so the
// light and dark themes apply here too.
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Padding(0, 1)

	SectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorBorder).
			Padding(0, 1)

	SectionTitleStyle = lipgloss.NewStyle().
				Foreground(ui.ColorSecondary).
				Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary)
)

// connectionBadge renders the socket state as a colored dot and label.
// Giving up after the reconnect budget reads as "offline" rather than
// "disconnected" so the retry key is the obvious next step.
func connectionBadge(c model.Connection, spinnerFrame string) string {
	switch c.State {
	case model.StateConnected:
		return ui.SuccessStyle.Render(ui.SymbolConnected + " live")
	case model.StateConnecting:
		frame := spinnerFrame
		if frame == "" {
			frame = ui.SymbolConnecting
		}
		return ui.WarningStyle.Render(frame + " connecting")
	case model.StateError:
		return ui.ErrorStyle.Render(ui.SymbolFail + " error")
	default:
		if c.Attempts > 0 {
			return ui.ErrorStyle.Render(ui.SymbolOffline + " offline")
		}
		return ui.MutedStyle.Render(ui.SymbolOffline + " disconnected")
	}
}

// nodeStatusStyle colors a node status by reachability.
func nodeStatusStyle(s model.NodeStatus) lipgloss.Style {
	switch s {
	case model.NodeHealthy, model.NodeOnline:
		return ui.SuccessStyle
	case model.NodeUnhealthy:
		return ui.WarningStyle
	case model.NodeOffline:
		return ui.ErrorStyle
	default:
		return ui.MutedStyle
	}
}

// modelStatusStyle colors a model's lifecycle status.
func modelStatusStyle(s model.ModelStatus) lipgloss.Style {
	switch s {
	case model.ModelRunning:
		return ui.SuccessStyle
	case model.ModelDownloading:
		return ui.InfoStyle
	case model.ModelError:
		return ui.ErrorStyle
	case model.ModelStopped:
		return ui.WarningStyle
	default:
		return ui.MutedStyle
	}
}

// clusterStatusStyle colors the cluster summary status word.
func clusterStatusStyle(status string) lipgloss.Style {
	switch status {
	case "healthy":
		return ui.SuccessStyle
	case "degraded":
		return ui.WarningStyle
	case "down", "error":
		return ui.ErrorStyle
	default:
		return ui.MutedStyle
	}
}
