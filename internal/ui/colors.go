package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by ApplyTheme. They match the values stored in prefs.
const (
	ThemeAuto  = "auto"
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Semantic colors. Each picks a shade for light and dark backgrounds;
// lipgloss resolves them against the detected or forced background.
var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
)

// Text colors for content hierarchy.
var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#E6EDF3"}
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#8250DF", Dark: "#BC8CFF"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#656D76", Dark: "#7D8590"}
	ColorBorder    = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#30363D"}
)

// Shared styles.
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	InfoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	TitleStyle   = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
)

// ValidTheme reports whether name is a known theme.
func ValidTheme(name string) bool {
	switch strings.ToLower(name) {
	case ThemeAuto, ThemeLight, ThemeDark:
		return true
	}
	return false
}

// ApplyTheme forces the background lipgloss assumes when resolving
// adaptive colors. Auto keeps terminal detection. Unknown names act as auto.
func ApplyTheme(name string) {
	switch strings.ToLower(name) {
	case ThemeLight:
		lipgloss.SetHasDarkBackground(false)
	case ThemeDark:
		lipgloss.SetHasDarkBackground(true)
	default:
		lipgloss.SetHasDarkBackground(termenv.HasDarkBackground())
	}
}

// DisableColors switches all rendering to plain ASCII.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// SeverityStyle maps an alert or status severity name to a style.
func SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "success":
		return SuccessStyle
	case "warning":
		return WarningStyle
	case "error":
		return ErrorStyle
	default:
		return InfoStyle
	}
}
