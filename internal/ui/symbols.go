package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess    = "✓"
	SymbolFail       = "✗"
	SymbolWarning    = "⚠"
	SymbolInfo       = "ℹ"
	SymbolConnected  = "●"
	SymbolConnecting = "◐"
	SymbolOffline    = "○"
)

// SeveritySymbol returns the glyph shown next to an alert of the given
// severity.
func SeveritySymbol(severity string) string {
	switch severity {
	case "success":
		return SymbolSuccess
	case "warning":
		return SymbolWarning
	case "error":
		return SymbolFail
	default:
		return SymbolInfo
	}
}
