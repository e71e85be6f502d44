package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestValidTheme(t *testing.T) {
	for _, name := range []string{"auto", "light", "DARK"} {
		assert.True(t, ValidTheme(name), name)
	}
	assert.False(t, ValidTheme("solarized"))
}

func TestApplyTheme(t *testing.T) {
	defer lipgloss.SetHasDarkBackground(lipgloss.HasDarkBackground())

	ApplyTheme(ThemeLight)
	assert.False(t, lipgloss.HasDarkBackground())

	ApplyTheme(ThemeDark)
	assert.True(t, lipgloss.HasDarkBackground())
}

func TestSeverityStyleAndSymbol(t *testing.T) {
	assert.Equal(t, SymbolSuccess, SeveritySymbol("success"))
	assert.Equal(t, SymbolWarning, SeveritySymbol("warning"))
	assert.Equal(t, SymbolFail, SeveritySymbol("error"))
	assert.Equal(t, SymbolInfo, SeveritySymbol("anything"))

	assert.Equal(t, "boom", SeverityStyle("error").Render("boom"))
}
