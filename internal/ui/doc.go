// Package ui holds the terminal rendering pieces shared by the dashboard and
// the one-shot commands.
//
// Colors are adaptive: each has a light and a dark shade, and ApplyTheme
// decides which one lipgloss uses. DisableColors switches output to plain
// ASCII for pipes and --no-color.
//
//	ui.RenderBar(62, 10)                  // ██████░░░░  62%
//	ui.RenderSparkline(cpuHistory, 20)    // colored by the latest value
//	ui.RenderSimpleTable(cols, rows)      // static table for snapshot output
package ui
