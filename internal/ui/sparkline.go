package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters, lowest to highest.
const sparklineBlocks = "▁▂▃▄▅▆▇█"

var sparklineBlockRunes = []rune(sparklineBlocks)

// Sparkline renders the most recent width values of data as block
// characters scaled between the window's min and max. It returns an empty
// string for empty data or a non-positive width.
func Sparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	var sb strings.Builder
	sb.Grow(len(data) * 3)

	levels := len(sparklineBlockRunes)
	span := maxVal - minVal
	for _, v := range data {
		level := levels / 2
		if span != 0 {
			level = int((v - minVal) / span * float64(levels-1))
			if level < 0 {
				level = 0
			} else if level >= levels {
				level = levels - 1
			}
		}
		sb.WriteRune(sparklineBlockRunes[level])
	}
	return sb.String()
}

// RenderSparkline renders a percentage series, colored by the last value:
// green under 60, amber under 80, red above.
func RenderSparkline(data []float64, width int) string {
	line := Sparkline(data, width)
	if line == "" {
		return ""
	}
	return lipgloss.NewStyle().Foreground(ThresholdColor(data[len(data)-1])).Render(line)
}

// RenderSparklineNeutral renders a series with no natural ceiling, such as
// request rates, in the info color.
func RenderSparklineNeutral(data []float64, width int) string {
	line := Sparkline(data, width)
	if line == "" {
		return ""
	}
	return InfoStyle.Render(line)
}

// ThresholdColor picks a color for a 0-100 utilisation value.
func ThresholdColor(percent float64) lipgloss.AdaptiveColor {
	switch {
	case percent >= 80:
		return ColorError
	case percent >= 60:
		return ColorWarning
	default:
		return ColorSuccess
	}
}
