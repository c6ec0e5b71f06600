package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/ui/theme"
)

// Gauge shows a probability as a filled bar with a tick at the decision
// threshold. The fill is warm at or above the threshold, cool below it.
type Gauge struct {
	Label     string
	Value     float64
	Threshold float64
	Width     int
}

// NewGauge creates a gauge.
func NewGauge(label string, value, threshold float64, width int) Gauge {
	return Gauge{
		Label:     label,
		Value:     value,
		Threshold: threshold,
		Width:     width,
	}
}

// View renders the gauge.
func (g Gauge) View() string {
	var result string

	if g.Label != "" {
		result += lipgloss.NewStyle().Foreground(theme.Text).Render(g.Label) + "  "
	}

	labelWidth := lipgloss.Width(result)
	percentWidth := 7 // "  100%"

	barWidth := g.Width - labelWidth - percentWidth
	if barWidth < 10 {
		barWidth = 10
	}

	filled := int(float64(barWidth)*clamp01(g.Value) + 0.5)
	tick := int(float64(barWidth) * clamp01(g.Threshold))
	if tick >= barWidth {
		tick = barWidth - 1
	}

	fill := theme.Cool
	if g.Value >= g.Threshold {
		fill = theme.Warm
	}
	on := lipgloss.NewStyle().Background(fill)
	off := lipgloss.NewStyle().Background(theme.Border)
	mark := lipgloss.NewStyle().Foreground(theme.Text).Bold(true)

	var bar strings.Builder
	for i := range barWidth {
		cell := " "
		if i == tick {
			cell = "┃"
		}
		style := off
		if i < filled {
			style = on
		}
		if i == tick {
			style = style.Inherit(mark)
		}
		bar.WriteString(style.Render(cell))
	}
	result += bar.String()

	result += lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(fmt.Sprintf("  %3.0f%%", clamp01(g.Value)*100))

	return result
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
