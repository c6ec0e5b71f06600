package components

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/ui/theme"
)

// Chart construction errors. Callers fall back to a text placeholder.
var (
	ErrNoBars       = errors.New("chart has no bars")
	ErrNonFinite    = errors.New("chart value is not finite")
	ErrChartTooThin = errors.New("not enough width for chart")
)

// Bar is one signed value in a BarChart.
type Bar struct {
	Label string
	Value float64
}

// BarChart renders signed values as horizontal bars diverging from a
// center axis: positive values extend right in the warm color, negative
// values extend left in the cool color. Bars are ordered by magnitude.
type BarChart struct {
	Bars []Bar
	// Precision is the number of decimals printed after each bar.
	Precision int
}

const minHalfWidth = 4

// NewBarChart creates a chart with three-decimal value labels.
func NewBarChart(bars []Bar) BarChart {
	return BarChart{Bars: bars, Precision: 3}
}

// Sorted returns the bars ordered by |value| descending. Equal magnitudes
// keep their input order.
func (c BarChart) Sorted() []Bar {
	out := append([]Bar(nil), c.Bars...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out
}

// Render lays the chart out within width columns.
func (c BarChart) Render(width int) (string, error) {
	if len(c.Bars) == 0 {
		return "", ErrNoBars
	}

	bars := c.Sorted()
	labelW, valueW := 0, 0
	maxAbs := 0.0
	for _, b := range bars {
		if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) {
			return "", fmt.Errorf("%w: %s", ErrNonFinite, b.Label)
		}
		labelW = max(labelW, lipgloss.Width(b.Label))
		valueW = max(valueW, len(c.formatValue(b.Value)))
		maxAbs = max(maxAbs, math.Abs(b.Value))
	}

	// label ␣ left │ right ␣ value
	half := (width - labelW - valueW - 3) / 2
	if half < minHalfWidth {
		return "", fmt.Errorf("%w: need %d columns, have %d",
			ErrChartTooThin, labelW+valueW+3+2*minHalfWidth, width)
	}

	warm := lipgloss.NewStyle().Foreground(theme.Warm)
	cool := lipgloss.NewStyle().Foreground(theme.Cool)
	axis := lipgloss.NewStyle().Foreground(theme.Border).Render("│")
	labelStyle := lipgloss.NewStyle().Foreground(theme.Text)
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)

	lines := make([]string, 0, len(bars))
	for _, b := range bars {
		n := 0
		if maxAbs > 0 {
			n = int(math.Round(math.Abs(b.Value) / maxAbs * float64(half)))
		}
		if n == 0 && b.Value != 0 {
			n = 1
		}

		left := strings.Repeat(" ", half)
		right := strings.Repeat(" ", half)
		switch {
		case b.Value > 0:
			right = warm.Render(strings.Repeat("█", n)) + strings.Repeat(" ", half-n)
		case b.Value < 0:
			left = strings.Repeat(" ", half-n) + cool.Render(strings.Repeat("█", n))
		}

		pad := strings.Repeat(" ", labelW-lipgloss.Width(b.Label))
		lines = append(lines, pad+labelStyle.Render(b.Label)+" "+left+axis+right+" "+
			dim.Render(c.formatValue(b.Value)))
	}
	return strings.Join(lines, "\n"), nil
}

// Legend describes the color convention.
func (c BarChart) Legend() string {
	warm := lipgloss.NewStyle().Foreground(theme.Warm).Render("█")
	cool := lipgloss.NewStyle().Foreground(theme.Cool).Render("█")
	return warm + " aumenta o risco   " + cool + " reduz o risco"
}

func (c BarChart) formatValue(v float64) string {
	return fmt.Sprintf("%+.*f", c.Precision, v)
}
