// Package layout frames screen content between a header and a footer bar.
package layout

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/ui/theme"
)

// The form needs its nine rows, the button and the tip to fit.
const (
	MinWidth  = 80
	MinHeight = 24

	CompactHeightThreshold = 34
)

// KeyHint represents a key binding hint shown in the footer.
type KeyHint struct {
	Key         string
	Description string
}

// IsCompactHeight reports whether screens should drop vertical spacing.
func IsCompactHeight(height int) bool {
	return height < CompactHeightThreshold
}

// IsTooSmall reports whether the terminal is below the minimum size.
func IsTooSmall(width, height int) bool {
	return width < MinWidth || height < MinHeight
}

// RenderMinSizeMessage asks the user to enlarge the terminal.
func RenderMinSizeMessage(width, height int) string {
	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Width(width).
		Height(height).
		Render(fmt.Sprintf(
			"Terminal muito pequeno.\n\nO formulário precisa de pelo menos %d x %d.\nAtual: %d x %d",
			MinWidth, MinHeight, width, height,
		))
}

// Header is the bar drawn above the active screen.
type Header struct {
	Title string
	// Status is drawn right-aligned, e.g. while an assessment runs.
	Status string
}

var bar = lipgloss.NewStyle().
	Background(theme.BgCard).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(theme.Border)

// Render draws the brand on the left, the title centered and the status on
// the right.
func (h Header) Render(width int) string {
	brand := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(" Diarisk")
	title := lipgloss.NewStyle().Foreground(theme.Text).Render(h.Title)
	status := lipgloss.NewStyle().Foreground(theme.Accent).Italic(true).Render(h.Status)

	inner := max(width-4, 0)
	bw, tw, sw := lipgloss.Width(brand), lipgloss.Width(title), lipgloss.Width(status)

	leftGap := max((inner-tw)/2-bw, 1)
	rightGap := max(inner-bw-leftGap-tw-sw, 1)

	line := brand + strings.Repeat(" ", leftGap) + title
	if h.Status != "" {
		line += strings.Repeat(" ", rightGap) + status
	}
	return bar.Width(width).Render(line)
}

// RenderFooter draws the key hints in one row.
func RenderFooter(hints []KeyHint, width int) string {
	key := lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
	desc := lipgloss.NewStyle().Foreground(theme.TextDim)

	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = key.Render(h.Key) + " " + desc.Render(h.Description)
	}
	return bar.Width(width).Render(" " + strings.Join(parts, "   "))
}

// ContentHeight is what remains for the screen once header and footer are
// drawn.
func ContentHeight(header, footer string, height int) int {
	return max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
}

// RenderFrame stacks header, content and footer, padding the content to
// fill the terminal.
func RenderFrame(header, content, footer string, width, height int) string {
	body := lipgloss.NewStyle().
		Width(width).
		Height(ContentHeight(header, footer, height)).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}
