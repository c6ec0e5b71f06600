// Package theme holds the colors and shared styles of the terminal UI.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Palette. Positive verdicts use Error and negative ones Success, so the
// verdict reads at a glance.
var (
	Primary   = lipgloss.Color("#0EA5E9") // Sky
	Secondary = lipgloss.Color("#10B981") // Emerald
	Accent    = lipgloss.Color("#FBBF24") // Amber
	Success   = lipgloss.Color("#16A34A") // Green
	Error     = lipgloss.Color("#DC2626") // Red
	Text      = lipgloss.Color("#E2E8F0") // Near white
	TextDim   = lipgloss.Color("#8B9BB4") // Muted slate
	BgCard    = lipgloss.Color("#152033") // Panel
	Border    = lipgloss.Color("#2A3A52") // Rule

	// Warm marks a feature pushing toward diabetes, Cool one pushing away.
	Warm = lipgloss.Color("#F97316") // Orange
	Cool = lipgloss.Color("#3B82F6") // Blue
)

// Text styles.
var (
	Hint  = lipgloss.NewStyle().Foreground(TextDim).Italic(true)
	Label = lipgloss.NewStyle().Foreground(Text)

	Selected = lipgloss.NewStyle().Foreground(Primary).Bold(true)

	// Positive and Negative color the verdict line.
	Positive = lipgloss.NewStyle().Foreground(Error).Bold(true)
	Negative = lipgloss.NewStyle().Foreground(Success).Bold(true)
)

// Panels.
var (
	Card = lipgloss.NewStyle().
		Background(BgCard).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)

	Modal = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary).
		Padding(1, 3)

	ErrorModal = Modal.BorderForeground(Error)
)

// Form controls.
var (
	ButtonActive = lipgloss.NewStyle().
			Background(Primary).
			Foreground(BgCard).
			Bold(true).
			Padding(0, 2)

	ButtonInactive = lipgloss.NewStyle().
			Foreground(TextDim).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 2)

	// FieldFocused draws a bar left of the focused row.
	FieldFocused = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(Primary).
			PaddingLeft(1)

	FieldBlurred = lipgloss.NewStyle().PaddingLeft(2)
)
