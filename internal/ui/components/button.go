package components

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/diarisk/internal/ui/theme"
)

// Button submits on Enter or Space while Active. While Busy it shows
// BusyLabel and swallows presses, so one submission is in flight at a time.
type Button struct {
	Label     string
	BusyLabel string
	Active    bool
	Busy      bool
	OnPress   func() tea.Cmd
}

func NewButton(label string, active bool, onPress func() tea.Cmd) Button {
	return Button{Label: label, Active: active, OnPress: onPress}
}

func (b Button) pressable() bool {
	return b.Active && !b.Busy && b.OnPress != nil
}

func (b Button) Update(msg tea.Msg) (Button, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !b.pressable() {
		return b, nil
	}
	if s := key.String(); s == "enter" || s == "space" {
		return b, b.OnPress()
	}
	return b, nil
}

func (b Button) View() string {
	text := b.Label
	if b.Busy && b.BusyLabel != "" {
		text = b.BusyLabel
	}
	style := theme.ButtonInactive
	if b.Active && !b.Busy {
		style = theme.ButtonActive
	}
	return style.Render("  ▸ " + text + " ")
}
