package form

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/ui/layout"
	"github.com/abhisek/diarisk/internal/ui/theme"
)

func (s *Screen) View(width, height int) string {
	labelW := 0
	for _, r := range s.rows {
		labelW = max(labelW, lipgloss.Width(r.field.Label))
	}

	gap := "\n"
	card := theme.Card
	if layout.IsCompactHeight(height) {
		gap = ""
		card = card.Padding(0, 2)
	}

	var b strings.Builder
	for i := range s.rows {
		r := &s.rows[i]
		focused := i == s.focus

		label := theme.Label
		if focused {
			label = theme.Selected
		}
		labelCell := label.Width(labelW + 2).Render(r.field.Label)

		var widget string
		if r.field.Kind == features.KindChoice {
			widget = r.choice.View()
		} else {
			widget = r.input.View()
		}

		line := labelCell + widget
		if focused {
			line = theme.FieldFocused.Render(line)
		} else {
			line = theme.FieldBlurred.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
		b.WriteString(gap)
	}

	parts := []string{
		card.Render(strings.TrimRight(b.String(), "\n")),
		"",
		s.button.View(),
		"",
		theme.Hint.Render(Tip),
	}
	if s.lastErr != nil && !s.pending {
		note := "A última verificação falhou."
		if features.IsValidation(s.lastErr) {
			note = "Há campos a corrigir."
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.Error).Render(note))
	}

	content := lipgloss.JoinVertical(lipgloss.Center, parts...)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
