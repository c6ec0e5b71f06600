// Package result is the modal that presents one assessment outcome.
package result

import (
	"errors"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/assess"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/inference"
	"github.com/abhisek/diarisk/internal/router"
	"github.com/abhisek/diarisk/internal/screen"
	"github.com/abhisek/diarisk/internal/ui/components"
	"github.com/abhisek/diarisk/internal/ui/layout"
	"github.com/abhisek/diarisk/internal/ui/theme"
)

// Placeholder replaces the chart when attributions or chart layout fail.
const Placeholder = "Não foi possível gerar o gráfico de contribuições."

const (
	chartHeading     = "Contribuição de cada fator"
	summaryHeading   = "Resumo"
	summaryMissing   = "Resumo indisponível no momento."
	maxModalWidth    = 96
	modalChromeWidth = 8 // border + padding
)

// Screen shows the verdict and, when attributions were requested, the
// attribution chart. It never fails: missing parts degrade to text.
type Screen struct {
	outcome *assess.Outcome
	schema  features.Schema
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)

// New creates a result screen for outcome.
func New(outcome *assess.Outcome, schema features.Schema) *Screen {
	return &Screen{outcome: outcome, schema: schema}
}

func (s *Screen) Init() tea.Cmd {
	return nil
}

func (s *Screen) Title() string {
	return "Resultado"
}

func (s *Screen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "OK"},
		{Key: "Esc", Description: "Voltar"},
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc", "q", "space":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return s, nil
}

// ChartEnabled reports whether this outcome belongs to the chart variant.
func (s *Screen) ChartEnabled() bool {
	return !errors.Is(s.outcome.AttributionErr, assess.ErrChartDisabled)
}

// Chart renders the attribution chart within width, or returns the reason
// it cannot be drawn.
func (s *Screen) Chart(width int) (string, error) {
	if s.outcome.Attribution == nil {
		if s.outcome.AttributionErr != nil {
			return "", s.outcome.AttributionErr
		}
		return "", errors.New("no attributions")
	}

	bars := make([]components.Bar, 0, len(s.outcome.Attribution.Scores))
	for _, sc := range s.outcome.Attribution.Scores {
		bars = append(bars, components.Bar{
			Label: s.schema.DisplayName(sc.Feature),
			Value: sc.Value,
		})
	}
	chart := components.NewBarChart(bars)
	out, err := chart.Render(width)
	if err != nil {
		return "", err
	}
	return out + "\n\n" + chart.Legend(), nil
}

func (s *Screen) View(width, height int) string {
	inner := min(width-modalChromeWidth-2, maxModalWidth)
	if inner < 30 {
		inner = 30
	}

	res := s.outcome.Result
	verdictStyle := theme.Negative
	if res.Label == inference.LabelPositive {
		verdictStyle = theme.Positive
	}

	parts := []string{
		verdictStyle.Render(s.outcome.Verdict()),
		"",
		components.NewGauge("Probabilidade", res.Probability, res.Threshold, min(inner, 60)).View(),
		theme.Hint.Render(fmt.Sprintf("Limiar de decisão: %.0f%%", res.Threshold*100)),
	}

	if s.ChartEnabled() {
		parts = append(parts, "", lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(chartHeading))
		chart, err := s.Chart(inner)
		if err != nil {
			parts = append(parts,
				lipgloss.NewStyle().Foreground(theme.TextDim).Render(Placeholder),
				theme.Hint.Width(inner).Render(err.Error()))
		} else {
			parts = append(parts, chart)
		}
	}

	if summary := s.summary(inner); summary != "" {
		parts = append(parts, "", summary)
	}

	box := theme.Modal.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (s *Screen) summary(width int) string {
	switch {
	case s.outcome.Summary != nil:
		heading := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render(summaryHeading)
		body := lipgloss.NewStyle().Foreground(theme.Text).Width(width).
			Render(strings.TrimSpace(s.outcome.Summary.Text))
		if c := strings.TrimSpace(s.outcome.Summary.Caveat); c != "" {
			body += "\n" + theme.Hint.Width(width).Render(c)
		}
		return heading + "\n" + body
	case s.outcome.NarrativeErr != nil:
		return theme.Hint.Render(summaryMissing)
	}
	return ""
}
