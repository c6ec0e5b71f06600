// Package history is the screen listing past assessments.
package history

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/inference"
	"github.com/abhisek/diarisk/internal/router"
	"github.com/abhisek/diarisk/internal/screen"
	"github.com/abhisek/diarisk/internal/store"
	"github.com/abhisek/diarisk/internal/ui/layout"
	"github.com/abhisek/diarisk/internal/ui/theme"
)

// PageSize bounds how many past assessments are loaded.
const PageSize = 50

const topFactors = 3

type loadedMsg struct {
	records []store.PredictionRecord
	err     error
}

// Screen lists past assessments, newest first. Enter opens the details of
// the selected one.
type Screen struct {
	repo   store.PredictionRepo
	schema features.Schema

	records  []store.PredictionRecord
	loaded   bool
	err      error
	selected int
	open     int // index of the expanded record, -1 for none
}

var (
	_ screen.Screen          = (*Screen)(nil)
	_ screen.KeyHintProvider = (*Screen)(nil)
)

func New(repo store.PredictionRepo, schema features.Schema) *Screen {
	return &Screen{repo: repo, schema: schema, open: -1}
}

func (s *Screen) Init() tea.Cmd {
	repo := s.repo
	return func() tea.Msg {
		records, err := repo.List(context.Background(), store.QueryOpts{Limit: PageSize})
		return loadedMsg{records: records, err: err}
	}
}

func (s *Screen) Title() string { return "Histórico" }

func (s *Screen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navegar"},
		{Key: "Enter", Description: "Detalhes"},
		{Key: "Esc", Description: "Voltar"},
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loaded = true
		s.records, s.err = msg.records, msg.err
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			s.selected = max(s.selected-1, 0)
		case "down", "j":
			s.selected = max(min(s.selected+1, len(s.records)-1), 0)
		case "home":
			s.selected = 0
		case "end":
			s.selected = max(len(s.records)-1, 0)
		case "enter", "space":
			if s.open == s.selected {
				s.open = -1
			} else {
				s.open = s.selected
			}
		}
	}
	return s, nil
}

func (s *Screen) View(width, height int) string {
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)
	switch {
	case s.err != nil:
		return center.Foreground(theme.Error).Render("\n\nErro ao ler o histórico: " + s.err.Error())
	case !s.loaded:
		return center.Foreground(theme.TextDim).Render("\n\nCarregando histórico...")
	case len(s.records) == 0:
		return center.Inherit(theme.Hint).Render("\n\nNenhuma avaliação registrada ainda.")
	}

	lines := []string{
		"",
		center.Inherit(theme.Hint).Render(fmt.Sprintf("%d avaliações mais recentes", len(s.records))),
		"",
	}
	for i := s.firstVisible(height - len(lines)); i < len(s.records); i++ {
		lines = append(lines, center.Render(s.row(i)))
		if i == s.open {
			for _, d := range s.details(s.records[i]) {
				lines = append(lines, center.Render(d))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// firstVisible scrolls so the selected row fits in rows lines.
func (s *Screen) firstVisible(rows int) int {
	if rows <= 0 || s.selected < rows {
		return 0
	}
	return s.selected - rows + 1
}

func (s *Screen) row(i int) string {
	rec := s.records[i]
	marker, style := "  ", lipgloss.NewStyle().Foreground(theme.Text)
	if i == s.selected {
		marker, style = "▸ ", theme.Selected
	}
	return style.Render(fmt.Sprintf("%s%s  %3.0f%%  %s",
		marker,
		rec.CreatedAt.Local().Format("02/01/2006 15:04"),
		rec.Probability*100,
		inference.Label(rec.Label).Message()))
}

// details renders the expanded lines for one record: the inputs, the
// largest attributions and the summary.
func (s *Screen) details(rec store.PredictionRecord) []string {
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)

	var inputs []string
	for _, f := range s.schema.Fields {
		if v, ok := rec.Input[string(f.Key)]; ok {
			inputs = append(inputs, f.Label+": "+v)
		}
	}
	out := []string{dim.Render(strings.Join(inputs, " · "))}

	switch {
	case rec.HasAttribution():
		ranked := append([]store.AttributionEntry(nil), rec.Attributions...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return math.Abs(ranked[i].Value) > math.Abs(ranked[j].Value)
		})
		for _, a := range ranked[:min(topFactors, len(ranked))] {
			color := theme.Cool
			if a.Value > 0 {
				color = theme.Warm
			}
			out = append(out, lipgloss.NewStyle().Foreground(color).
				Render(fmt.Sprintf("%s %+.3f", s.schema.DisplayName(a.Feature), a.Value)))
		}
	case rec.AttributionError != "":
		out = append(out, theme.Hint.Render("Contribuições indisponíveis: "+rec.AttributionError))
	}

	if rec.Narrative != "" {
		out = append(out, theme.Label.Render(strings.ReplaceAll(rec.Narrative, "\n", " ")))
	}
	return append(out, "")
}
