package result

import (
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/abhisek/diarisk/internal/assess"
	"github.com/abhisek/diarisk/internal/explain"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/inference"
	"github.com/abhisek/diarisk/internal/narrative"
	"github.com/abhisek/diarisk/internal/router"
)

func testOutcome(label inference.Label) *assess.Outcome {
	return &assess.Outcome{
		Result: &inference.Result{
			Label:       label,
			Probability: 0.82,
			Threshold:   inference.DefaultThreshold,
		},
		AttributionErr: assess.ErrChartDisabled,
	}
}

func render(s *Screen) string {
	return ansi.Strip(s.View(120, 40))
}

func TestVerdictOnly(t *testing.T) {
	s := New(testOutcome(inference.LabelPositive), features.V1)
	if s.ChartEnabled() {
		t.Fatal("chart should be disabled without an explainer")
	}

	out := render(s)
	if !strings.Contains(out, "Atenção: Possível diagnóstico de diabetes.") {
		t.Errorf("missing positive verdict:\n%s", out)
	}
	if strings.Contains(out, chartHeading) || strings.Contains(out, Placeholder) {
		t.Errorf("verdict-only view should not mention the chart:\n%s", out)
	}
}

func TestNegativeVerdict(t *testing.T) {
	o := testOutcome(inference.LabelNegative)
	o.Result.Probability = 0.1
	out := render(New(o, features.V1))
	if !strings.Contains(out, "Sem indícios de diabetes.") {
		t.Errorf("missing negative verdict:\n%s", out)
	}
}

func TestChartShowsBarsInMagnitudeOrder(t *testing.T) {
	o := testOutcome(inference.LabelPositive)
	o.AttributionErr = nil
	o.Attribution = &explain.Attribution{
		Baseline: 0.4,
		Scores: []explain.Score{
			{Feature: features.ColAge, Value: 0.05},
			{Feature: features.ColHbA1c, Value: 0.30},
			{Feature: features.ColBMI, Value: -0.12},
		},
	}

	s := New(o, features.V1)
	chart, err := s.Chart(80)
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	chart = ansi.Strip(chart)

	hba1c := strings.Index(chart, "Nível de HbA1c")
	bmi := strings.Index(chart, "IMC")
	age := strings.Index(chart, "Idade")
	if hba1c < 0 || bmi < 0 || age < 0 {
		t.Fatalf("chart missing labels:\n%s", chart)
	}
	if hba1c >= bmi || bmi >= age {
		t.Errorf("bars not ordered by magnitude:\n%s", chart)
	}

	if out := render(s); strings.Contains(out, Placeholder) {
		t.Errorf("unexpected placeholder:\n%s", out)
	}
}

func TestPlaceholderWhenAttributionsFail(t *testing.T) {
	o := testOutcome(inference.LabelNegative)
	o.AttributionErr = &explain.ErrUnavailable{Err: errors.New("connection refused")}

	s := New(o, features.V1)
	if !s.ChartEnabled() {
		t.Fatal("chart variant should stay enabled when the explainer fails")
	}
	out := render(s)
	if !strings.Contains(out, Placeholder) {
		t.Errorf("missing placeholder:\n%s", out)
	}
	if !strings.Contains(out, "Sem indícios de diabetes.") {
		t.Errorf("verdict must still show:\n%s", out)
	}
}

func TestPlaceholderWhenChartCannotBeBuilt(t *testing.T) {
	o := testOutcome(inference.LabelPositive)
	o.AttributionErr = nil
	o.Attribution = &explain.Attribution{}

	out := render(New(o, features.V1))
	if !strings.Contains(out, Placeholder) {
		t.Errorf("empty attribution set should fall back to placeholder:\n%s", out)
	}
}

func TestSummaryBlock(t *testing.T) {
	o := testOutcome(inference.LabelPositive)
	o.Summary = &narrative.Summary{Text: "O HbA1c elevado pesou mais.", Caveat: "Procure um médico."}
	out := render(New(o, features.V1))
	if !strings.Contains(out, "O HbA1c elevado pesou mais.") || !strings.Contains(out, "Procure um médico.") {
		t.Errorf("missing summary:\n%s", out)
	}

	o = testOutcome(inference.LabelPositive)
	o.NarrativeErr = errors.New("provider down")
	out = render(New(o, features.V1))
	if !strings.Contains(out, summaryMissing) {
		t.Errorf("missing summary fallback note:\n%s", out)
	}
}

func TestDismissPops(t *testing.T) {
	s := New(testOutcome(inference.LabelNegative), features.V1)
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("expected PopScreenMsg")
	}
}
