package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/diarisk/internal/artifact"
	"github.com/abhisek/diarisk/internal/config"
	"github.com/abhisek/diarisk/internal/explain"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/store"
	"github.com/spf13/cobra"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadWithViper(config.New())
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	dir := t.TempDir()
	cfg.Artifacts.Dir = filepath.Join(dir, "artifacts")
	cfg.Store.Path = filepath.Join(dir, "history.db")
	cfg.Explainer.URL = ""
	cfg.Narrative.Enabled = false
	return cfg
}

func TestPrepareAbortsWithoutArtifacts(t *testing.T) {
	cfg := testConfig(t)
	var warn bytes.Buffer

	env, err := prepare(context.Background(), cfg, &warn)
	if err == nil {
		env.Close()
		t.Fatal("expected error for missing artifacts")
	}
	if !errors.Is(err, artifact.ErrMissing) {
		t.Errorf("err = %v, want ErrMissing", err)
	}
	if !strings.Contains(err.Error(), cfg.Artifacts.Dir) {
		t.Errorf("err = %q, want it to name the directory", err)
	}
}

func TestPredictInputFromFlags(t *testing.T) {
	c := &cobra.Command{Use: "predict"}
	addPredictFlags(c)
	if err := c.Flags().Parse([]string{"--gender", "masculino", "--age", "54", "--hba1c", "6,1"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	in, err := predictInput(c)
	if err != nil {
		t.Fatalf("predictInput: %v", err)
	}
	if in[features.FieldGender] != "Masculino" {
		t.Errorf("gender = %q, want canonical option", in[features.FieldGender])
	}
	if in[features.FieldAge] != "54" || in[features.FieldHbA1c] != "6,1" {
		t.Errorf("numeric fields = %q, %q", in[features.FieldAge], in[features.FieldHbA1c])
	}
	if in[features.FieldHypertension] != "Não" {
		t.Errorf("unset choice = %q, want first option", in[features.FieldHypertension])
	}
}

func TestPredictInputRejectsUnknownOption(t *testing.T) {
	c := &cobra.Command{Use: "predict"}
	addPredictFlags(c)
	if err := c.Flags().Parse([]string{"--smoking", "sometimes"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := predictInput(c); err == nil || !strings.Contains(err.Error(), "--smoking") {
		t.Errorf("err = %v, want --smoking rejection", err)
	}
}

func TestMatchOption(t *testing.T) {
	opts := []string{"Não", "Sim"}
	if got, ok := matchOption(opts, " sim "); !ok || got != "Sim" {
		t.Errorf("matchOption(sim) = %q, %v", got, ok)
	}
	if _, ok := matchOption(opts, "talvez"); ok {
		t.Error("matchOption accepted an unknown value")
	}
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	records := []store.PredictionRecord{
		{Label: 1, Probability: 0.9, CreatedAt: now, Narrative: "x",
			Attributions: []store.AttributionEntry{{Feature: "age", Value: 0.1}}},
		{Label: 0, Probability: 0.2, CreatedAt: now.Add(-time.Hour), AttributionError: "timeout"},
		{Label: 0, Probability: 0.1, CreatedAt: now.Add(-2 * time.Hour)},
	}

	st := summarize(records)
	if st.Total != 3 || st.Positive != 1 {
		t.Errorf("total/positive = %d/%d", st.Total, st.Positive)
	}
	if st.WithAttribution != 1 || st.AttributionErrors != 1 || st.WithNarrative != 1 {
		t.Errorf("stats = %+v", st)
	}
	if d := st.MeanProbability - 0.4; d > 1e-9 || d < -1e-9 {
		t.Errorf("mean = %v, want 0.4", st.MeanProbability)
	}
	if !st.Latest.Equal(now) || !st.First.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("range = %v .. %v", st.First, st.Latest)
	}

	if empty := summarize(nil); empty.Total != 0 || empty.MeanProbability != 0 {
		t.Errorf("empty = %+v", empty)
	}
	if pct(1, 0) != 0 || pct(1, 4) != 25 {
		t.Error("pct")
	}
}

func TestFindRecordByPrefix(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	repo := s.PredictionRepo()
	ctx := context.Background()

	for _, id := range []string{"abc12345-0000", "abc99999-0000", "def00000-0000"} {
		if err := repo.Append(ctx, &store.PredictionRecord{UUID: id, SchemaVersion: "1.0.0"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rec, err := findRecord(ctx, repo, "def00000-0000")
	if err != nil || rec.UUID != "def00000-0000" {
		t.Errorf("full uuid = %+v, %v", rec, err)
	}
	rec, err = findRecord(ctx, repo, "abc1")
	if err != nil || rec.UUID != "abc12345-0000" {
		t.Errorf("prefix = %+v, %v", rec, err)
	}
	if _, err := findRecord(ctx, repo, "abc"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("ambiguous prefix err = %v", err)
	}
	if _, err := findRecord(ctx, repo, "zzz"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing err = %v", err)
	}
	for _, ref := range []string{"", "   "} {
		if _, err := findRecord(ctx, repo, ref); err == nil || !strings.Contains(err.Error(), "empty") {
			t.Errorf("findRecord(%q) err = %v, want empty id error", ref, err)
		}
	}
}

func TestExplainBudget(t *testing.T) {
	retry := explain.RetryConfig{MaxAttempts: 3, MaxWait: time.Second}
	if got := explainBudget(2*time.Second, retry); got != 8*time.Second {
		t.Errorf("budget = %v, want 8s", got)
	}
	if got := explainBudget(time.Second, explain.RetryConfig{}); got != time.Second {
		t.Errorf("no-retry budget = %v, want 1s", got)
	}
}

func TestFormatCostAndTruncate(t *testing.T) {
	if got := formatCost(0.0012); got != "$0.0012" {
		t.Errorf("formatCost small = %q", got)
	}
	if got := formatCost(1.5); got != "$1.50" {
		t.Errorf("formatCost = %q", got)
	}
	if got := truncate("claude-haiku-4-5", 6); got != "claude" {
		t.Errorf("truncate = %q", got)
	}
}

func TestFilterEvents(t *testing.T) {
	events := []store.LLMRequestEvent{
		{ID: 4, LLMRequestEventData: store.LLMRequestEventData{Purpose: "narrative"}},
		{ID: 3, LLMRequestEventData: store.LLMRequestEventData{Purpose: "other"}},
		{ID: 2, LLMRequestEventData: store.LLMRequestEventData{Purpose: "narrative"}},
		{ID: 1, LLMRequestEventData: store.LLMRequestEventData{Purpose: "narrative"}},
	}

	got := filterEvents(events, "narrative", 2)
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 2 {
		t.Errorf("filtered = %+v", got)
	}
	if all := filterEvents(events, "", 0); len(all) != 4 {
		t.Errorf("unfiltered len = %d, want 4", len(all))
	}
}

func TestPrintUsageMarksUnpricedModels(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf, []store.LLMModelUsage{
		{Model: "claude-haiku-4-5", Calls: 2, InputTokens: 1000, OutputTokens: 200},
		{Model: "local-llama", Calls: 1, InputTokens: 10, OutputTokens: 5},
	})

	out := buf.String()
	if !strings.Contains(out, "TOTAL (partial)") {
		t.Errorf("missing partial total:\n%s", out)
	}
	if !strings.Contains(out, "Pricing unavailable for: local-llama") {
		t.Errorf("missing unpriced note:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	saved := version
	t.Cleanup(func() { version = saved })

	version = "v1.2.3"
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })
	versionCmd.Run(versionCmd, nil)

	want := "diarisk v1.2.3 (feature schema " + features.V1.Version + ")\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	version = ""
	if buildVersion() == "" {
		t.Error("buildVersion fell back to an empty string")
	}
}
