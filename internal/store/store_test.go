package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, table := range []string{"predictions", "llm_requests", "global_sequence"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("query sqlite_master for %s: %v", table, err)
		}
	}
}

func TestAutoMigrationMatchesSchema(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, table := range tables {
		rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table.Name)
		if err != nil {
			t.Fatalf("table_info %s: %v", table.Name, err)
		}
		got := map[string]bool{}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				t.Fatalf("scan: %v", err)
			}
			got[name] = true
		}
		rows.Close()

		if len(got) != len(table.Columns) {
			t.Errorf("%s has %d columns, want %d", table.Name, len(got), len(table.Columns))
		}
		for _, c := range table.Columns {
			if !got[c.Name] {
				t.Errorf("%s is missing column %s", table.Name, c.Name)
			}
		}
	}

	var index string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='predictions_created_at'",
	).Scan(&index)
	if err != nil {
		t.Errorf("created_at index: %v", err)
	}

	ctx := context.Background()
	if err := s.PredictionRepo().Append(ctx, sampleRecord("dup")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.PredictionRepo().Append(ctx, sampleRecord("dup")); err == nil {
		t.Error("duplicate uuid accepted")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.PredictionRepo().Append(ctx, sampleRecord("a")); err != nil {
		t.Fatalf("append: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	n, err := s.PredictionRepo().Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func sampleRecord(id string) *PredictionRecord {
	return &PredictionRecord{
		UUID:          id,
		SchemaVersion: "v1.0.0",
		Input:         map[string]string{"gender": "Masculino", "weight_kg": "70"},
		Columns:       []string{"gender", "bmi"},
		Vector:        []float64{1, 22.86},
		Label:         1,
		Probability:   0.83,
		Threshold:     0.5,
	}
}

func TestPredictionAppendAndGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.PredictionRepo()
	ctx := context.Background()

	rec := sampleRecord("7f1c")
	rec.Baseline = 0.085
	rec.Attributions = []AttributionEntry{{Feature: "gender", Value: 0.1}, {Feature: "bmi", Value: -0.2}}
	rec.Narrative = "Resumo."
	if err := repo.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if rec.ID == 0 || rec.Sequence == 0 {
		t.Fatalf("append did not fill ID/Sequence: %+v", rec)
	}

	got, err := repo.Get(ctx, "7f1c")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Input["gender"] != "Masculino" {
		t.Errorf("input gender = %q", got.Input["gender"])
	}
	if len(got.Vector) != 2 || got.Vector[1] != 22.86 {
		t.Errorf("vector = %v", got.Vector)
	}
	if got.Columns[1] != "bmi" {
		t.Errorf("columns = %v", got.Columns)
	}
	if !got.HasAttribution() || got.Attributions[1].Value != -0.2 || got.Baseline != 0.085 {
		t.Errorf("attribution = %v baseline %v", got.Attributions, got.Baseline)
	}
	if got.Narrative != "Resumo." {
		t.Errorf("narrative = %q", got.Narrative)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestPredictionGetMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.PredictionRepo().Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestPredictionFindByPrefix(t *testing.T) {
	s := openTestStore(t)
	repo := s.PredictionRepo()
	ctx := context.Background()

	for _, id := range []string{"7f3a0000-1", "7f3b0000-2", "7f3a9999-3", "c0ffee00-4"} {
		if err := repo.Append(ctx, sampleRecord(id)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	got, err := repo.FindByPrefix(ctx, "7f3a", 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 || got[0].UUID != "7f3a9999-3" || got[1].UUID != "7f3a0000-1" {
		t.Errorf("prefix 7f3a = %+v, want both 7f3a records newest first", got)
	}

	got, err = repo.FindByPrefix(ctx, "7f3", 1)
	if err != nil || len(got) != 1 {
		t.Errorf("limited find = %d records, %v", len(got), err)
	}

	if _, err := repo.FindByPrefix(ctx, "", 0); err == nil {
		t.Error("empty prefix accepted")
	}
}

func TestPredictionWithoutAttribution(t *testing.T) {
	s := openTestStore(t)
	repo := s.PredictionRepo()
	ctx := context.Background()

	rec := sampleRecord("plain")
	rec.AttributionError = "explainer unavailable"
	if err := repo.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.Get(ctx, "plain")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HasAttribution() {
		t.Errorf("expected no attributions, got %v", got.Attributions)
	}
	if got.AttributionError != "explainer unavailable" {
		t.Errorf("attribution error = %q", got.AttributionError)
	}
}

func TestPredictionListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	repo := s.PredictionRepo()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := repo.Append(ctx, sampleRecord(id)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	all, err := repo.List(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	if all[0].UUID != "d" || all[3].UUID != "a" {
		t.Errorf("order = %s..%s, want d..a", all[0].UUID, all[3].UUID)
	}

	limited, err := repo.List(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 || limited[0].UUID != "d" {
		t.Errorf("limited = %v", limited)
	}

	after, err := repo.List(ctx, QueryOpts{After: all[2].Sequence})
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(after) != 2 {
		t.Errorf("after len = %d, want 2", len(after))
	}
}

func TestPredictionListTimeWindow(t *testing.T) {
	s := openTestStore(t)
	repo := s.PredictionRepo()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		rec := sampleRecord(id)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	got, err := repo.List(ctx, QueryOpts{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].UUID != "mid" {
		t.Errorf("window = %v, want [mid]", got)
	}
}

func TestDuplicateUUIDRejected(t *testing.T) {
	s := openTestStore(t)
	repo := s.PredictionRepo()
	ctx := context.Background()

	if err := repo.Append(ctx, sampleRecord("dup")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, sampleRecord("dup")); err == nil {
		t.Fatal("expected unique constraint error")
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-haiku-4-5", Purpose: "narrative", InputTokens: 100, OutputTokens: 40, LatencyMs: 200, Success: true, RequestBody: "[user]\nhi"},
		{Provider: "anthropic", Model: "claude-haiku-4-5", Purpose: "narrative", InputTokens: 120, OutputTokens: 60, LatencyMs: 400, Success: true},
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "narrative", Success: false, ErrorMessage: "rate limited"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Model != "gpt-4o-mini" || got[0].Success || got[0].ErrorMessage != "rate limited" {
		t.Errorf("newest = %+v", got[0])
	}

	one, err := repo.GetLLMEvent(ctx, got[2].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if one == nil || one.RequestBody != "[user]\nhi" {
		t.Errorf("get = %+v", one)
	}

	missing, err := repo.GetLLMEvent(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("missing = %+v, %v", missing, err)
	}

	usage, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("usage len = %d, want 2", len(usage))
	}
	u := usage[0]
	if u.Model != "claude-haiku-4-5" || u.Calls != 2 || u.InputTokens != 220 || u.OutputTokens != 100 || u.AvgLatencyMs != 300 {
		t.Errorf("usage[0] = %+v", u)
	}
}

func TestSequenceSharedAcrossTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EventRepo().AppendLLMRequest(ctx, LLMRequestEventData{Provider: "mock", Model: "mock", Purpose: "narrative", Success: true}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	rec := sampleRecord("after-llm")
	if err := s.PredictionRepo().Append(ctx, rec); err != nil {
		t.Fatalf("append prediction: %v", err)
	}

	events, err := s.EventRepo().QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if events[0].Sequence >= rec.Sequence {
		t.Errorf("event sequence %d should precede prediction %d", events[0].Sequence, rec.Sequence)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func TestDefaultDBPathEnvOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "nested", "x.db")
	t.Setenv("DIARISK_DB", want)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDefaultDBPathXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DIARISK_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if want := filepath.Join(dir, "diarisk", "diarisk.db"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
