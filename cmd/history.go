package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/inference"
	"github.com/abhisek/diarisk/internal/store"
	"github.com/abhisek/diarisk/internal/ui/theme"
	"github.com/spf13/cobra"
)

var sectionRule = strings.Repeat("─", 60)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past assessments",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent assessments, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		records, err := s.PredictionRepo().List(context.Background(), store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query assessments: %w", err)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No assessments recorded yet.")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(theme.Border)).
			Headers("UUID", "Time", "Label", "Prob", "Chart", "Summary").
			StyleFunc(func(row, col int) lipgloss.Style {
				s := lipgloss.NewStyle().Padding(0, 1)
				if row == table.HeaderRow {
					return s.Bold(true)
				}
				return s
			})
		for _, r := range records {
			chart := "-"
			switch {
			case r.HasAttribution():
				chart = "yes"
			case r.AttributionError != "":
				chart = "error"
			}
			summary := "-"
			if r.Narrative != "" {
				summary = "yes"
			}
			t.Row(
				r.UUID[:min(8, len(r.UUID))],
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				fmt.Sprintf("%d", r.Label),
				fmt.Sprintf("%.1f%%", r.Probability*100),
				chart,
				summary,
			)
		}
		lipgloss.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

var historyViewCmd = &cobra.Command{
	Use:   "view <uuid-prefix>",
	Short: "Show one assessment in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		rec, err := findRecord(context.Background(), s.PredictionRepo(), args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "UUID:      %s\n", rec.UUID)
		fmt.Fprintf(w, "Time:      %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Schema:    %s\n", rec.SchemaVersion)
		fmt.Fprintf(w, "Verdict:   %s\n", inference.Label(rec.Label).Message())
		fmt.Fprintf(w, "Prob:      %.4f (threshold %.2f)\n", rec.Probability, rec.Threshold)

		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionRule)
		fmt.Fprintln(w, "INPUT")
		fmt.Fprintln(w, sectionRule)
		for _, f := range features.V1.Fields {
			fmt.Fprintf(w, "%-20s %s\n", f.Label, rec.Input[string(f.Key)])
		}

		fmt.Fprintln(w, sectionRule)
		fmt.Fprintln(w, "VECTOR")
		fmt.Fprintln(w, sectionRule)
		for i, c := range rec.Columns {
			if i < len(rec.Vector) {
				fmt.Fprintf(w, "%-20s %.4f\n", c, rec.Vector[i])
			}
		}

		fmt.Fprintln(w, sectionRule)
		fmt.Fprintln(w, "ATTRIBUTIONS")
		fmt.Fprintln(w, sectionRule)
		switch {
		case rec.HasAttribution():
			ranked := append([]store.AttributionEntry(nil), rec.Attributions...)
			sort.SliceStable(ranked, func(i, j int) bool {
				return math.Abs(ranked[i].Value) > math.Abs(ranked[j].Value)
			})
			fmt.Fprintf(w, "%-20s %+.4f\n", "baseline", rec.Baseline)
			for _, a := range ranked {
				fmt.Fprintf(w, "%-20s %+.4f\n", features.V1.DisplayName(a.Feature), a.Value)
			}
		case rec.AttributionError != "":
			fmt.Fprintln(w, "(failed)", rec.AttributionError)
		default:
			fmt.Fprintln(w, "(not requested)")
		}

		if rec.Narrative != "" {
			fmt.Fprintln(w, sectionRule)
			fmt.Fprintln(w, "SUMMARY")
			fmt.Fprintln(w, sectionRule)
			fmt.Fprintln(w, rec.Narrative)
		}
		return nil
	},
}

// findRecord resolves a full UUID or a unique prefix of one.
func findRecord(ctx context.Context, repo store.PredictionRepo, ref string) (*store.PredictionRecord, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("assessment id is empty")
	}

	rec, err := repo.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if rec != nil {
		return rec, nil
	}

	// Two rows are enough to tell unique from ambiguous.
	matches, err := repo.FindByPrefix(ctx, ref, 2)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("assessment %q not found", ref)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("assessment prefix %q is ambiguous", ref)
	}
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 20, "Number of assessments to show")
	historyViewCmd.Flags().Bool("json", false, "Print the record as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyViewCmd)
}
