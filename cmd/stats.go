package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/diarisk/internal/store"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show assessment statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		ctx := context.Background()
		records, err := s.PredictionRepo().List(ctx, store.QueryOpts{})
		if err != nil {
			return fmt.Errorf("query assessments: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(w, "No assessments recorded yet.")
			return nil
		}

		st := summarize(records)
		fmt.Fprintf(w, "Assessments:        %d\n", st.Total)
		fmt.Fprintf(w, "Indication (1):     %d (%.1f%%)\n", st.Positive, pct(st.Positive, st.Total))
		fmt.Fprintf(w, "Mean probability:   %.3f\n", st.MeanProbability)
		fmt.Fprintf(w, "With attributions:  %d\n", st.WithAttribution)
		fmt.Fprintf(w, "Attribution errors: %d\n", st.AttributionErrors)
		fmt.Fprintf(w, "With summary:       %d\n", st.WithNarrative)
		fmt.Fprintf(w, "First:              %s\n", st.First.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "Latest:             %s\n", st.Latest.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

type historyStats struct {
	Total             int
	Positive          int
	MeanProbability   float64
	WithAttribution   int
	AttributionErrors int
	WithNarrative     int
	First, Latest     time.Time
}

// summarize aggregates records listed newest first.
func summarize(records []store.PredictionRecord) historyStats {
	st := historyStats{Total: len(records)}
	if len(records) == 0 {
		return st
	}
	var sum float64
	for _, r := range records {
		sum += r.Probability
		if r.Label == 1 {
			st.Positive++
		}
		if r.HasAttribution() {
			st.WithAttribution++
		} else if r.AttributionError != "" {
			st.AttributionErrors++
		}
		if r.Narrative != "" {
			st.WithNarrative++
		}
	}
	st.MeanProbability = sum / float64(len(records))
	st.Latest = records[0].CreatedAt
	st.First = records[len(records)-1].CreatedAt
	return st
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
