package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/abhisek/diarisk/internal/assess"
	"github.com/abhisek/diarisk/internal/explain"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/ui/components"
	"github.com/spf13/cobra"
)

// predictFlags maps each form field to its command-line flag.
var predictFlags = []struct {
	key  features.FieldKey
	flag string
}{
	{features.FieldGender, "gender"},
	{features.FieldAge, "age"},
	{features.FieldHypertension, "hypertension"},
	{features.FieldHeartDisease, "heart-disease"},
	{features.FieldSmokingHistory, "smoking"},
	{features.FieldWeightKg, "weight"},
	{features.FieldHeightCm, "height"},
	{features.FieldHbA1c, "hba1c"},
	{features.FieldGlucose, "glucose"},
}

const chartWidth = 80

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Assess one set of measurements without the form",
	Example: `  diarisk predict --gender Masculino --age 54 --hypertension Sim \
    --smoking "Ex-fumante" --weight 82 --height 171 --hba1c 6,1 --glucose 140`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := predictInput(cmd)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		env, err := prepare(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.service.Assess(cmd.Context(), in)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(assess.ToRecord(out))
		}
		printOutcome(cmd.OutOrStdout(), out, env.service.Schema(), cfg.Explainer.TopN)
		return nil
	},
}

// predictInput builds a FormInput from flags. Choice flags left unset take
// the form's default (first) option.
func predictInput(cmd *cobra.Command) (features.FormInput, error) {
	in := features.V1.Defaults()
	for _, pf := range predictFlags {
		if !cmd.Flags().Changed(pf.flag) {
			continue
		}
		v, _ := cmd.Flags().GetString(pf.flag)
		if f, ok := features.V1.Field(pf.key); ok && f.Kind == features.KindChoice {
			match, ok := matchOption(f.Options, v)
			if !ok {
				return nil, fmt.Errorf("--%s: %q is not one of %s", pf.flag, v, strings.Join(f.Options, ", "))
			}
			v = match
		}
		in[pf.key] = v
	}
	return in, nil
}

// matchOption finds v among options ignoring case.
func matchOption(options []string, v string) (string, bool) {
	for _, o := range options {
		if strings.EqualFold(o, strings.TrimSpace(v)) {
			return o, true
		}
	}
	return "", false
}

func printOutcome(w io.Writer, out *assess.Outcome, schema features.Schema, topN int) {
	fmt.Fprintln(w, out.Verdict())
	fmt.Fprintf(w, "Probabilidade: %.1f%% (limiar %.0f%%)\n",
		out.Result.Probability*100, out.Result.Threshold*100)

	switch {
	case errors.Is(out.AttributionErr, assess.ErrChartDisabled):
	case out.Attribution != nil:
		fmt.Fprintln(w)
		if chart, err := renderChart(out.Attribution, schema, topN); err != nil {
			fmt.Fprintln(w, "Contribuições indisponíveis:", err)
		} else {
			lipgloss.Fprintln(w, chart)
		}
	default:
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Contribuições indisponíveis:", out.AttributionErr)
	}

	switch {
	case out.Summary != nil:
		fmt.Fprintln(w)
		fmt.Fprintln(w, out.Summary.String())
	case out.NarrativeErr != nil:
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Resumo indisponível:", out.NarrativeErr)
	}
}

func renderChart(attr *explain.Attribution, schema features.Schema, topN int) (string, error) {
	scores := attr.Ranked()
	if topN > 0 {
		scores = attr.Top(topN)
	}
	bars := make([]components.Bar, 0, len(scores))
	for _, sc := range scores {
		bars = append(bars, components.Bar{Label: schema.DisplayName(sc.Feature), Value: sc.Value})
	}
	chart := components.NewBarChart(bars)
	body, err := chart.Render(chartWidth)
	if err != nil {
		return "", err
	}
	return body + "\n" + chart.Legend(), nil
}

func addPredictFlags(c *cobra.Command) {
	for _, pf := range predictFlags {
		f, _ := features.V1.Field(pf.key)
		usage := f.Label
		if f.Kind == features.KindChoice {
			usage += " (" + strings.Join(f.Options, " | ") + ")"
		}
		c.Flags().String(pf.flag, "", usage)
	}
	c.Flags().Bool("json", false, "Print the assessment record as JSON")
}

func init() {
	addPredictFlags(predictCmd)
}
