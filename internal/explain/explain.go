// Package explain obtains per-feature attribution scores for a prediction
// from an external explainer and shapes them for display.
package explain

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// PositiveClassIndex selects the attribution slot reported for the
// positive class. It assumes the classifier's classes are ordered {0, 1}.
// The explainer reports its class order and a mismatch is logged, but the
// index is intentionally not remapped.
const PositiveClassIndex = 1

// DefaultTolerance bounds |baseline + Σ attributions − model output|,
// measured in the attribution's Space.
const DefaultTolerance = 0.01

// Request is what the explainer needs to attribute one prediction: the
// column names and the scaled vector the classifier was given.
type Request struct {
	Columns []string
	Values  []float64
}

// Explainer computes attributions for the positive class.
type Explainer interface {
	Explain(ctx context.Context, req Request) (*Attribution, error)
}

// Score is one feature's signed contribution.
type Score struct {
	Feature string
	Value   float64
}

// Direction classifies a score by sign.
type Direction int

const (
	Neutral Direction = iota
	IncreasesRisk
	DecreasesRisk
)

// Direction returns whether the feature pushed toward or away from the
// positive class.
func (s Score) Direction() Direction {
	switch {
	case s.Value > 0:
		return IncreasesRisk
	case s.Value < 0:
		return DecreasesRisk
	default:
		return Neutral
	}
}

// Space is the output scale the attributions are expressed in.
type Space string

const (
	// Probability attributions add up to the positive-class probability.
	Probability Space = "probability"
	// LogOdds attributions add up to the booster's raw margin,
	// log(p / (1 - p)). Tree explainers report this by default.
	LogOdds Space = "raw"
)

// Attribution is the explainer's answer for the positive class.
type Attribution struct {
	Baseline float64
	Scores   []Score
	Classes  []int
	Space    Space
}

// ModelOutput converts the positive-class probability into the space the
// attributions live in, the value Sum should reconstruct.
func (a *Attribution) ModelOutput(probability float64) float64 {
	if a.Space == LogOdds {
		return math.Log(probability / (1 - probability))
	}
	return probability
}

// Sum returns baseline + Σ scores, the explainer's reconstruction of the
// model output.
func (a *Attribution) Sum() float64 {
	total := a.Baseline
	for _, s := range a.Scores {
		total += s.Value
	}
	return total
}

// Ranked returns the scores ordered by absolute value, largest first.
// Ties keep their column order.
func (a *Attribution) Ranked() []Score {
	out := append([]Score(nil), a.Scores...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out
}

// Top returns at most n ranked scores.
func (a *Attribution) Top(n int) []Score {
	r := a.Ranked()
	if n < len(r) {
		r = r[:n]
	}
	return r
}

// AdditivityError reports attributions that do not reconstruct the model
// output.
type AdditivityError struct {
	Expected  float64
	Got       float64
	Tolerance float64
}

func (e *AdditivityError) Error() string {
	return fmt.Sprintf("attributions sum to %.6f, model output is %.6f (tolerance %g)",
		e.Got, e.Expected, e.Tolerance)
}

// CheckAdditivity verifies baseline + Σ attributions ≈ rawScore. rawScore
// must be in the attribution's Space; see ModelOutput.
func CheckAdditivity(a *Attribution, rawScore, tolerance float64) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	got := a.Sum()
	if math.IsNaN(got) || math.Abs(got-rawScore) > tolerance {
		return &AdditivityError{Expected: rawScore, Got: got, Tolerance: tolerance}
	}
	return nil
}
