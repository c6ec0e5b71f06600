package inference

import (
	"context"
	"fmt"
	"math"

	"github.com/abhisek/diarisk/internal/features"
)

// DefaultThreshold is the probability at or above which the positive label
// is returned, matching predict() on a scikit-learn binary classifier.
const DefaultThreshold = 0.5

// Label is the binary model verdict.
type Label int

const (
	LabelNegative Label = 0
	LabelPositive Label = 1
)

// Message returns the verdict text shown to the user.
func (l Label) Message() string {
	if l == LabelPositive {
		return "Atenção: Possível diagnóstico de diabetes."
	}
	return "Sem indícios de diabetes."
}

// Result is the outcome of one inference.
type Result struct {
	Label       Label
	Probability float64
	Threshold   float64
	Scaled      []float64
}

// Pipeline applies the scaler then the classifier. It performs no retries.
type Pipeline struct {
	scaler     *Scaler
	classifier Classifier
	threshold  float64
}

// NewPipeline creates a pipeline. A threshold outside (0, 1) falls back to
// DefaultThreshold.
func NewPipeline(scaler *Scaler, classifier Classifier, threshold float64) *Pipeline {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Pipeline{scaler: scaler, classifier: classifier, threshold: threshold}
}

// Scaler returns the pipeline's fitted scaler.
func (p *Pipeline) Scaler() *Scaler {
	return p.scaler
}

// Predict scales v and returns the classifier's verdict.
func (p *Pipeline) Predict(ctx context.Context, v features.Vector) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, err := p.scaler.Transform(v)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}

	probs, err := p.classifier.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(probs) != 1 {
		return nil, fmt.Errorf("classify: expected 1 prediction, got %d", len(probs))
	}
	prob := probs[0]
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return nil, fmt.Errorf("classify: probability %v out of range", prob)
	}

	label := LabelNegative
	if prob >= p.threshold {
		label = LabelPositive
	}

	return &Result{
		Label:       label,
		Probability: prob,
		Threshold:   p.threshold,
		Scaled:      x.RawRowView(0),
	}, nil
}
