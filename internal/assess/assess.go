// Package assess runs one risk assessment end to end: feature assembly,
// prediction, optional attributions and summary, and history recording.
package assess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/diarisk/internal/explain"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/inference"
	"github.com/abhisek/diarisk/internal/narrative"
	"github.com/abhisek/diarisk/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrChartDisabled marks an outcome whose attributions were never requested.
var ErrChartDisabled = errors.New("attribution chart disabled")

// Outcome is everything one submission produced. Only Result is guaranteed;
// the optional parts carry their own error instead of failing the whole.
type Outcome struct {
	ID     uuid.UUID
	At     time.Time
	Input  features.FormInput
	Vector features.Vector
	Result *inference.Result

	Attribution    *explain.Attribution
	AttributionErr error

	Summary      *narrative.Summary
	NarrativeErr error
}

// Verdict returns the user-facing verdict line.
func (o *Outcome) Verdict() string {
	return o.Result.Label.Message()
}

// Options wires the optional collaborators. Nil fields turn features off.
type Options struct {
	Explainer      explain.Explainer
	ExplainTimeout time.Duration
	Tolerance      float64

	Narrator *narrative.Narrator

	History store.PredictionRepo
	Logger  *zap.Logger
}

// Service performs assessments. It is safe for sequential use from the UI
// loop and from the headless CLI.
type Service struct {
	schema   features.Schema
	pipeline *inference.Pipeline
	opts     Options
	now      func() time.Time
}

// NewService creates a Service for schema and pipeline.
func NewService(schema features.Schema, pipeline *inference.Pipeline, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = explain.DefaultTolerance
	}
	return &Service{schema: schema, pipeline: pipeline, opts: opts, now: time.Now}
}

// Schema returns the feature schema the service assembles against.
func (s *Service) Schema() features.Schema {
	return s.schema
}

// ChartEnabled reports whether attributions are requested (variant 2).
func (s *Service) ChartEnabled() bool {
	return s.opts.Explainer != nil
}

// Assess validates and scores in. Validation, scaling and model errors are
// returned; attribution, summary and recording failures are not.
func (s *Service) Assess(ctx context.Context, in features.FormInput) (*Outcome, error) {
	vec, err := features.Assemble(s.schema, in)
	if err != nil {
		return nil, err
	}

	res, err := s.pipeline.Predict(ctx, vec)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	out := &Outcome{
		ID:     uuid.New(),
		At:     s.now(),
		Input:  in.Clone(),
		Vector: vec,
		Result: res,
	}
	log := s.opts.Logger.With(zap.Stringer("assessment", out.ID))
	log.Info("assessment scored",
		zap.Int("label", int(res.Label)),
		zap.Float64("probability", res.Probability))

	s.explain(ctx, out, log)
	s.narrate(ctx, out, log)
	s.record(ctx, out, log)
	return out, nil
}

func (s *Service) explain(ctx context.Context, out *Outcome, log *zap.Logger) {
	if s.opts.Explainer == nil {
		out.AttributionErr = ErrChartDisabled
		return
	}
	if s.opts.ExplainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ExplainTimeout)
		defer cancel()
	}

	attr, err := s.opts.Explainer.Explain(ctx, explain.Request{
		Columns: out.Vector.Columns,
		Values:  out.Result.Scaled,
	})
	if err == nil {
		err = explain.CheckAdditivity(attr, attr.ModelOutput(out.Result.Probability), s.opts.Tolerance)
	}
	if err != nil {
		log.Warn("attributions unavailable", zap.Error(err))
		out.AttributionErr = err
		return
	}
	out.Attribution = attr
}

func (s *Service) narrate(ctx context.Context, out *Outcome, log *zap.Logger) {
	if s.opts.Narrator == nil {
		return
	}

	facts := narrative.Facts{
		Positive:    out.Result.Label == inference.LabelPositive,
		Verdict:     out.Verdict(),
		Probability: out.Result.Probability,
		Threshold:   out.Result.Threshold,
	}
	if out.Attribution != nil {
		for _, sc := range out.Attribution.Ranked() {
			facts.Factors = append(facts.Factors, narrative.Factor{
				Name:  s.schema.DisplayName(sc.Feature),
				Value: sc.Value,
			})
		}
	}

	summary, err := s.opts.Narrator.Narrate(ctx, facts)
	if err != nil {
		log.Warn("summary unavailable", zap.Error(err))
		out.NarrativeErr = err
		return
	}
	out.Summary = summary
}

func (s *Service) record(ctx context.Context, out *Outcome, log *zap.Logger) {
	if s.opts.History == nil {
		return
	}
	if err := s.opts.History.Append(context.WithoutCancel(ctx), ToRecord(out)); err != nil {
		log.Warn("failed to record assessment", zap.Error(err))
	}
}

// ToRecord flattens an Outcome for the history store.
func ToRecord(o *Outcome) *store.PredictionRecord {
	input := make(map[string]string, len(o.Input))
	for k, v := range o.Input {
		input[string(k)] = v
	}
	rec := &store.PredictionRecord{
		UUID:          o.ID.String(),
		CreatedAt:     o.At,
		SchemaVersion: o.Vector.SchemaVersion,
		Input:         input,
		Columns:       o.Vector.Columns,
		Vector:        o.Vector.Values,
		Label:         int(o.Result.Label),
		Probability:   o.Result.Probability,
		Threshold:     o.Result.Threshold,
	}
	if o.Attribution != nil {
		rec.Baseline = o.Attribution.Baseline
		for _, sc := range o.Attribution.Scores {
			rec.Attributions = append(rec.Attributions, store.AttributionEntry{Feature: sc.Feature, Value: sc.Value})
		}
	} else if o.AttributionErr != nil && !errors.Is(o.AttributionErr, ErrChartDisabled) {
		rec.AttributionError = o.AttributionErr.Error()
	}
	if o.Summary != nil {
		rec.Narrative = o.Summary.String()
	}
	return rec
}
