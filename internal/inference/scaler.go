package inference

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/abhisek/diarisk/internal/features"
)

// Scaler is a fitted per-feature standardization: (x - mean) / scale.
// It mirrors a scikit-learn StandardScaler exported to JSON.
type Scaler struct {
	SchemaVersion string
	Columns       []string
	Mean          []float64
	Scale         []float64
}

// NewScaler checks that the parameter slices line up with the columns.
func NewScaler(schemaVersion string, columns []string, mean, scale []float64) (*Scaler, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("scaler has no columns")
	}
	if len(mean) != len(columns) || len(scale) != len(columns) {
		return nil, fmt.Errorf("scaler shape mismatch: %d columns, %d means, %d scales",
			len(columns), len(mean), len(scale))
	}
	return &Scaler{
		SchemaVersion: schemaVersion,
		Columns:       append([]string(nil), columns...),
		Mean:          append([]float64(nil), mean...),
		Scale:         append([]float64(nil), scale...),
	}, nil
}

// Transform standardizes a single feature vector into a 1×n matrix.
// A zero scale leaves the centered value unscaled, as scikit-learn does for
// constant features.
func (s *Scaler) Transform(v features.Vector) (*mat.Dense, error) {
	if v.SchemaVersion != s.SchemaVersion {
		return nil, fmt.Errorf("vector schema %s does not match scaler schema %s",
			v.SchemaVersion, s.SchemaVersion)
	}
	if len(v.Values) != len(s.Columns) {
		return nil, fmt.Errorf("vector has %d features, scaler expects %d",
			len(v.Values), len(s.Columns))
	}
	if len(v.Columns) != len(s.Columns) {
		return nil, fmt.Errorf("vector names %d columns, scaler expects %d",
			len(v.Columns), len(s.Columns))
	}
	for i, c := range s.Columns {
		if v.Columns[i] != c {
			return nil, fmt.Errorf("column %d is %q, scaler expects %q", i, v.Columns[i], c)
		}
	}

	x := mat.NewDense(1, len(v.Values), append([]float64(nil), v.Values...))
	x.Apply(func(_, j int, val float64) float64 {
		scale := s.Scale[j]
		if scale == 0 {
			scale = 1
		}
		return (val - s.Mean[j]) / scale
	}, x)
	return x, nil
}
