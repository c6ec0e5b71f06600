package inference

import (
	"fmt"

	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"
)

// Classifier is a trained binary model. PredictProba returns the
// positive-class probability for every row of x.
type Classifier interface {
	PredictProba(x *mat.Dense) ([]float64, error)
	Name() string
}

// matrixView is the read side of the predictor's output matrix.
type matrixView interface {
	At(i, j int) float64
}

// LightGBM serves a LightGBM text model (random-forest or gbdt boosting)
// through the scigo predictor.
type LightGBM struct {
	path    string
	predict func(x *mat.Dense) (matrixView, error)
}

// LoadLightGBM reads a LightGBM model file.
func LoadLightGBM(path string) (*LightGBM, error) {
	model, err := lightgbm.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load lightgbm model: %w", err)
	}
	predictor := lightgbm.NewPredictor(model)
	predictor.SetDeterministic(true)
	return &LightGBM{
		path: path,
		predict: func(x *mat.Dense) (matrixView, error) {
			out, err := predictor.Predict(x)
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	}, nil
}

func (l *LightGBM) PredictProba(x *mat.Dense) (probs []float64, err error) {
	// The predictor indexes trees by feature position and panics on a
	// width mismatch; report that as an error instead.
	defer func() {
		if r := recover(); r != nil {
			probs = nil
			err = fmt.Errorf("lightgbm predict: %v", r)
		}
	}()

	out, err := l.predict(x)
	if err != nil {
		return nil, fmt.Errorf("lightgbm predict: %w", err)
	}

	rows, _ := x.Dims()
	probs = make([]float64, rows)
	for i := range rows {
		probs[i] = out.At(i, 0)
	}
	return probs, nil
}

func (l *LightGBM) Name() string {
	return "lightgbm:" + l.path
}
