package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	LinearTypeName  = "model.Linear"
	MappingTypeName = "model.Mapping"
)

func init() {
	Register(LinearTypeName, func() any { return &Linear{} })
	Register(MappingTypeName, func() any { return &Mapping{} })
}

// Linear is y = X·w + b.
type Linear struct {
	Coefficients []float64
	Intercept    float64
}

func (l *Linear) Predict(x mat.Matrix) ([]float64, error) {
	if len(l.Coefficients) == 0 {
		return nil, ErrEmptyCoefficient
	}
	_, c := x.Dims()
	if c != len(l.Coefficients) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, c, len(l.Coefficients))
	}
	var out mat.VecDense
	out.MulVec(x, mat.NewVecDense(c, l.Coefficients))
	raw := out.RawVector().Data
	res := make([]float64, len(raw))
	for i, v := range raw {
		res[i] = v + l.Intercept
	}
	return res, nil
}

func (l *Linear) FeatureCount() int { return len(l.Coefficients) }

// Mapping is a plain key/value artifact. It loads fine but cannot predict.
type Mapping map[string]string
