// Package model defines the predictive-model capability used by inference audits,
// the feature-count detection policy and the artifact codec.
package model

import (
	"fmt"
	"reflect"

	"gonum.org/v1/gonum/mat"
)

// DefaultFeatureCount is used when a model does not reveal its input width.
const DefaultFeatureCount = 10

// Predictor is the narrow capability every loadable model implements.
type Predictor interface {
	Predict(x mat.Matrix) ([]float64, error)
}

// PredictiveModel is what the audit engine drives in inference mode.
type PredictiveModel interface {
	Predictor
	FeatureCount() int
	Name() string
}

// Optional accessors probed by DetectFeatureCount, in order.
type (
	nFeaturesIn    interface{ NFeaturesIn() int }
	featureCounter interface{ FeatureCount() int }
	importancer    interface {
		FeatureImportances() ([]float64, error)
	}
)

// DetectFeatureCount returns the model's input width and whether it was detected.
// When it was not, the returned count is DefaultFeatureCount.
func DetectFeatureCount(p Predictor) (int, bool) {
	if v, ok := p.(nFeaturesIn); ok {
		if n := v.NFeaturesIn(); n > 0 {
			return n, true
		}
	}
	if v, ok := p.(featureCounter); ok {
		if n := v.FeatureCount(); n > 0 {
			return n, true
		}
	}
	if v, ok := p.(importancer); ok {
		if imp, err := v.FeatureImportances(); err == nil && len(imp) > 0 {
			return len(imp), true
		}
	}
	return DefaultFeatureCount, false
}

// TypeName is the runtime type name of v without pointer markers, e.g. "forest.Classifier".
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// Adapted wraps a Predictor as a PredictiveModel.
type Adapted struct {
	Predictor
	features int
	name     string
	warnings []string
}

// Adapt applies the feature-count policy to p. A fallback count is reported through Warnings.
func Adapt(p Predictor) *Adapted {
	if a, ok := p.(*Adapted); ok {
		return a
	}
	n, detected := DetectFeatureCount(p)
	a := &Adapted{Predictor: p, features: n, name: TypeName(p)}
	if !detected {
		a.warnings = append(a.warnings, fmt.Sprintf(
			"could not determine feature count for %s; using %d", a.name, DefaultFeatureCount))
	}
	return a
}

func (a *Adapted) FeatureCount() int { return a.features }

func (a *Adapted) Name() string { return a.name }

// Warnings lists non-fatal issues found while adapting.
func (a *Adapted) Warnings() []string { return a.warnings }
