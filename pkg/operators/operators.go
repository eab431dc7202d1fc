// Package operators supplies the concrete estimators and transformers
// candidate pipelines are compiled from, plus the catalog describing
// which operators and hyperparameter domains a search may draw on.
package operators

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/errors"
	"github.com/evopipe/evopipe/pkg/gp"
)

// Task selects which estimator family may sit at the pipeline root.
type Task int

const (
	TaskClassification Task = iota
	TaskRegression
)

func (t Task) String() string {
	if t == TaskRegression {
		return "regression"
	}
	return "classification"
}

// Estimator is the fit/predict contract pipeline roots satisfy.
type Estimator interface {
	Fit(x *mat.Dense, y []float64) error
	Predict(x *mat.Dense) ([]float64, error)
}

// ProbabilisticEstimator additionally exposes class probabilities.
type ProbabilisticEstimator interface {
	Estimator
	PredictProba(x *mat.Dense) (*mat.Dense, error)
	Classes() []float64
}

// Transformer is the contract for interior Data-producing nodes.
type Transformer interface {
	Fit(x *mat.Dense, y []float64) error
	Transform(x *mat.Dense) (*mat.Dense, error)
}

// Params carries the hyperparameter values bound to one tree node.
type Params map[string]interface{}

type builder struct {
	kind gp.OperatorKind
	make func(Params) (interface{}, error)
}

var builders = map[string]builder{
	"KNeighborsClassifier": {gp.KindClassifier, newKNeighborsClassifier},
	"GaussianNB":           {gp.KindClassifier, newGaussianNB},
	"LogisticRegression":   {gp.KindClassifier, newLogisticRegression},
	"LinearRegression":     {gp.KindRegressor, newLinearRegression},
	"RidgeRegression":      {gp.KindRegressor, newRidgeRegression},
	"KNeighborsRegressor":  {gp.KindRegressor, newKNeighborsRegressor},
	"StandardScaler":       {gp.KindTransformer, newStandardScaler},
	"MinMaxScaler":         {gp.KindTransformer, newMinMaxScaler},
	"Binarizer":            {gp.KindTransformer, newBinarizer},
	"ZeroCount":            {gp.KindTransformer, newZeroCount},
	"PCA":                  {gp.KindTransformer, newPCA},
	"VarianceThreshold":    {gp.KindSelector, newVarianceThreshold},
	"SelectPercentile":     {gp.KindSelector, newSelectPercentile},
}

// CombinerName is the branching primitive's qualified name.
const CombinerName = "CombineDFs"

// KindOf reports the registered kind of an operator name.
func KindOf(name string) (gp.OperatorKind, error) {
	if name == CombinerName {
		return gp.KindCombiner, nil
	}
	b, ok := builders[name]
	if !ok {
		return 0, errors.WithFields(
			errors.New(errors.InvalidConfig, "unknown operator"),
			errors.Fields{"operator": name})
	}
	return b.kind, nil
}

// New instantiates an operator with the given hyperparameters. The
// result is an Estimator or a Transformer depending on the kind.
func New(name string, params Params) (interface{}, error) {
	b, ok := builders[name]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "unknown operator"),
			errors.Fields{"operator": name})
	}
	return b.make(params)
}

// Names lists the implemented operator names, sorted.
func Names() []string {
	out := make([]string, 0, len(builders))
	for n := range builders {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// CombineColumns concatenates two matrices column-wise; this is the
// runtime of the CombineDFs primitive.
func CombineColumns(a, b *mat.Dense) (*mat.Dense, error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb {
		return nil, errors.WithFields(
			errors.New(errors.EvaluationFailed, "row count mismatch in combine"),
			errors.Fields{"left": ra, "right": rb})
	}
	out := mat.NewDense(ra, ca+cb, nil)
	out.Slice(0, ra, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, ra, ca, ca+cb).(*mat.Dense).Copy(b)
	return out, nil
}

// Hyperparameter coercion helpers. Catalog values arrive as untyped
// YAML or Go literals, so numeric kinds need normalizing.

func paramFloat(p Params, key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return def
	}
}

func paramInt(p Params, key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return def
	}
}

func paramString(p Params, key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func paramBool(p Params, key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}
