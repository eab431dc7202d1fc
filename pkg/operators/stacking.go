package operators

import (
	"gonum.org/v1/gonum/mat"
)

// StackingEstimator adapts an estimator into a transformer so it can
// feed another estimator: the transformed matrix is the estimator's
// predictions, its class probabilities when available, then the
// original features.
type StackingEstimator struct {
	Estimator Estimator
}

// NewStackingEstimator wraps an estimator for interior tree positions.
func NewStackingEstimator(est Estimator) *StackingEstimator {
	return &StackingEstimator{Estimator: est}
}

func (s *StackingEstimator) Fit(x *mat.Dense, y []float64) error {
	return s.Estimator.Fit(x, y)
}

func (s *StackingEstimator) Transform(x *mat.Dense) (*mat.Dense, error) {
	pred, err := s.Estimator.Predict(x)
	if err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	parts := mat.NewDense(rows, 1, pred)

	if prob, ok := s.Estimator.(ProbabilisticEstimator); ok {
		proba, err := prob.PredictProba(x)
		if err != nil {
			return nil, err
		}
		combined, err := CombineColumns(parts, proba)
		if err != nil {
			return nil, err
		}
		parts = combined
	}

	return CombineColumns(parts, x)
}
