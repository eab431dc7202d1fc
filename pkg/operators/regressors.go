package operators

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/errors"
)

// withIntercept appends a bias column of ones.
func withIntercept(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols+1, nil)
	out.Slice(0, rows, 0, cols).(*mat.Dense).Copy(x)
	for r := 0; r < rows; r++ {
		out.Set(r, cols, 1)
	}
	return out
}

// LinearRegression fits ordinary least squares with an intercept.
type LinearRegression struct {
	beta *mat.VecDense
}

func newLinearRegression(Params) (interface{}, error) {
	return &LinearRegression{}, nil
}

func (l *LinearRegression) Fit(x *mat.Dense, y []float64) error {
	rows, _ := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	a := withIntercept(x)
	_, acols := a.Dims()
	b := mat.NewVecDense(rows, append([]float64(nil), y...))
	beta := mat.NewVecDense(acols, nil)
	if err := beta.SolveVec(a, b); err != nil {
		return errors.Wrap(err, errors.EvaluationFailed, "least squares solve failed")
	}
	l.beta = beta
	return nil
}

func (l *LinearRegression) Predict(x *mat.Dense) ([]float64, error) {
	if l.beta == nil {
		return nil, notFitted("LinearRegression")
	}
	a := withIntercept(x)
	rows, _ := a.Dims()
	var pred mat.VecDense
	pred.MulVec(a, l.beta)
	out := make([]float64, rows)
	for i := range out {
		out[i] = pred.AtVec(i)
	}
	return out, nil
}

// RidgeRegression solves the L2-regularized normal equations
// (XᵀX + αI)β = Xᵀy; the intercept column is left unpenalized.
type RidgeRegression struct {
	Alpha float64
	beta  *mat.VecDense
}

func newRidgeRegression(p Params) (interface{}, error) {
	alpha := paramFloat(p, "alpha", 1.0)
	if alpha < 0 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "alpha must be non-negative"),
			errors.Fields{"alpha": alpha})
	}
	return &RidgeRegression{Alpha: alpha}, nil
}

func (rr *RidgeRegression) Fit(x *mat.Dense, y []float64) error {
	rows, _ := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	a := withIntercept(x)
	_, acols := a.Dims()

	var ata mat.Dense
	ata.Mul(a.T(), a)
	for i := 0; i < acols-1; i++ { // skip the intercept slot
		ata.Set(i, i, ata.At(i, i)+rr.Alpha)
	}

	b := mat.NewVecDense(rows, append([]float64(nil), y...))
	var aty mat.VecDense
	aty.MulVec(a.T(), b)

	beta := mat.NewVecDense(acols, nil)
	if err := beta.SolveVec(&ata, &aty); err != nil {
		return errors.Wrap(err, errors.EvaluationFailed, "ridge solve failed")
	}
	rr.beta = beta
	return nil
}

func (rr *RidgeRegression) Predict(x *mat.Dense) ([]float64, error) {
	if rr.beta == nil {
		return nil, notFitted("RidgeRegression")
	}
	a := withIntercept(x)
	rows, _ := a.Dims()
	var pred mat.VecDense
	pred.MulVec(a, rr.beta)
	out := make([]float64, rows)
	for i := range out {
		out[i] = pred.AtVec(i)
	}
	return out, nil
}

// KNeighborsRegressor averages the targets of the k nearest rows.
type KNeighborsRegressor struct {
	K       int
	Weights string
	P       int

	trainX *mat.Dense
	trainY []float64
}

func newKNeighborsRegressor(p Params) (interface{}, error) {
	return &KNeighborsRegressor{
		K:       paramInt(p, "n_neighbors", 5),
		Weights: paramString(p, "weights", "uniform"),
		P:       paramInt(p, "p", 2),
	}, nil
}

func (k *KNeighborsRegressor) Fit(x *mat.Dense, y []float64) error {
	rows, _ := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	if k.K > rows {
		return errors.WithFields(
			errors.New(errors.EvaluationFailed, "n_neighbors exceeds training rows"),
			errors.Fields{"n_neighbors": k.K, "rows": rows})
	}
	k.trainX = mat.DenseCopyOf(x)
	k.trainY = append([]float64(nil), y...)
	return nil
}

func (k *KNeighborsRegressor) Predict(x *mat.Dense) ([]float64, error) {
	if k.trainX == nil {
		return nil, notFitted("KNeighborsRegressor")
	}
	rows, cols := x.Dims()
	n, _ := k.trainX.Dims()
	out := make([]float64, rows)
	row := make([]float64, cols)
	buf := make([]float64, cols)
	for r := 0; r < rows; r++ {
		mat.Row(row, r, x)
		all := make([]neighbor, n)
		for i := 0; i < n; i++ {
			mat.Row(buf, i, k.trainX)
			all[i] = neighbor{dist: minkowski(row, buf, k.P), label: k.trainY[i]}
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })

		var sum, wsum float64
		for _, nb := range all[:k.K] {
			w := 1.0
			if k.Weights == "distance" {
				w = 1.0 / (nb.dist + 1e-10)
			}
			sum += w * nb.label
			wsum += w
		}
		out[r] = sum / wsum
	}
	return out, nil
}
