package operators_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/internal/testutil"
	"github.com/evopipe/evopipe/pkg/errors"
	"github.com/evopipe/evopipe/pkg/gp"
	"github.com/evopipe/evopipe/pkg/operators"
)

func TestNewUnknownOperator(t *testing.T) {
	_, err := operators.New("NoSuchOperator", nil)
	require.Error(t, err)
	assert.Equal(t, errors.InvalidConfig, errors.CodeOf(err))
}

func TestKindOf(t *testing.T) {
	kind, err := operators.KindOf("GaussianNB")
	require.NoError(t, err)
	assert.Equal(t, gp.KindClassifier, kind)

	kind, err = operators.KindOf("CombineDFs")
	require.NoError(t, err)
	assert.Equal(t, gp.KindCombiner, kind)

	_, err = operators.KindOf("Nope")
	assert.Error(t, err)
}

func TestCombineColumns(t *testing.T) {
	a := mat.NewDense(2, 1, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})
	out, err := operators.CombineColumns(a, b)
	require.NoError(t, err)
	_, cols := out.Dims()
	assert.Equal(t, 3, cols)
	assert.Equal(t, 1.0, out.At(0, 0))
	assert.Equal(t, 4.0, out.At(0, 2))

	_, err = operators.CombineColumns(a, mat.NewDense(3, 1, nil))
	assert.Error(t, err, "row count mismatch")
}

func TestGaussianNBSeparatesBlobs(t *testing.T) {
	x, y := testutil.Blobs(100, 1)
	inst, err := operators.New("GaussianNB", nil)
	require.NoError(t, err)
	clf := inst.(operators.ProbabilisticEstimator)

	require.NoError(t, clf.Fit(x, y))
	pred, err := clf.Predict(x)
	require.NoError(t, err)

	correct := 0
	for i := range y {
		if pred[i] == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(y)), 0.95)

	proba, err := clf.PredictProba(x)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	assert.Equal(t, 100, rows)
	assert.Equal(t, 2, cols)
	for r := 0; r < rows; r++ {
		assert.InDelta(t, 1.0, proba.At(r, 0)+proba.At(r, 1), 1e-9, "probabilities sum to one")
	}
	assert.Equal(t, []float64{0, 1}, clf.Classes())
}

func TestKNeighborsClassifier(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{0, 1, 10, 11})
	y := []float64{0, 0, 1, 1}

	inst, err := operators.New("KNeighborsClassifier", operators.Params{"n_neighbors": 1})
	require.NoError(t, err)
	clf := inst.(operators.Estimator)
	require.NoError(t, clf.Fit(x, y))

	pred, err := clf.Predict(mat.NewDense(2, 1, []float64{0.4, 10.6}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, pred)
}

func TestKNeighborsRejectsTooFewRows(t *testing.T) {
	inst, err := operators.New("KNeighborsClassifier", operators.Params{"n_neighbors": 10})
	require.NoError(t, err)
	err = inst.(operators.Estimator).Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), []float64{0, 1, 0})
	assert.Error(t, err)
}

func TestLinearRegressionRecoversLine(t *testing.T) {
	x, y := testutil.Line(20)
	inst, err := operators.New("LinearRegression", nil)
	require.NoError(t, err)
	reg := inst.(operators.Estimator)
	require.NoError(t, reg.Fit(x, y))

	pred, err := reg.Predict(mat.NewDense(2, 1, []float64{100, 200}))
	require.NoError(t, err)
	assert.InDelta(t, 201.0, pred[0], 1e-6)
	assert.InDelta(t, 401.0, pred[1], 1e-6)
}

func TestRidgeRegressionShrinks(t *testing.T) {
	x, y := testutil.Line(20)

	fit := func(alpha float64) float64 {
		inst, err := operators.New("RidgeRegression", operators.Params{"alpha": alpha})
		require.NoError(t, err)
		reg := inst.(operators.Estimator)
		require.NoError(t, reg.Fit(x, y))
		pred, err := reg.Predict(mat.NewDense(1, 1, []float64{100}))
		require.NoError(t, err)
		return pred[0]
	}

	light := fit(0.01)
	heavy := fit(1000)
	assert.InDelta(t, 201.0, light, 0.5)
	assert.Less(t, heavy, light, "stronger regularization shrinks the slope")

	_, err := operators.New("RidgeRegression", operators.Params{"alpha": -1.0})
	assert.Error(t, err)
}

func TestEstimatorsFailBeforeFit(t *testing.T) {
	for _, name := range []string{"GaussianNB", "KNeighborsClassifier", "LinearRegression"} {
		inst, err := operators.New(name, nil)
		require.NoError(t, err)
		_, err = inst.(operators.Estimator).Predict(mat.NewDense(1, 1, []float64{1}))
		require.Error(t, err, name)
		assert.Equal(t, errors.NotFitted, errors.CodeOf(err), name)
	}
}
