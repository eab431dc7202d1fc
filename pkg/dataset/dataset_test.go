package dataset_test

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/dataset"
	"github.com/evopipe/evopipe/pkg/errors"
)

func TestValidate(t *testing.T) {
	x := mat.NewDense(3, 2, nil)
	assert.NoError(t, dataset.Validate(x, []float64{1, 2, 3}))

	err := dataset.Validate(x, []float64{1, 2})
	require.Error(t, err)
	assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))

	assert.Error(t, dataset.Validate(nil, []float64{1}))
}

func TestTargetColumnRejectsMatrices(t *testing.T) {
	single := mat.NewDense(3, 1, []float64{1, 2, 3})
	y, err := dataset.TargetColumn(single)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, y)

	_, err = dataset.TargetColumn(mat.NewDense(3, 2, nil))
	require.Error(t, err)
	assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
}

func TestMedianImputer(t *testing.T) {
	nan := math.NaN()
	x := mat.NewDense(4, 2, []float64{
		1, 10,
		nan, 20,
		3, nan,
		5, 40,
	})
	im := &dataset.MedianImputer{}
	out, err := im.FitTransform(x)
	require.NoError(t, err)

	// Column 0 median of {1,3,5} is 3; column 1 median of {10,20,40} is 20.
	assert.Equal(t, 3.0, out.At(1, 0))
	assert.Equal(t, 20.0, out.At(2, 1))
	assert.False(t, dataset.HasMissing(out))

	// The fitted medians apply to new data too.
	fresh, err := im.Transform(mat.NewDense(1, 2, []float64{nan, nan}))
	require.NoError(t, err)
	assert.Equal(t, 3.0, fresh.At(0, 0))
	assert.Equal(t, 20.0, fresh.At(0, 1))
}

func TestMedianImputerNotFitted(t *testing.T) {
	im := &dataset.MedianImputer{}
	_, err := im.Transform(mat.NewDense(1, 1, []float64{1}))
	require.Error(t, err)
	assert.Equal(t, errors.NotFitted, errors.CodeOf(err))
}

func TestKFoldPartitions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	folds, err := dataset.KFold(rng, 10, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := map[int]int{}
	for _, f := range folds {
		assert.Equal(t, 10, len(f.Train)+len(f.Test))
		for _, i := range f.Test {
			seen[i]++
		}
		// Train and test are disjoint within a fold.
		inTest := map[int]bool{}
		for _, i := range f.Test {
			inTest[i] = true
		}
		for _, i := range f.Train {
			assert.False(t, inTest[i])
		}
	}
	// Every row is tested exactly once across folds.
	require.Len(t, seen, 10)
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d", i)
	}
}

func TestStratifiedKFoldKeepsClassMix(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	// Six rows of class 0 followed by six of class 1.
	y := []float64{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	folds, err := dataset.StratifiedKFold(rng, y, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := map[int]int{}
	for _, f := range folds {
		assert.Equal(t, len(y), len(f.Train)+len(f.Test))
		perClass := map[float64]int{}
		for _, i := range f.Test {
			perClass[y[i]]++
			seen[i]++
		}
		assert.Equal(t, 2, perClass[0], "each fold tests two rows of class 0")
		assert.Equal(t, 2, perClass[1], "each fold tests two rows of class 1")
	}
	require.Len(t, seen, len(y))
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d", i)
	}
}

func TestStratifiedKFoldUnevenClasses(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	// Two tiny classes of two rows each still fill all three folds
	// because remainders roll across classes.
	y := []float64{0, 0, 1, 1}
	folds, err := dataset.StratifiedKFold(rng, y, 3)
	require.NoError(t, err)
	for i, f := range folds {
		assert.NotEmpty(t, f.Test, "fold %d", i)
	}

	_, err = dataset.StratifiedKFold(rng, y, 5)
	assert.Error(t, err, "more folds than rows")
}

func TestKFoldBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := dataset.KFold(rng, 3, 5)
	assert.Error(t, err, "more folds than rows")
	_, err = dataset.KFold(rng, 10, 1)
	assert.Error(t, err, "fewer than two folds")
}

func TestSubsample(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	idx, err := dataset.Subsample(rng, 100, 0.25)
	require.NoError(t, err)
	assert.Len(t, idx, 25)

	idx, err = dataset.Subsample(rng, 100, 1.0)
	require.NoError(t, err)
	assert.Len(t, idx, 100)

	_, err = dataset.Subsample(rng, 100, 0)
	assert.Error(t, err)
	_, err = dataset.Subsample(rng, 100, 1.5)
	assert.Error(t, err)
}

func TestHoldoutSplit(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	fold, err := dataset.HoldoutSplit(rng, 20, 0.25)
	require.NoError(t, err)
	assert.Len(t, fold.Test, 5)
	assert.Len(t, fold.Train, 15)
}

func TestTakeRows(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	out := dataset.TakeRows(x, []int{2, 0})
	assert.Equal(t, 5.0, out.At(0, 0))
	assert.Equal(t, 1.0, out.At(1, 0))
	assert.Equal(t, []float64{30, 10}, dataset.TakeValues([]float64{10, 20, 30}, []int{2, 0}))
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "a,b,label\n1,2,0\n3,,1\n5,6,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := dataset.LoadCSV(path, "label")
	require.NoError(t, err)

	rows, cols := table.X.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []float64{0, 1, 0}, table.Y)
	assert.True(t, math.IsNaN(table.X.At(1, 1)), "empty cell becomes NaN")
}

func TestLoadCSVUnknownTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))
	_, err := dataset.LoadCSV(path, "label")
	assert.Error(t, err)
}
