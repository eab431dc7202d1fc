// Package dataset provides the tabular data model for search runs:
// validation, median imputation, fold splitting, subsampling and
// loaders for CSV and parquet files.
package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/errors"
)

// Table couples a feature matrix with its target vector.
type Table struct {
	X *mat.Dense
	Y []float64
}

// Validate rejects malformed inputs before any search work starts.
func Validate(x *mat.Dense, y []float64) error {
	if x == nil {
		return errors.New(errors.ValidationFailed, "feature matrix is nil")
	}
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return errors.New(errors.ValidationFailed, "feature matrix is empty")
	}
	if len(y) != rows {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "feature/target length mismatch"),
			errors.Fields{"rows": rows, "targets": len(y)})
	}
	return nil
}

// TargetColumn extracts a 1-D target from a matrix-shaped target,
// rejecting anything with more than one column.
func TargetColumn(m *mat.Dense) ([]float64, error) {
	if m == nil {
		return nil, errors.New(errors.ValidationFailed, "target matrix is nil")
	}
	rows, cols := m.Dims()
	if cols != 1 {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "target must be a single column"),
			errors.Fields{"rows": rows, "cols": cols})
	}
	out := make([]float64, rows)
	mat.Col(out, 0, m)
	return out, nil
}

// MedianImputer substitutes NaN cells with the per-column median seen
// during Fit. It is fitted once per run on the training features and
// reused at prediction time so train and inference agree.
type MedianImputer struct {
	medians []float64
}

// Fit computes per-column medians over the non-missing values.
// Columns with no observed value fall back to zero.
func (im *MedianImputer) Fit(x *mat.Dense) {
	rows, cols := x.Dims()
	im.medians = make([]float64, cols)
	buf := make([]float64, 0, rows)
	for c := 0; c < cols; c++ {
		buf = buf[:0]
		for r := 0; r < rows; r++ {
			if v := x.At(r, c); !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			im.medians[c] = 0
			continue
		}
		sort.Float64s(buf)
		mid := len(buf) / 2
		if len(buf)%2 == 1 {
			im.medians[c] = buf[mid]
		} else {
			im.medians[c] = (buf[mid-1] + buf[mid]) / 2
		}
	}
}

// Transform returns a copy of x with every NaN replaced by the fitted
// column median.
func (im *MedianImputer) Transform(x *mat.Dense) (*mat.Dense, error) {
	if im.medians == nil {
		return nil, errors.New(errors.NotFitted, "imputer used before Fit")
	}
	rows, cols := x.Dims()
	if cols != len(im.medians) {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "column count changed since Fit"),
			errors.Fields{"fitted": len(im.medians), "got": cols})
	}
	out := mat.DenseCopyOf(x)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if math.IsNaN(out.At(r, c)) {
				out.Set(r, c, im.medians[c])
			}
		}
	}
	return out, nil
}

// FitTransform fits the imputer and transforms in one step.
func (im *MedianImputer) FitTransform(x *mat.Dense) (*mat.Dense, error) {
	im.Fit(x)
	return im.Transform(x)
}

// HasMissing reports whether any cell of x is NaN.
func HasMissing(x *mat.Dense) bool {
	rows, cols := x.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if math.IsNaN(x.At(r, c)) {
				return true
			}
		}
	}
	return false
}

// TakeRows gathers the given rows of x into a new matrix.
func TakeRows(x *mat.Dense, idx []int) *mat.Dense {
	_, cols := x.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		out.SetRow(i, mat.Row(nil, r, x))
	}
	return out
}

// TakeValues gathers the given positions of y into a new slice.
func TakeValues(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
