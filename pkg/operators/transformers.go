package operators

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/evopipe/evopipe/pkg/errors"
)

// StandardScaler centers each column and scales to unit variance.
type StandardScaler struct {
	means []float64
	stds  []float64
}

func newStandardScaler(Params) (interface{}, error) {
	return &StandardScaler{}, nil
}

func (s *StandardScaler) Fit(x *mat.Dense, _ []float64) error {
	rows, cols := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	s.means = make([]float64, cols)
	s.stds = make([]float64, cols)
	col := make([]float64, rows)
	for c := 0; c < cols; c++ {
		mat.Col(col, c, x)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.means[c] = mean
		s.stds[c] = std
	}
	return nil
}

func (s *StandardScaler) Transform(x *mat.Dense) (*mat.Dense, error) {
	if s.means == nil {
		return nil, notFitted("StandardScaler")
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, (x.At(r, c)-s.means[c])/s.stds[c])
		}
	}
	return out, nil
}

// MinMaxScaler rescales each column into [0, 1].
type MinMaxScaler struct {
	mins   []float64
	ranges []float64
}

func newMinMaxScaler(Params) (interface{}, error) {
	return &MinMaxScaler{}, nil
}

func (s *MinMaxScaler) Fit(x *mat.Dense, _ []float64) error {
	rows, cols := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	s.mins = make([]float64, cols)
	s.ranges = make([]float64, cols)
	for c := 0; c < cols; c++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for r := 0; r < rows; r++ {
			v := x.At(r, c)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		s.mins[c] = lo
		if hi == lo {
			s.ranges[c] = 1
		} else {
			s.ranges[c] = hi - lo
		}
	}
	return nil
}

func (s *MinMaxScaler) Transform(x *mat.Dense) (*mat.Dense, error) {
	if s.mins == nil {
		return nil, notFitted("MinMaxScaler")
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, (x.At(r, c)-s.mins[c])/s.ranges[c])
		}
	}
	return out, nil
}

// Binarizer thresholds every cell to 0 or 1.
type Binarizer struct {
	Threshold float64
}

func newBinarizer(p Params) (interface{}, error) {
	return &Binarizer{Threshold: paramFloat(p, "threshold", 0)}, nil
}

func (b *Binarizer) Fit(*mat.Dense, []float64) error { return nil }

func (b *Binarizer) Transform(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if x.At(r, c) > b.Threshold {
				out.Set(r, c, 1)
			}
		}
	}
	return out, nil
}

// ZeroCount prepends two synthetic features: the per-row count of zero
// cells and the count of non-zero cells.
type ZeroCount struct{}

func newZeroCount(Params) (interface{}, error) {
	return &ZeroCount{}, nil
}

func (z *ZeroCount) Fit(*mat.Dense, []float64) error { return nil }

func (z *ZeroCount) Transform(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols+2, nil)
	for r := 0; r < rows; r++ {
		zeros := 0.0
		for c := 0; c < cols; c++ {
			v := x.At(r, c)
			if v == 0 {
				zeros++
			}
			out.Set(r, c+2, v)
		}
		out.Set(r, 0, zeros)
		out.Set(r, 1, float64(cols)-zeros)
	}
	return out, nil
}

// PCA projects onto the leading principal components. The component
// count is a fraction of the original column count.
type PCA struct {
	NComponents float64 // fraction in (0, 1]

	means   []float64
	vectors *mat.Dense
	k       int
}

func newPCA(p Params) (interface{}, error) {
	frac := paramFloat(p, "n_components", 0.5)
	if frac <= 0 || frac > 1 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "n_components fraction must be in (0, 1]"),
			errors.Fields{"n_components": frac})
	}
	return &PCA{NComponents: frac}, nil
}

func (p *PCA) Fit(x *mat.Dense, _ []float64) error {
	rows, cols := x.Dims()
	if rows < 2 {
		return errors.New(errors.EvaluationFailed, "PCA needs at least two rows")
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return errors.New(errors.EvaluationFailed, "principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	p.k = int(math.Ceil(p.NComponents * float64(cols)))
	if p.k < 1 {
		p.k = 1
	}
	if _, vc := vecs.Dims(); p.k > vc {
		p.k = vc
	}
	p.vectors = mat.DenseCopyOf(vecs.Slice(0, cols, 0, p.k))

	p.means = make([]float64, cols)
	col := make([]float64, rows)
	for c := 0; c < cols; c++ {
		mat.Col(col, c, x)
		p.means[c] = stat.Mean(col, nil)
	}
	return nil
}

func (p *PCA) Transform(x *mat.Dense) (*mat.Dense, error) {
	if p.vectors == nil {
		return nil, notFitted("PCA")
	}
	rows, cols := x.Dims()
	if cols != len(p.means) {
		return nil, errors.New(errors.EvaluationFailed, "column count changed since Fit")
	}
	centered := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			centered.Set(r, c, x.At(r, c)-p.means[c])
		}
	}
	out := mat.NewDense(rows, p.k, nil)
	out.Mul(centered, p.vectors)
	return out, nil
}

// VarianceThreshold drops columns whose training variance does not
// exceed the threshold.
type VarianceThreshold struct {
	Threshold float64
	keep      []int
}

func newVarianceThreshold(p Params) (interface{}, error) {
	return &VarianceThreshold{Threshold: paramFloat(p, "threshold", 0)}, nil
}

func (v *VarianceThreshold) Fit(x *mat.Dense, _ []float64) error {
	rows, cols := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	v.keep = v.keep[:0]
	col := make([]float64, rows)
	for c := 0; c < cols; c++ {
		mat.Col(col, c, x)
		if stat.Variance(col, nil) > v.Threshold {
			v.keep = append(v.keep, c)
		}
	}
	if len(v.keep) == 0 {
		return errors.New(errors.EvaluationFailed, "no column exceeds the variance threshold")
	}
	return nil
}

func (v *VarianceThreshold) Transform(x *mat.Dense) (*mat.Dense, error) {
	if v.keep == nil {
		return nil, notFitted("VarianceThreshold")
	}
	return selectColumns(x, v.keep), nil
}

// SelectPercentile keeps the top percentile of columns ranked by
// training variance (at least one column always survives).
type SelectPercentile struct {
	Percentile int
	keep       []int
}

func newSelectPercentile(p Params) (interface{}, error) {
	pct := paramInt(p, "percentile", 50)
	if pct < 1 || pct > 100 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "percentile must be in [1, 100]"),
			errors.Fields{"percentile": pct})
	}
	return &SelectPercentile{Percentile: pct}, nil
}

func (s *SelectPercentile) Fit(x *mat.Dense, _ []float64) error {
	rows, cols := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	type scored struct {
		col   int
		score float64
	}
	scores := make([]scored, cols)
	col := make([]float64, rows)
	for c := 0; c < cols; c++ {
		mat.Col(col, c, x)
		scores[c] = scored{col: c, score: stat.Variance(col, nil)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := cols * s.Percentile / 100
	if n < 1 {
		n = 1
	}
	s.keep = make([]int, 0, n)
	for _, sc := range scores[:n] {
		s.keep = append(s.keep, sc.col)
	}
	sort.Ints(s.keep) // preserve original column order
	return nil
}

func (s *SelectPercentile) Transform(x *mat.Dense) (*mat.Dense, error) {
	if s.keep == nil {
		return nil, notFitted("SelectPercentile")
	}
	return selectColumns(x, s.keep), nil
}

func selectColumns(x *mat.Dense, keep []int) *mat.Dense {
	rows, _ := x.Dims()
	out := mat.NewDense(rows, len(keep), nil)
	for j, c := range keep {
		for r := 0; r < rows; r++ {
			out.Set(r, j, x.At(r, c))
		}
	}
	return out
}
