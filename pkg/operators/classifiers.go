package operators

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/errors"
)

// classLabels returns the distinct labels of y, sorted ascending.
func classLabels(y []float64) []float64 {
	seen := map[float64]struct{}{}
	for _, v := range y {
		seen[v] = struct{}{}
	}
	out := make([]float64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

func notFitted(name string) error {
	return errors.WithFields(
		errors.New(errors.NotFitted, "estimator used before Fit"),
		errors.Fields{"operator": name})
}

// KNeighborsClassifier votes among the k nearest training rows under a
// Minkowski distance (p=1 Manhattan, p=2 Euclidean), with uniform or
// inverse-distance weighting.
type KNeighborsClassifier struct {
	K       int
	Weights string // "uniform" or "distance"
	P       int

	trainX  *mat.Dense
	trainY  []float64
	classes []float64
}

func newKNeighborsClassifier(p Params) (interface{}, error) {
	return &KNeighborsClassifier{
		K:       paramInt(p, "n_neighbors", 5),
		Weights: paramString(p, "weights", "uniform"),
		P:       paramInt(p, "p", 2),
	}, nil
}

func (c *KNeighborsClassifier) Fit(x *mat.Dense, y []float64) error {
	rows, _ := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	if c.K > rows {
		return errors.WithFields(
			errors.New(errors.EvaluationFailed, "n_neighbors exceeds training rows"),
			errors.Fields{"n_neighbors": c.K, "rows": rows})
	}
	c.trainX = mat.DenseCopyOf(x)
	c.trainY = append([]float64(nil), y...)
	c.classes = classLabels(y)
	return nil
}

func minkowski(a, b []float64, p int) float64 {
	sum := 0.0
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if p == 1 {
			sum += d
		} else {
			sum += d * d
		}
	}
	if p == 1 {
		return sum
	}
	return math.Sqrt(sum)
}

type neighbor struct {
	dist  float64
	label float64
}

func (c *KNeighborsClassifier) neighbors(row []float64) []neighbor {
	n, _ := c.trainX.Dims()
	all := make([]neighbor, n)
	buf := make([]float64, len(row))
	for i := 0; i < n; i++ {
		mat.Row(buf, i, c.trainX)
		all[i] = neighbor{dist: minkowski(row, buf, c.P), label: c.trainY[i]}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	return all[:c.K]
}

func (c *KNeighborsClassifier) vote(row []float64) map[float64]float64 {
	votes := map[float64]float64{}
	for _, nb := range c.neighbors(row) {
		w := 1.0
		if c.Weights == "distance" {
			w = 1.0 / (nb.dist + 1e-10)
		}
		votes[nb.label] += w
	}
	return votes
}

func (c *KNeighborsClassifier) Predict(x *mat.Dense) ([]float64, error) {
	if c.trainX == nil {
		return nil, notFitted("KNeighborsClassifier")
	}
	rows, _ := x.Dims()
	out := make([]float64, rows)
	row := make([]float64, c.trainX.RawMatrix().Cols)
	for r := 0; r < rows; r++ {
		mat.Row(row, r, x)
		votes := c.vote(row)
		best, bestW := 0.0, math.Inf(-1)
		for _, label := range c.classes {
			if w := votes[label]; w > bestW {
				best, bestW = label, w
			}
		}
		out[r] = best
	}
	return out, nil
}

func (c *KNeighborsClassifier) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if c.trainX == nil {
		return nil, notFitted("KNeighborsClassifier")
	}
	rows, _ := x.Dims()
	out := mat.NewDense(rows, len(c.classes), nil)
	row := make([]float64, c.trainX.RawMatrix().Cols)
	for r := 0; r < rows; r++ {
		mat.Row(row, r, x)
		votes := c.vote(row)
		total := 0.0
		for _, w := range votes {
			total += w
		}
		for j, label := range c.classes {
			if total > 0 {
				out.Set(r, j, votes[label]/total)
			}
		}
	}
	return out, nil
}

func (c *KNeighborsClassifier) Classes() []float64 {
	return c.classes
}

// GaussianNB is the classic Gaussian naive Bayes classifier.
type GaussianNB struct {
	classes []float64
	priors  []float64
	means   [][]float64
	vars    [][]float64
}

func newGaussianNB(Params) (interface{}, error) {
	return &GaussianNB{}, nil
}

func (g *GaussianNB) Fit(x *mat.Dense, y []float64) error {
	rows, cols := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	g.classes = classLabels(y)
	g.priors = make([]float64, len(g.classes))
	g.means = make([][]float64, len(g.classes))
	g.vars = make([][]float64, len(g.classes))

	for ci, label := range g.classes {
		var members []int
		for i, v := range y {
			if v == label {
				members = append(members, i)
			}
		}
		g.priors[ci] = float64(len(members)) / float64(rows)
		mean := make([]float64, cols)
		variance := make([]float64, cols)
		for _, r := range members {
			for c := 0; c < cols; c++ {
				mean[c] += x.At(r, c)
			}
		}
		for c := 0; c < cols; c++ {
			mean[c] /= float64(len(members))
		}
		for _, r := range members {
			for c := 0; c < cols; c++ {
				d := x.At(r, c) - mean[c]
				variance[c] += d * d
			}
		}
		for c := 0; c < cols; c++ {
			variance[c] = variance[c]/float64(len(members)) + 1e-9
		}
		g.means[ci] = mean
		g.vars[ci] = variance
	}
	return nil
}

func (g *GaussianNB) logLikelihoods(row []float64) []float64 {
	out := make([]float64, len(g.classes))
	for ci := range g.classes {
		ll := math.Log(g.priors[ci])
		for c, v := range row {
			variance := g.vars[ci][c]
			d := v - g.means[ci][c]
			ll += -0.5*math.Log(2*math.Pi*variance) - d*d/(2*variance)
		}
		out[ci] = ll
	}
	return out
}

func (g *GaussianNB) Predict(x *mat.Dense) ([]float64, error) {
	if g.classes == nil {
		return nil, notFitted("GaussianNB")
	}
	rows, cols := x.Dims()
	out := make([]float64, rows)
	row := make([]float64, cols)
	for r := 0; r < rows; r++ {
		mat.Row(row, r, x)
		ll := g.logLikelihoods(row)
		best := 0
		for i := 1; i < len(ll); i++ {
			if ll[i] > ll[best] {
				best = i
			}
		}
		out[r] = g.classes[best]
	}
	return out, nil
}

func (g *GaussianNB) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if g.classes == nil {
		return nil, notFitted("GaussianNB")
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, len(g.classes), nil)
	row := make([]float64, cols)
	for r := 0; r < rows; r++ {
		mat.Row(row, r, x)
		ll := g.logLikelihoods(row)
		// Softmax in log space for numerical stability.
		max := ll[0]
		for _, v := range ll[1:] {
			if v > max {
				max = v
			}
		}
		total := 0.0
		for i, v := range ll {
			ll[i] = math.Exp(v - max)
			total += ll[i]
		}
		for i := range ll {
			out.Set(r, i, ll[i]/total)
		}
	}
	return out, nil
}

func (g *GaussianNB) Classes() []float64 {
	return g.classes
}

// LogisticRegression fits one-vs-rest logistic models by gradient
// descent with L2 regularization strength 1/C.
type LogisticRegression struct {
	C     float64
	Iters int
	LR    float64

	classes []float64
	weights [][]float64 // per class, cols+1 with bias last
}

func newLogisticRegression(p Params) (interface{}, error) {
	c := paramFloat(p, "C", 1.0)
	if c <= 0 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "C must be positive"),
			errors.Fields{"C": c})
	}
	return &LogisticRegression{C: c, Iters: 200, LR: 0.1}, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func (l *LogisticRegression) Fit(x *mat.Dense, y []float64) error {
	rows, cols := x.Dims()
	if rows == 0 {
		return errors.New(errors.EvaluationFailed, "empty training set")
	}
	l.classes = classLabels(y)
	l.weights = make([][]float64, len(l.classes))

	lambda := 1.0 / l.C
	row := make([]float64, cols)
	for ci, label := range l.classes {
		w := make([]float64, cols+1)
		for iter := 0; iter < l.Iters; iter++ {
			grad := make([]float64, cols+1)
			for r := 0; r < rows; r++ {
				mat.Row(row, r, x)
				z := w[cols]
				for c := 0; c < cols; c++ {
					z += w[c] * row[c]
				}
				target := 0.0
				if y[r] == label {
					target = 1.0
				}
				err := sigmoid(z) - target
				for c := 0; c < cols; c++ {
					grad[c] += err * row[c]
				}
				grad[cols] += err
			}
			for c := 0; c <= cols; c++ {
				g := grad[c] / float64(rows)
				if c < cols {
					g += lambda * w[c] / float64(rows)
				}
				w[c] -= l.LR * g
			}
		}
		l.weights[ci] = w
	}
	return nil
}

func (l *LogisticRegression) scores(row []float64) []float64 {
	out := make([]float64, len(l.classes))
	for ci, w := range l.weights {
		z := w[len(row)]
		for c, v := range row {
			z += w[c] * v
		}
		out[ci] = sigmoid(z)
	}
	return out
}

func (l *LogisticRegression) Predict(x *mat.Dense) ([]float64, error) {
	if l.weights == nil {
		return nil, notFitted("LogisticRegression")
	}
	rows, cols := x.Dims()
	out := make([]float64, rows)
	row := make([]float64, cols)
	for r := 0; r < rows; r++ {
		mat.Row(row, r, x)
		s := l.scores(row)
		best := 0
		for i := 1; i < len(s); i++ {
			if s[i] > s[best] {
				best = i
			}
		}
		out[r] = l.classes[best]
	}
	return out, nil
}

func (l *LogisticRegression) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if l.weights == nil {
		return nil, notFitted("LogisticRegression")
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, len(l.classes), nil)
	row := make([]float64, cols)
	for r := 0; r < rows; r++ {
		mat.Row(row, r, x)
		s := l.scores(row)
		total := 0.0
		for _, v := range s {
			total += v
		}
		for i, v := range s {
			if total > 0 {
				out.Set(r, i, v/total)
			}
		}
	}
	return out, nil
}

func (l *LogisticRegression) Classes() []float64 {
	return l.classes
}
