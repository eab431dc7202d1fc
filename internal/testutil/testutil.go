// Package testutil provides small fixtures shared by the package tests:
// a minimal operator catalog, deterministic toy datasets and a scorer
// that counts its invocations.
package testutil

import (
	"math/rand"
	"sync/atomic"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/gp"
	"github.com/evopipe/evopipe/pkg/operators"
	"github.com/evopipe/evopipe/pkg/scoring"
)

// TinyCatalog returns a three-operator classification catalog small
// enough that searches stay fast and trees stay readable.
func TinyCatalog() operators.Catalog {
	return operators.Catalog{
		"GaussianNB":     {},
		"StandardScaler": {},
		"Binarizer": {
			"threshold": {Values: []interface{}{0.0, 0.5}},
		},
	}
}

// TinyPSet builds the primitive set for TinyCatalog, failing the test
// on error.
func TinyPSet(t *testing.T) *gp.PrimitiveSet {
	t.Helper()
	ps, err := operators.BuildPrimitiveSet(TinyCatalog(), operators.TaskClassification)
	if err != nil {
		t.Fatalf("building tiny primitive set: %v", err)
	}
	return ps
}

// Blobs returns a deterministic, linearly separable two-class dataset:
// class 0 around (-2,-2), class 1 around (+2,+2).
func Blobs(n int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		center := -2.0
		if i%2 == 1 {
			center = 2.0
			y[i] = 1
		}
		x.Set(i, 0, center+rng.NormFloat64()*0.5)
		x.Set(i, 1, center+rng.NormFloat64()*0.5)
	}
	return x, y
}

// Line returns a noiseless regression dataset with y = 2*x0 + 1.
func Line(n int) (*mat.Dense, []float64) {
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i)
		x.Set(i, 0, v)
		y[i] = 2*v + 1
	}
	return x, y
}

// CountingScorer wraps a score function and counts how many times it
// runs, for asserting that cached pipelines are not re-scored.
func CountingScorer(base scoring.ScoreFunc) (scoring.ScoreFunc, *atomic.Int64) {
	var calls atomic.Int64
	fn := func(yTrue, yPred []float64) float64 {
		calls.Add(1)
		return base(yTrue, yPred)
	}
	return fn, &calls
}
