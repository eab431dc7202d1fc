package dataset

import (
	"math/rand"

	"github.com/evopipe/evopipe/pkg/errors"
)

// Fold is one train/test split expressed as row indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold produces k shuffled cross-validation folds over n rows. The
// folds are computed once per run from the seeded source, so every
// individual is graded against the same splits.
func KFold(rng *rand.Rand, n, k int) ([]Fold, error) {
	if k < 2 || k > n {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "fold count must be in [2, rows]"),
			errors.Fields{"k": k, "rows": n})
	}

	perm := rng.Perm(n)
	folds := make([]Fold, k)
	// Distribute remainders across the leading folds like standard
	// k-fold implementations do.
	base, extra := n/k, n%k
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		test := perm[start : start+size]
		train := make([]int, 0, n-size)
		train = append(train, perm[:start]...)
		train = append(train, perm[start+size:]...)
		folds[i] = Fold{Train: train, Test: test}
		start += size
	}
	return folds, nil
}

// StratifiedKFold produces k folds whose test sets preserve the class
// proportions of y. A rolling offset spreads the per-class remainders
// so fold sizes stay as even as plain k-fold.
func StratifiedKFold(rng *rand.Rand, y []float64, k int) ([]Fold, error) {
	n := len(y)
	if k < 2 || k > n {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "fold count must be in [2, rows]"),
			errors.Fields{"k": k, "rows": n})
	}

	groups := make(map[float64][]int)
	var classes []float64
	for i, v := range y {
		if _, seen := groups[v]; !seen {
			classes = append(classes, v)
		}
		groups[v] = append(groups[v], i)
	}

	tests := make([][]int, k)
	offset := 0
	for _, c := range classes {
		idx := groups[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for j, row := range idx {
			f := (offset + j) % k
			tests[f] = append(tests[f], row)
		}
		offset = (offset + len(idx)) % k
	}

	folds := make([]Fold, k)
	inTest := make([]bool, n)
	for i := 0; i < k; i++ {
		for _, r := range tests[i] {
			inTest[r] = true
		}
		train := make([]int, 0, n-len(tests[i]))
		for r := 0; r < n; r++ {
			if !inTest[r] {
				train = append(train, r)
			}
		}
		folds[i] = Fold{Train: train, Test: tests[i]}
		for _, r := range tests[i] {
			inTest[r] = false
		}
	}
	return folds, nil
}

// HoldoutSplit produces a single shuffled split with the given test
// share. Used instead of k-fold when a subsample ratio is configured.
func HoldoutSplit(rng *rand.Rand, n int, testRatio float64) (Fold, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return Fold{}, errors.WithFields(
			errors.New(errors.InvalidConfig, "test ratio must be in (0, 1)"),
			errors.Fields{"ratio": testRatio})
	}
	perm := rng.Perm(n)
	cut := int(float64(n) * testRatio)
	if cut == 0 {
		cut = 1
	}
	if cut == n {
		cut = n - 1
	}
	return Fold{Test: perm[:cut], Train: perm[cut:]}, nil
}

// Subsample draws a fixed random subset of ratio*n row indices,
// applied once per run before evaluation begins.
func Subsample(rng *rand.Rand, n int, ratio float64) ([]int, error) {
	if ratio <= 0 || ratio > 1 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "subsample ratio must be in (0, 1]"),
			errors.Fields{"ratio": ratio})
	}
	size := int(float64(n) * ratio)
	if size < 1 {
		size = 1
	}
	perm := rng.Perm(n)
	return perm[:size], nil
}
