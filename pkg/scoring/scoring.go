// Package scoring holds the registry of named scoring functions used
// to grade candidate pipelines. All scorers follow the greater-is-
// better convention; error-style metrics are registered negated.
package scoring

import (
	"math"
	"sort"
	"sync"

	"github.com/evopipe/evopipe/pkg/errors"
)

// ScoreFunc grades predictions against ground truth. Higher is better.
type ScoreFunc func(yTrue, yPred []float64) float64

var (
	mu       sync.RWMutex
	registry = map[string]ScoreFunc{}
)

func init() {
	Register("accuracy", Accuracy)
	Register("balanced_accuracy", BalancedAccuracy)
	Register("neg_mean_squared_error", NegMeanSquaredError)
	Register("neg_mean_absolute_error", NegMeanAbsoluteError)
	Register("r2", R2)
}

// Register adds a scorer under a name, replacing any previous binding.
func Register(name string, fn ScoreFunc) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Get resolves a scorer by name. Unknown names are a configuration
// error, surfaced at construction time rather than during evaluation.
func Get(name string) (ScoreFunc, error) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "unknown scoring function"),
			errors.Fields{"scoring": name})
	}
	return fn, nil
}

// Names lists the registered scorer names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// BalancedAccuracy averages, over the classes present in yTrue, the
// mean of per-class sensitivity and specificity. It compensates for
// class imbalance where plain accuracy rewards majority guessing.
func BalancedAccuracy(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	classes := map[float64]struct{}{}
	for _, y := range yTrue {
		classes[y] = struct{}{}
	}

	total := 0.0
	for c := range classes {
		var tp, fn, tn, fp float64
		for i := range yTrue {
			switch {
			case yTrue[i] == c && yPred[i] == c:
				tp++
			case yTrue[i] == c:
				fn++
			case yPred[i] == c:
				fp++
			default:
				tn++
			}
		}
		sensitivity := 0.0
		if tp+fn > 0 {
			sensitivity = tp / (tp + fn)
		}
		specificity := 0.0
		if tn+fp > 0 {
			specificity = tn / (tn + fp)
		}
		total += (sensitivity + specificity) / 2
	}
	return total / float64(len(classes))
}

// NegMeanSquaredError is the negated MSE, so higher remains better.
func NegMeanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return -sum / float64(len(yTrue))
}

// NegMeanAbsoluteError is the negated MAE.
func NegMeanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return -sum / float64(len(yTrue))
}

// R2 is the coefficient of determination.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := 0.0
	for _, y := range yTrue {
		mean += y
	}
	mean /= float64(len(yTrue))

	var ssRes, ssTot float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		t := yTrue[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
