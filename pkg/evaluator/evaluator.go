package evaluator

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/cache"
	"github.com/evopipe/evopipe/pkg/dataset"
	"github.com/evopipe/evopipe/pkg/errors"
	"github.com/evopipe/evopipe/pkg/gp"
	"github.com/evopipe/evopipe/pkg/logging"
	"github.com/evopipe/evopipe/pkg/scoring"
)

// Evaluator scores individuals by k-fold cross-validation on a fixed
// training slice. Results are cached by canonical pipeline string:
// concurrent duplicates may both compute, but both record the same
// value and later lookups hit.
type Evaluator struct {
	Scorer  scoring.ScoreFunc
	Cache   cache.Store
	X       *mat.Dense
	Y       []float64
	Folds   []dataset.Fold
	Workers int
	Timeout time.Duration // per individual, 0 disables
}

// New validates the wiring and returns an evaluator.
func New(scorer scoring.ScoreFunc, store cache.Store, x *mat.Dense, y []float64, folds []dataset.Fold, workers int, timeout time.Duration) (*Evaluator, error) {
	if scorer == nil {
		return nil, errors.New(errors.InvalidConfig, "nil scorer")
	}
	if store == nil {
		return nil, errors.New(errors.InvalidConfig, "nil cache store")
	}
	if err := dataset.Validate(x, y); err != nil {
		return nil, err
	}
	if len(folds) == 0 {
		return nil, errors.New(errors.InvalidConfig, "no folds")
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Evaluator{
		Scorer:  scorer,
		Cache:   store,
		X:       x,
		Y:       y,
		Folds:   folds,
		Workers: workers,
		Timeout: timeout,
	}, nil
}

// EvaluateAll assigns a fitness to every unevaluated individual. The
// slice is updated in place; order is preserved. It returns an error
// only when the surrounding context is canceled or the cache fails.
func (e *Evaluator) EvaluateAll(ctx context.Context, inds []*gp.Individual) error {
	logger := logging.GetLogger()

	p := pool.New().WithContext(ctx).WithMaxGoroutines(e.Workers).WithCancelOnError()
	for _, ind := range inds {
		if ind.Evaluated() {
			continue
		}
		ind := ind
		p.Go(func(ctx context.Context) error {
			key := ind.String()
			if fit, ok, err := e.Cache.Lookup(ctx, key); err != nil {
				return err
			} else if ok {
				ind.SetFitness(fit)
				return nil
			}

			fit, err := e.evaluateOne(ctx, ind)
			if err != nil {
				return err
			}
			if fit.Failed() {
				logger.Debug(ctx, "pipeline failed evaluation: %s", key)
			}
			if err := e.Cache.Put(ctx, key, fit); err != nil {
				return err
			}
			ind.SetFitness(fit)
			return nil
		})
	}
	return p.Wait()
}

// evaluateOne runs the cross-validation loop for a single individual.
// A compile or fold failure, a non-finite score, or an expired
// per-individual deadline all yield the failure sentinel; only outer
// cancellation surfaces as an error.
func (e *Evaluator) evaluateOne(ctx context.Context, ind *gp.Individual) (gp.Fitness, error) {
	complexity := float64(ind.OperatorCount())

	evalCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	sum := 0.0
	for _, fold := range e.Folds {
		if err := errors.CheckContext(evalCtx, "pipeline evaluation"); err != nil {
			if ctx.Err() != nil {
				return gp.Fitness{}, err
			}
			return gp.FailedFitness(complexity), nil
		}

		score, ok := e.scoreFold(ind, fold)
		if !ok {
			return gp.FailedFitness(complexity), nil
		}
		sum += score
	}
	mean := sum / float64(len(e.Folds))
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return gp.FailedFitness(complexity), nil
	}
	return gp.Fitness{Complexity: complexity, Quality: mean}, nil
}

func (e *Evaluator) scoreFold(ind *gp.Individual, fold dataset.Fold) (float64, bool) {
	pipe, err := Compile(ind)
	if err != nil {
		return 0, false
	}
	trainX := dataset.TakeRows(e.X, fold.Train)
	trainY := dataset.TakeValues(e.Y, fold.Train)
	if err := pipe.Fit(trainX, trainY); err != nil {
		return 0, false
	}
	testX := dataset.TakeRows(e.X, fold.Test)
	pred, err := pipe.Predict(testX)
	if err != nil {
		return 0, false
	}
	testY := dataset.TakeValues(e.Y, fold.Test)
	score := e.Scorer(testY, pred)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, false
	}
	return score, true
}
