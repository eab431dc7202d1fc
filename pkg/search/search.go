// Package search runs the evolutionary pipeline search: it evolves a
// population of candidate pipelines under NSGA-II selection, keeps a
// Pareto archive of the best complexity/quality trade-offs, and fits
// the winning pipeline on the full training data.
package search

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/cache"
	"github.com/evopipe/evopipe/pkg/config"
	"github.com/evopipe/evopipe/pkg/dataset"
	"github.com/evopipe/evopipe/pkg/errors"
	"github.com/evopipe/evopipe/pkg/evaluator"
	"github.com/evopipe/evopipe/pkg/gp"
	"github.com/evopipe/evopipe/pkg/logging"
	"github.com/evopipe/evopipe/pkg/operators"
	"github.com/evopipe/evopipe/pkg/scoring"
)

// PipelineSearch is the user-facing estimator. Construct with
// NewClassifier or NewRegressor, call Fit, then Predict or Score.
// A single search is not safe for concurrent use.
type PipelineSearch struct {
	cfg     config.Config
	task    operators.Task
	scorer  scoring.ScoreFunc
	catalog operators.Catalog
	pset    *gp.PrimitiveSet
	store   cache.Store

	imputer    *dataset.MedianImputer
	population []*gp.Individual
	archive    *gp.ParetoArchive
	best       *gp.Individual
	fitted     *evaluator.Pipeline
}

// NewClassifier builds a search for classification tasks.
func NewClassifier(cfg config.Config) (*PipelineSearch, error) {
	return newSearch(cfg, operators.TaskClassification, "accuracy")
}

// NewRegressor builds a search for regression tasks.
func NewRegressor(cfg config.Config) (*PipelineSearch, error) {
	return newSearch(cfg, operators.TaskRegression, "neg_mean_squared_error")
}

func newSearch(cfg config.Config, task operators.Task, defaultScorer string) (*PipelineSearch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name := cfg.Scoring
	if name == "" {
		name = defaultScorer
	}
	scorer, err := scoring.Get(name)
	if err != nil {
		return nil, err
	}

	var cat operators.Catalog
	if cfg.CatalogPath != "" {
		cat, err = operators.LoadCatalog(cfg.CatalogPath)
	} else {
		cat, err = operators.CatalogPreset(cfg.CatalogPreset, task)
	}
	if err != nil {
		return nil, err
	}
	pset, err := operators.BuildPrimitiveSet(cat, task)
	if err != nil {
		return nil, err
	}

	var store cache.Store
	if cfg.CachePath != "" {
		store, err = cache.NewSQLiteStore(cfg.CachePath)
		if err != nil {
			return nil, err
		}
	} else {
		store = cache.NewMemoryStore()
	}

	return &PipelineSearch{
		cfg:     cfg,
		task:    task,
		scorer:  scorer,
		catalog: cat,
		pset:    pset,
		store:   store,
		archive: gp.NewParetoArchive(),
	}, nil
}

// Fit runs the evolutionary search on the training data and fits the
// best discovered pipeline on all of it.
func (s *PipelineSearch) Fit(ctx context.Context, x *mat.Dense, y []float64) error {
	if err := dataset.Validate(x, y); err != nil {
		return err
	}

	ctx = logging.WithRunID(ctx, uuid.New().String())
	logger := logging.GetLogger()
	start := time.Now()

	if dataset.HasMissing(x) {
		s.imputer = &dataset.MedianImputer{}
		imputed, err := s.imputer.FitTransform(x)
		if err != nil {
			return err
		}
		x = imputed
		logger.Info(ctx, "imputed missing feature values with column medians")
	} else {
		s.imputer = nil
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed))

	rows, _ := x.Dims()
	searchX, searchY := x, y
	if s.cfg.Subsample < 1.0 {
		idx, err := dataset.Subsample(rng, rows, s.cfg.Subsample)
		if err != nil {
			return err
		}
		searchX = dataset.TakeRows(x, idx)
		searchY = dataset.TakeValues(y, idx)
		rows = len(idx)
	}

	// Subsampled runs grade on a single holdout instead of full CV.
	// Classification folds are stratified so each fold keeps the class mix.
	var folds []dataset.Fold
	var err error
	if s.cfg.CVFolds == 1 || s.cfg.Subsample < 1.0 {
		var fold dataset.Fold
		fold, err = dataset.HoldoutSplit(rng, rows, 0.25)
		if err != nil {
			return err
		}
		folds = []dataset.Fold{fold}
	} else if s.task == operators.TaskClassification {
		folds, err = dataset.StratifiedKFold(rng, searchY, s.cfg.CVFolds)
		if err != nil {
			return err
		}
	} else {
		folds, err = dataset.KFold(rng, rows, s.cfg.CVFolds)
		if err != nil {
			return err
		}
	}

	eval, err := evaluator.New(s.scorer, s.store, searchX, searchY, folds, s.cfg.Workers, s.cfg.EvalTimeout.Std())
	if err != nil {
		return err
	}

	gen, err := gp.NewGenerator(s.pset, s.cfg.MinTreeDepth, s.cfg.MaxTreeDepth)
	if err != nil {
		return err
	}
	mut := &gp.Mutator{Gen: gen, MaxAttempts: 50, MaxHeight: s.cfg.MaxHeight}
	cx := &gp.Crossover{MaxAttempts: 50, MaxHeight: s.cfg.MaxHeight}

	if !s.cfg.WarmStart || len(s.population) == 0 {
		s.population = make([]*gp.Individual, 0, s.cfg.PopulationSize)
		for i := 0; i < s.cfg.PopulationSize; i++ {
			s.population = append(s.population, gen.Generate(rng, 0))
		}
		s.archive = gp.NewParetoArchive()
	}

	if err := eval.EvaluateAll(ctx, s.population); err != nil {
		return err
	}
	s.archive.Update(s.population)
	s.logGeneration(logging.WithGeneration(ctx, 0), 0)

	for g := 1; g <= s.cfg.Generations; g++ {
		genCtx := logging.WithGeneration(ctx, g)
		if err := errors.CheckContext(genCtx, "pipeline search"); err != nil {
			return err
		}
		if s.cfg.MaxTime > 0 && time.Since(start) >= s.cfg.MaxTime.Std() {
			logger.Info(genCtx, "time budget reached after %d generations", g-1)
			break
		}

		offspring := s.breed(rng, cx, mut, g)
		if err := eval.EvaluateAll(genCtx, offspring); err != nil {
			return err
		}

		combined := append(append([]*gp.Individual{}, s.population...), offspring...)
		s.population = gp.SelectNSGA2(combined, s.cfg.PopulationSize)
		s.archive.Update(offspring)
		s.logGeneration(genCtx, g)
	}

	s.best = s.archive.Best()
	if s.best == nil {
		return errors.New(errors.EvaluationFailed, "no pipeline evaluated successfully")
	}
	logger.Info(ctx, "best pipeline: %s (score %.5f)", s.best.String(), s.best.Fitness.Quality)

	pipe, err := evaluator.Compile(s.best)
	if err != nil {
		return err
	}
	if err := pipe.Fit(x, y); err != nil {
		return errors.Wrap(err, errors.EvaluationFailed, "fitting best pipeline on full training data")
	}
	s.fitted = pipe
	return nil
}

// breed produces one offspring batch: each slot draws crossover,
// mutation or plain reproduction with the configured probabilities,
// never both on the same individual.
func (s *PipelineSearch) breed(rng *rand.Rand, cx *gp.Crossover, mut *gp.Mutator, generation int) []*gp.Individual {
	dist := gp.PoolCrowding(s.population)
	offspring := make([]*gp.Individual, 0, s.cfg.OffspringSize)
	for len(offspring) < s.cfg.OffspringSize {
		roll := rng.Float64()
		switch {
		case roll < s.cfg.CrossoverRate:
			p1 := gp.TournamentSelect(rng, s.population, dist)
			p2 := gp.TournamentSelect(rng, s.population, dist)
			c1, _ := cx.Apply(rng, p1, p2, generation)
			offspring = append(offspring, c1)
		case roll < s.cfg.CrossoverRate+s.cfg.MutationRate:
			p := gp.TournamentSelect(rng, s.population, dist)
			offspring = append(offspring, mut.Mutate(rng, p, generation))
		default:
			p := gp.TournamentSelect(rng, s.population, dist)
			offspring = append(offspring, p.Clone(generation))
		}
	}
	return offspring
}

func (s *PipelineSearch) logGeneration(ctx context.Context, g int) {
	if s.cfg.Verbosity < 1 {
		return
	}
	best := s.archive.Best()
	quality := 0.0
	if best != nil {
		quality = best.Fitness.Quality
	}
	logging.GetLogger().Info(ctx, "generation %d: best score %.5f, pareto front %d, cached evaluations %d",
		g, quality, s.archive.Len(), s.store.Len())
}

// Predict applies the fitted pipeline to new rows.
func (s *PipelineSearch) Predict(x *mat.Dense) ([]float64, error) {
	if s.fitted == nil {
		return nil, errors.New(errors.NotFitted, "search used before Fit")
	}
	x, err := s.prepare(x)
	if err != nil {
		return nil, err
	}
	return s.fitted.Predict(x)
}

// PredictProba returns class probabilities for classification searches
// whose best pipeline exposes them.
func (s *PipelineSearch) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if s.fitted == nil {
		return nil, errors.New(errors.NotFitted, "search used before Fit")
	}
	x, err := s.prepare(x)
	if err != nil {
		return nil, err
	}
	return s.fitted.PredictProba(x)
}

// Score predicts on x and applies the configured score function.
func (s *PipelineSearch) Score(x *mat.Dense, y []float64) (float64, error) {
	pred, err := s.Predict(x)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(y) {
		return 0, errors.New(errors.ValidationFailed, "target length does not match prediction length")
	}
	return s.scorer(y, pred), nil
}

func (s *PipelineSearch) prepare(x *mat.Dense) (*mat.Dense, error) {
	if s.imputer != nil && dataset.HasMissing(x) {
		return s.imputer.Transform(x)
	}
	return x, nil
}

// Best returns the winning individual, nil before Fit.
func (s *PipelineSearch) Best() *gp.Individual {
	return s.best
}

// Archive returns the Pareto-front individuals discovered so far.
func (s *PipelineSearch) Archive() []*gp.Individual {
	return s.archive.Members()
}

// EvaluatedIndividuals returns every cached pipeline string with its
// fitness.
func (s *PipelineSearch) EvaluatedIndividuals() map[string]gp.Fitness {
	return s.store.Snapshot()
}

// Population returns the current population, for warm-start inspection.
func (s *PipelineSearch) Population() []*gp.Individual {
	out := make([]*gp.Individual, len(s.population))
	copy(out, s.population)
	return out
}

// Close releases the evaluation cache.
func (s *PipelineSearch) Close() error {
	return s.store.Close()
}
