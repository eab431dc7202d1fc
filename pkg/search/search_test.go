package search_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/internal/testutil"
	"github.com/evopipe/evopipe/pkg/config"
	"github.com/evopipe/evopipe/pkg/errors"
	"github.com/evopipe/evopipe/pkg/search"
)

func smallConfig() config.Config {
	cfg := config.Default()
	cfg.PopulationSize = 8
	cfg.OffspringSize = 8
	cfg.Generations = 2
	cfg.CVFolds = 3
	cfg.CatalogPreset = "light"
	cfg.Seed = 7
	cfg.Workers = 2
	cfg.Verbosity = 0
	return cfg
}

func TestFitPredictClassification(t *testing.T) {
	s, err := search.NewClassifier(smallConfig())
	require.NoError(t, err)
	defer s.Close()

	x, y := testutil.Blobs(60, 1)
	require.NoError(t, s.Fit(context.Background(), x, y))

	best := s.Best()
	require.NotNil(t, best)
	require.NotNil(t, best.Fitness)
	assert.False(t, best.Fitness.Failed())

	pred, err := s.Predict(x)
	require.NoError(t, err)
	require.Len(t, pred, 60)

	score, err := s.Score(x, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.8, "separable blobs should be learnable")

	assert.NotEmpty(t, s.Archive())
	assert.NotEmpty(t, s.EvaluatedIndividuals())
	assert.Len(t, s.Population(), 8)

	// Every archive member is mutually non-dominated, and no evaluated
	// pipeline anywhere in the run dominates an archive member.
	front := s.Archive()
	for i, a := range front {
		for j, b := range front {
			if i == j {
				continue
			}
			assert.False(t, a.Fitness.Dominates(*b.Fitness),
				"%s dominates %s inside the front", a, b)
		}
		for pipeline, fit := range s.EvaluatedIndividuals() {
			assert.False(t, fit.Dominates(*a.Fitness),
				"evaluated %s dominates archived %s", pipeline, a)
		}
	}
}

func TestFitRegression(t *testing.T) {
	cfg := smallConfig()
	s, err := search.NewRegressor(cfg)
	require.NoError(t, err)
	defer s.Close()

	x, y := testutil.Line(40)
	require.NoError(t, s.Fit(context.Background(), x, y))

	// Neg-MSE on a noiseless line should be close to zero.
	score, err := s.Score(x, y)
	require.NoError(t, err)
	assert.Greater(t, score, -1.0)
}

func TestNotFittedBeforeFit(t *testing.T) {
	s, err := search.NewClassifier(smallConfig())
	require.NoError(t, err)
	defer s.Close()

	x := mat.NewDense(2, 2, nil)
	_, err = s.Predict(x)
	require.Error(t, err)
	assert.Equal(t, errors.NotFitted, errors.CodeOf(err))

	_, err = s.PredictProba(x)
	assert.Error(t, err)
	_, err = s.Score(x, []float64{0, 1})
	assert.Error(t, err)
	assert.Nil(t, s.Best())
}

func TestFitRejectsBadData(t *testing.T) {
	s, err := search.NewClassifier(smallConfig())
	require.NoError(t, err)
	defer s.Close()

	x := mat.NewDense(3, 2, nil)
	err = s.Fit(context.Background(), x, []float64{0, 1})
	require.Error(t, err)
	assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
}

func TestFitImputesMissingValues(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 1
	s, err := search.NewClassifier(cfg)
	require.NoError(t, err)
	defer s.Close()

	x, y := testutil.Blobs(60, 4)
	x.Set(3, 0, math.NaN())
	x.Set(17, 1, math.NaN())
	require.NoError(t, s.Fit(context.Background(), x, y))

	// Prediction inputs with holes go through the same imputer.
	probe := mat.NewDense(1, 2, []float64{math.NaN(), 2.0})
	pred, err := s.Predict(probe)
	require.NoError(t, err)
	assert.Len(t, pred, 1)
}

func TestWarmStartContinues(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 1
	cfg.WarmStart = true
	s, err := search.NewClassifier(cfg)
	require.NoError(t, err)
	defer s.Close()

	x, y := testutil.Blobs(60, 5)
	require.NoError(t, s.Fit(context.Background(), x, y))
	firstEvaluated := len(s.EvaluatedIndividuals())
	firstArchive := len(s.Archive())
	require.NotZero(t, firstArchive)

	require.NoError(t, s.Fit(context.Background(), x, y))
	assert.GreaterOrEqual(t, len(s.EvaluatedIndividuals()), firstEvaluated,
		"warm start keeps the evaluation history")
	assert.GreaterOrEqual(t, len(s.Archive()), 1)
	assert.Len(t, s.Population(), cfg.PopulationSize)
}

func TestTimeBudgetStopsEarly(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 1000
	cfg.MaxTime = 1 // one nanosecond: stop right after the initial population
	s, err := search.NewClassifier(cfg)
	require.NoError(t, err)
	defer s.Close()

	x, y := testutil.Blobs(60, 1)
	require.NoError(t, s.Fit(context.Background(), x, y))
	require.NotNil(t, s.Best(), "the initial population still yields a best pipeline")
}

func TestSubsampleLimitsTrainingRows(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 1
	cfg.Subsample = 0.5
	s, err := search.NewClassifier(cfg)
	require.NoError(t, err)
	defer s.Close()

	x, y := testutil.Blobs(80, 1)
	require.NoError(t, s.Fit(context.Background(), x, y))
	require.NotNil(t, s.Best())
}

func TestConstructorRejectsBadConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.PopulationSize = 0
	_, err := search.NewClassifier(cfg)
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.Scoring = "no_such_scorer"
	_, err = search.NewClassifier(cfg)
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.CatalogPreset = "huge"
	_, err = search.NewClassifier(cfg)
	assert.Error(t, err)
}

func TestFitIsDeterministicPerSeed(t *testing.T) {
	x, y := testutil.Blobs(60, 9)

	run := func() string {
		s, err := search.NewClassifier(smallConfig())
		require.NoError(t, err)
		defer s.Close()
		require.NoError(t, s.Fit(context.Background(), x, y))
		return s.Best().String()
	}
	assert.Equal(t, run(), run(), "same seed, data and config must find the same pipeline")
}

func TestMinimalSearchTerminates(t *testing.T) {
	cfg := smallConfig()
	cfg.PopulationSize = 1
	cfg.OffspringSize = 2
	cfg.Generations = 1
	s, err := search.NewClassifier(cfg)
	require.NoError(t, err)
	defer s.Close()

	x, y := testutil.Blobs(60, 1)
	require.NoError(t, s.Fit(context.Background(), x, y))
	best := s.Best()
	require.NotNil(t, best)
	assert.False(t, best.Fitness.Failed())
}

func TestFitHonorsCancellation(t *testing.T) {
	s, err := search.NewClassifier(smallConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x, y := testutil.Blobs(60, 1)
	assert.Error(t, s.Fit(ctx, x, y))
}
