// Package evopipe implements evolutionary search over tree-structured
// machine-learning pipelines.
//
// A pipeline is a typed expression tree whose root is an estimator and
// whose interior nodes are transformers, feature selectors, stacked
// estimators and column-wise combiners. The search evolves a population
// of such trees with typed crossover and mutation, scores candidates by
// cross-validation, and selects survivors with NSGA-II over the two
// objectives pipeline size and validation score. Every evaluation is
// cached by the pipeline's canonical string.
//
// The entry point is pkg/search:
//
//	cfg := config.Default()
//	cfg.Generations = 20
//	s, err := search.NewClassifier(cfg)
//	if err != nil { ... }
//	defer s.Close()
//	if err := s.Fit(ctx, X, y); err != nil { ... }
//	pred, err := s.Predict(Xtest)
//
// See cmd/evopipe for the command-line interface.
package evopipe
