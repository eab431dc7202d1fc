// Package gp implements the typed expression-tree representation of
// candidate pipelines and the genetic search machinery that operates
// on it: grow-safe generation, typed crossover and mutation,
// non-dominated sorting selection and the Pareto archive.
//
// Trees are stored as flat prefix-encoded node slices. Each primitive
// is immediately followed by the encodings of its children, so a
// subtree is always one contiguous index range and the genetic
// operators splice ranges instead of rewiring pointers.
package gp

import (
	"math"
)

// TypeTag distinguishes the semantic category a tree node produces or
// consumes. Beyond the two structural tags below, every hyperparameter
// declares its own tag ("KNeighborsClassifier__n_neighbors", ...) so
// that the grammar binds value terminals to exactly one operator slot.
type TypeTag string

const (
	// TypeData is the feature-matrix type flowing between operators.
	TypeData TypeTag = "Data"

	// TypeOutput is the designated pipeline-output type. Only
	// root-eligible primitives return it, and every valid individual
	// is rooted at a node returning it.
	TypeOutput TypeTag = "Output"
)

// ParamTypeTag derives the type tag for one operator hyperparameter.
func ParamTypeTag(opName, param string) TypeTag {
	return TypeTag(opName + "__" + param)
}

// Fitness is the multi-objective fitness of an evaluated individual.
// Complexity counts operator nodes (lower is better), Quality is the
// mean cross-validated score (higher is better). A failed evaluation
// carries Quality = -Inf.
type Fitness struct {
	Complexity float64
	Quality    float64
}

// FailedFitness returns the sentinel fitness recorded for individuals
// whose compilation or evaluation failed.
func FailedFitness(complexity float64) Fitness {
	return Fitness{Complexity: complexity, Quality: math.Inf(-1)}
}

// Failed reports whether this fitness is the evaluation-failure sentinel.
func (f Fitness) Failed() bool {
	return math.IsInf(f.Quality, -1)
}

// Dominates reports whether f Pareto-dominates other: not worse in
// either objective and strictly better in at least one.
func (f Fitness) Dominates(other Fitness) bool {
	if f.Complexity > other.Complexity || f.Quality < other.Quality {
		return false
	}
	return f.Complexity < other.Complexity || f.Quality > other.Quality
}

// Better orders fitnesses for best-individual extraction: higher
// quality wins, ties broken by lower complexity.
func (f Fitness) Better(other Fitness) bool {
	if f.Quality != other.Quality {
		return f.Quality > other.Quality
	}
	return f.Complexity < other.Complexity
}
