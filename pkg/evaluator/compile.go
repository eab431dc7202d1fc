// Package evaluator compiles candidate trees into runnable pipelines
// and scores them by cross-validation, caching results by canonical
// string so rediscovered pipelines are never re-fit.
package evaluator

import (
	"gonum.org/v1/gonum/mat"

	"github.com/evopipe/evopipe/pkg/errors"
	"github.com/evopipe/evopipe/pkg/gp"
	"github.com/evopipe/evopipe/pkg/operators"
)

// featureStage is one node of the compiled feature-construction tree
// feeding the root estimator. Exactly one shape applies: a leaf (the
// raw feature matrix), a column-wise combine of two children, or a
// fitted transformer over one child.
type featureStage struct {
	left, right *featureStage           // combine
	tr          operators.Transformer   // transform
	child       *featureStage
}

func (s *featureStage) fitTransform(x *mat.Dense, y []float64) (*mat.Dense, error) {
	switch {
	case s.tr != nil:
		xt, err := s.child.fitTransform(x, y)
		if err != nil {
			return nil, err
		}
		if err := s.tr.Fit(xt, y); err != nil {
			return nil, err
		}
		return s.tr.Transform(xt)
	case s.left != nil:
		a, err := s.left.fitTransform(x, y)
		if err != nil {
			return nil, err
		}
		b, err := s.right.fitTransform(x, y)
		if err != nil {
			return nil, err
		}
		return operators.CombineColumns(a, b)
	default:
		return x, nil
	}
}

func (s *featureStage) transform(x *mat.Dense) (*mat.Dense, error) {
	switch {
	case s.tr != nil:
		xt, err := s.child.transform(x)
		if err != nil {
			return nil, err
		}
		return s.tr.Transform(xt)
	case s.left != nil:
		a, err := s.left.transform(x)
		if err != nil {
			return nil, err
		}
		b, err := s.right.transform(x)
		if err != nil {
			return nil, err
		}
		return operators.CombineColumns(a, b)
	default:
		return x, nil
	}
}

// Pipeline is a compiled individual: a feature-construction stage
// feeding one root estimator. Instances hold fitted state, so a fresh
// compile is needed per training fold.
type Pipeline struct {
	root operators.Estimator
	feed *featureStage
}

func (p *Pipeline) Fit(x *mat.Dense, y []float64) error {
	xt, err := p.feed.fitTransform(x, y)
	if err != nil {
		return err
	}
	return p.root.Fit(xt, y)
}

func (p *Pipeline) Predict(x *mat.Dense) ([]float64, error) {
	xt, err := p.feed.transform(x)
	if err != nil {
		return nil, err
	}
	return p.root.Predict(xt)
}

// PredictProba returns class probabilities when the root estimator
// supports them.
func (p *Pipeline) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	xt, err := p.feed.transform(x)
	if err != nil {
		return nil, err
	}
	prob, ok := p.root.(operators.ProbabilisticEstimator)
	if !ok {
		return nil, errors.New(errors.EvaluationFailed, "root estimator has no probability output")
	}
	return prob.PredictProba(xt)
}

// Compile materializes an individual into a Pipeline with fresh,
// unfitted operator instances.
func Compile(ind *gp.Individual) (*Pipeline, error) {
	if err := ind.CheckTyped(); err != nil {
		return nil, err
	}
	root := ind.Nodes[0].Primitive

	feed, next, err := compileFeature(ind.Nodes, 1)
	if err != nil {
		return nil, err
	}
	params, _, err := readParams(ind.Nodes, next, root.Arity()-1)
	if err != nil {
		return nil, err
	}
	inst, err := operators.New(root.Name, params)
	if err != nil {
		return nil, err
	}
	est, ok := inst.(operators.Estimator)
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.CompilationFailed, "root operator is not an estimator"),
			errors.Fields{"operator": root.Name})
	}
	return &Pipeline{root: est, feed: feed}, nil
}

func compileFeature(nodes []gp.Node, pos int) (*featureStage, int, error) {
	n := nodes[pos]
	if n.IsTerminal() {
		return &featureStage{}, pos + 1, nil
	}
	prim := n.Primitive
	if prim.Kind == gp.KindCombiner {
		left, next, err := compileFeature(nodes, pos+1)
		if err != nil {
			return nil, 0, err
		}
		right, next, err := compileFeature(nodes, next)
		if err != nil {
			return nil, 0, err
		}
		return &featureStage{left: left, right: right}, next, nil
	}

	child, next, err := compileFeature(nodes, pos+1)
	if err != nil {
		return nil, 0, err
	}
	params, next, err := readParams(nodes, next, prim.Arity()-1)
	if err != nil {
		return nil, 0, err
	}
	inst, err := operators.New(prim.Name, params)
	if err != nil {
		return nil, 0, err
	}

	var tr operators.Transformer
	switch v := inst.(type) {
	case operators.Transformer:
		tr = v
	case operators.Estimator:
		// Interior estimators contribute stacked features.
		tr = operators.NewStackingEstimator(v)
	default:
		return nil, 0, errors.WithFields(
			errors.New(errors.CompilationFailed, "operator implements neither contract"),
			errors.Fields{"operator": prim.Name})
	}
	return &featureStage{tr: tr, child: child}, next, nil
}

// readParams consumes count hyperparameter terminals starting at pos.
func readParams(nodes []gp.Node, pos, count int) (operators.Params, int, error) {
	params := operators.Params{}
	for i := 0; i < count; i++ {
		n := nodes[pos]
		if !n.IsTerminal() || n.Terminal.Param == "" {
			return nil, 0, errors.New(errors.CompilationFailed, "expected hyperparameter terminal")
		}
		params[n.Terminal.Param] = n.Terminal.Value
		pos++
	}
	return params, pos, nil
}
