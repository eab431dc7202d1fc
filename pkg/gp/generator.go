package gp

import (
	"math/rand"

	"github.com/evopipe/evopipe/pkg/errors"
)

// Generator produces random well-typed individuals within depth
// bounds. Generation is grow-safe: below MinDepth only primitives are
// chosen (unless none fits the required type, in which case a terminal
// keeps the recursion finite), and at MaxDepth only terminals are
// chosen, so every tree terminates and none is trivial.
type Generator struct {
	PSet     *PrimitiveSet
	MinDepth int
	MaxDepth int
}

// NewGenerator returns a generator with the given bounds.
func NewGenerator(pset *PrimitiveSet, minDepth, maxDepth int) (*Generator, error) {
	if minDepth < 1 || maxDepth < minDepth {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "invalid tree depth bounds"),
			errors.Fields{"min": minDepth, "max": maxDepth})
	}
	if err := pset.Validate(); err != nil {
		return nil, err
	}
	return &Generator{PSet: pset, MinDepth: minDepth, MaxDepth: maxDepth}, nil
}

// Generate produces one well-typed individual rooted at TypeOutput.
// Identical rng state and registry yield identical trees.
func (g *Generator) Generate(rng *rand.Rand, generation int) *Individual {
	nodes := g.growSubtree(rng, TypeOutput, 0, nil)
	return NewIndividual(nodes, generation)
}

// GrowSubtree builds the prefix encoding of a random subtree of the
// required type, rooted at the given depth. It is shared with the
// mutation operators, which regenerate branches mid-tree.
func (g *Generator) GrowSubtree(rng *rand.Rand, required TypeTag, depth int) []Node {
	return g.growSubtree(rng, required, depth, nil)
}

func (g *Generator) growSubtree(rng *rand.Rand, required TypeTag, depth int, nodes []Node) []Node {
	prims := g.PSet.PrimitivesFor(required)
	terms := g.PSet.TerminalsFor(required)

	useTerminal := false
	switch {
	case len(prims) == 0:
		// No primitive can produce this type; terminals are the only
		// way to close the branch.
		useTerminal = true
	case depth >= g.MaxDepth:
		useTerminal = true
	case depth < g.MinDepth:
		useTerminal = false
	default:
		// Between the bounds, bias toward terminals proportionally to
		// their share of the alternatives, like classic grow.
		ratio := float64(len(terms)) / float64(len(terms)+len(prims))
		useTerminal = len(terms) > 0 && rng.Float64() < ratio
	}

	if useTerminal && len(terms) > 0 {
		return append(nodes, terminalNode(terms[rng.Intn(len(terms))]))
	}
	if len(prims) == 0 {
		// Required type has neither terminals nor primitives; the
		// registry validation makes this unreachable for TypeOutput,
		// and hyperparameter tags always carry terminals.
		return nodes
	}

	prim := prims[rng.Intn(len(prims))]
	nodes = append(nodes, primitiveNode(prim))
	for _, in := range prim.InputTypes {
		nodes = g.growSubtree(rng, in, depth+1, nodes)
	}
	return nodes
}
