package gp

import (
	"strings"

	"github.com/google/uuid"

	"github.com/evopipe/evopipe/pkg/errors"
)

// Individual is one candidate pipeline: a valid prefix encoding of a
// typed tree plus search bookkeeping. Fitness is nil until the
// evaluator has scored the individual.
type Individual struct {
	ID         string
	Nodes      []Node
	Generation int
	Fitness    *Fitness
}

// NewIndividual wraps a node slice with a fresh identity.
func NewIndividual(nodes []Node, generation int) *Individual {
	return &Individual{
		ID:         uuid.New().String(),
		Nodes:      nodes,
		Generation: generation,
	}
}

// Clone deep-copies the node slice under a new identity and clears the
// fitness. Nodes reference immutable descriptors, so a shallow copy of
// each slot suffices.
func (ind *Individual) Clone(generation int) *Individual {
	nodes := make([]Node, len(ind.Nodes))
	copy(nodes, ind.Nodes)
	return NewIndividual(nodes, generation)
}

// SetFitness records the evaluated fitness.
func (ind *Individual) SetFitness(f Fitness) {
	ind.Fitness = &f
}

// Evaluated reports whether the individual carries a fitness.
func (ind *Individual) Evaluated() bool {
	return ind.Fitness != nil
}

// SubtreeRange returns the half-open index range [pos, end) covering
// the subtree rooted at pos in the prefix encoding.
func (ind *Individual) SubtreeRange(pos int) (int, int) {
	need := 1
	i := pos
	for need > 0 {
		need += ind.Nodes[i].Arity() - 1
		i++
	}
	return pos, i
}

// OperatorCount counts primitive nodes, excluding combiners the same
// way the complexity objective does not charge for branching.
func (ind *Individual) OperatorCount() int {
	count := 0
	for _, n := range ind.Nodes {
		if n.Primitive != nil && n.Primitive.Kind != KindCombiner {
			count++
		}
	}
	return count
}

// Depth returns the height of the tree; a lone terminal has depth 0.
func (ind *Individual) Depth() int {
	d, _ := ind.subtreeDepth(0)
	return d
}

func (ind *Individual) subtreeDepth(pos int) (int, int) {
	n := ind.Nodes[pos]
	if n.IsTerminal() {
		return 0, pos + 1
	}
	next := pos + 1
	max := 0
	for i := 0; i < n.Arity(); i++ {
		var d int
		d, next = ind.subtreeDepth(next)
		if d > max {
			max = d
		}
	}
	return max + 1, next
}

// String renders the canonical form used as the fitness cache key,
// e.g. "KNeighborsClassifier(input_matrix, KNeighborsClassifier__n_neighbors=10)".
func (ind *Individual) String() string {
	var b strings.Builder
	ind.writeSubtree(&b, 0)
	return b.String()
}

func (ind *Individual) writeSubtree(b *strings.Builder, pos int) int {
	n := ind.Nodes[pos]
	if n.IsTerminal() {
		b.WriteString(n.Terminal.Label())
		return pos + 1
	}
	b.WriteString(n.Primitive.Name)
	b.WriteByte('(')
	next := pos + 1
	for i := 0; i < n.Primitive.Arity(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		next = ind.writeSubtree(b, next)
	}
	b.WriteByte(')')
	return next
}

// CheckTyped verifies the structural invariants: the encoding is a
// complete tree, the root returns TypeOutput and every primitive's
// children match its declared input types positionally.
func (ind *Individual) CheckTyped() error {
	if len(ind.Nodes) == 0 {
		return errors.New(errors.ValidationFailed, "empty individual")
	}
	if ind.Nodes[0].ReturnType() != TypeOutput {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "root does not return the pipeline-output type"),
			errors.Fields{"got": string(ind.Nodes[0].ReturnType())})
	}
	end, err := ind.checkSubtree(0)
	if err != nil {
		return err
	}
	if end != len(ind.Nodes) {
		return errors.New(errors.ValidationFailed, "trailing nodes after complete tree")
	}
	return nil
}

func (ind *Individual) checkSubtree(pos int) (int, error) {
	if pos >= len(ind.Nodes) {
		return 0, errors.New(errors.ValidationFailed, "truncated prefix encoding")
	}
	n := ind.Nodes[pos]
	if n.IsTerminal() {
		return pos + 1, nil
	}
	next := pos + 1
	for i, want := range n.Primitive.InputTypes {
		if next >= len(ind.Nodes) {
			return 0, errors.New(errors.ValidationFailed, "truncated prefix encoding")
		}
		got := ind.Nodes[next].ReturnType()
		if got != want {
			return 0, errors.WithFields(
				errors.New(errors.ValidationFailed, "child type mismatch"),
				errors.Fields{"primitive": n.Primitive.Name, "slot": i, "want": string(want), "got": string(got)})
		}
		var err error
		next, err = ind.checkSubtree(next)
		if err != nil {
			return 0, err
		}
	}
	return next, nil
}
