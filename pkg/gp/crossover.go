package gp

import (
	"math/rand"
)

// Crossover performs typed one-point subtree exchange. A pair of
// positions is accepted only when both subtrees produce the same type,
// which keeps both children well-typed by construction. When no
// compatible pair is found within MaxAttempts, the parents are
// returned unchanged instead of failing the generation.
type Crossover struct {
	MaxAttempts int
	MaxHeight   int // reject children deeper than this to bound bloat
}

// Apply returns two offspring of the given parents. The parents are
// never modified.
func (c *Crossover) Apply(rng *rand.Rand, p1, p2 *Individual, generation int) (*Individual, *Individual) {
	child1 := p1.Clone(generation)
	child2 := p2.Clone(generation)

	if len(child1.Nodes) < 2 || len(child2.Nodes) < 2 {
		// Single-node trees have no swappable point below the root.
		return child1, child2
	}

	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		// Exclude the root: swapping whole trees is not a crossover.
		i := 1 + rng.Intn(len(child1.Nodes)-1)
		j := 1 + rng.Intn(len(child2.Nodes)-1)

		if child1.Nodes[i].ReturnType() != child2.Nodes[j].ReturnType() {
			continue
		}

		iStart, iEnd := child1.SubtreeRange(i)
		jStart, jEnd := child2.SubtreeRange(j)

		n1 := spliceNodes(child1.Nodes, iStart, iEnd, child2.Nodes[jStart:jEnd])
		n2 := spliceNodes(child2.Nodes, jStart, jEnd, child1.Nodes[iStart:iEnd])

		o1 := &Individual{ID: child1.ID, Nodes: n1, Generation: generation}
		o2 := &Individual{ID: child2.ID, Nodes: n2, Generation: generation}
		if c.MaxHeight > 0 && (o1.Depth() > c.MaxHeight || o2.Depth() > c.MaxHeight) {
			continue
		}
		return o1, o2
	}

	return child1, child2
}

// spliceNodes returns a new slice with [start, end) replaced by repl.
func spliceNodes(nodes []Node, start, end int, repl []Node) []Node {
	out := make([]Node, 0, len(nodes)-(end-start)+len(repl))
	out = append(out, nodes[:start]...)
	out = append(out, repl...)
	out = append(out, nodes[end:]...)
	return out
}
