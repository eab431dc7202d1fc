package gp

import (
	"math/rand"
)

// Mutator implements the three mutation variants. Every variant
// preserves the root output type; a construction that fails the type
// check is rejected and retried, and after MaxAttempts the individual
// is returned unmodified rather than failing the generation.
type Mutator struct {
	Gen         *Generator
	MaxAttempts int
	MaxHeight   int
}

// Mutate applies one mutation variant chosen uniformly at random,
// matching how offspring variation samples the operators.
func (m *Mutator) Mutate(rng *rand.Rand, ind *Individual, generation int) *Individual {
	switch rng.Intn(3) {
	case 0:
		return m.NodeReplacement(rng, ind, generation)
	case 1:
		return m.Insert(rng, ind, generation)
	default:
		return m.Shrink(rng, ind, generation)
	}
}

// NodeReplacement swaps one node for a compatible alternative: a
// terminal for another terminal of the same type, or a primitive for a
// different primitive with the same return type, reusing type-matching
// children and regenerating the rest.
func (m *Mutator) NodeReplacement(rng *rand.Rand, ind *Individual, generation int) *Individual {
	for attempt := 0; attempt < m.MaxAttempts; attempt++ {
		child := ind.Clone(generation)
		pos := rng.Intn(len(child.Nodes))
		node := child.Nodes[pos]

		if node.IsTerminal() {
			terms := m.Gen.PSet.TerminalsFor(node.Terminal.Type)
			if len(terms) < 2 {
				continue // nothing else fits this slot
			}
			repl := terms[rng.Intn(len(terms))]
			if repl == node.Terminal {
				continue
			}
			child.Nodes[pos] = terminalNode(repl)
			if child.CheckTyped() == nil {
				return child
			}
			continue
		}

		prims := m.Gen.PSet.PrimitivesFor(node.Primitive.ReturnType)
		if len(prims) < 2 {
			continue
		}
		repl := prims[rng.Intn(len(prims))]
		if repl == node.Primitive {
			continue
		}

		rebuilt := m.replacePrimitive(rng, child, pos, repl)
		if rebuilt.CheckTyped() == nil {
			return rebuilt
		}
	}
	return ind.Clone(generation)
}

// replacePrimitive rebuilds the subtree at pos under a new primitive,
// keeping old child subtrees whose types match the new slots and
// growing fresh branches for the rest.
func (m *Mutator) replacePrimitive(rng *rand.Rand, ind *Individual, pos int, repl *Primitive) *Individual {
	old := ind.Nodes[pos].Primitive
	start, end := ind.SubtreeRange(pos)

	// Collect the old children as (type, nodes) pairs.
	type branch struct {
		typ   TypeTag
		nodes []Node
		used  bool
	}
	branches := make([]*branch, 0, old.Arity())
	childPos := pos + 1
	for range old.InputTypes {
		s, e := ind.SubtreeRange(childPos)
		branches = append(branches, &branch{
			typ:   ind.Nodes[s].ReturnType(),
			nodes: ind.Nodes[s:e],
		})
		childPos = e
	}

	sub := []Node{primitiveNode(repl)}
	for _, want := range repl.InputTypes {
		reused := false
		for _, br := range branches {
			if !br.used && br.typ == want {
				sub = append(sub, br.nodes...)
				br.used = true
				reused = true
				break
			}
		}
		if !reused {
			depth := m.Gen.MaxDepth // force a minimal branch
			sub = append(sub, m.Gen.GrowSubtree(rng, want, depth)...)
		}
	}

	return &Individual{
		ID:         ind.ID,
		Nodes:      spliceNodes(ind.Nodes, start, end, sub),
		Generation: ind.Generation,
	}
}

// Insert wraps a randomly chosen subtree with a new type-compatible
// primitive, feeding the original subtree into one of its slots and
// growing the remaining children.
func (m *Mutator) Insert(rng *rand.Rand, ind *Individual, generation int) *Individual {
	for attempt := 0; attempt < m.MaxAttempts; attempt++ {
		child := ind.Clone(generation)
		pos := rng.Intn(len(child.Nodes))
		typ := child.Nodes[pos].ReturnType()

		// Wrapper must produce the wrapped type and accept it somewhere.
		var candidates []*Primitive
		for _, p := range m.Gen.PSet.PrimitivesFor(typ) {
			for _, in := range p.InputTypes {
				if in == typ {
					candidates = append(candidates, p)
					break
				}
			}
		}
		if len(candidates) == 0 {
			continue
		}
		wrapper := candidates[rng.Intn(len(candidates))]

		var slots []int
		for i, in := range wrapper.InputTypes {
			if in == typ {
				slots = append(slots, i)
			}
		}
		slot := slots[rng.Intn(len(slots))]

		start, end := child.SubtreeRange(pos)
		original := child.Nodes[start:end]

		sub := []Node{primitiveNode(wrapper)}
		for i, in := range wrapper.InputTypes {
			if i == slot {
				sub = append(sub, original...)
				continue
			}
			sub = append(sub, m.Gen.GrowSubtree(rng, in, m.Gen.MaxDepth)...)
		}

		mutated := &Individual{
			ID:         child.ID,
			Nodes:      spliceNodes(child.Nodes, start, end, sub),
			Generation: generation,
		}
		if m.MaxHeight > 0 && mutated.Depth() > m.MaxHeight {
			continue
		}
		if mutated.CheckTyped() == nil {
			return mutated
		}
	}
	return ind.Clone(generation)
}

// Shrink replaces a randomly chosen primitive subtree with a terminal
// of the same type. Positions whose type has no terminal (the root,
// which returns the pipeline-output type) are never candidates, so the
// root type is preserved.
func (m *Mutator) Shrink(rng *rand.Rand, ind *Individual, generation int) *Individual {
	var candidates []int
	for i, n := range ind.Nodes {
		if !n.IsTerminal() && len(m.Gen.PSet.TerminalsFor(n.ReturnType())) > 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return ind.Clone(generation)
	}

	for attempt := 0; attempt < m.MaxAttempts; attempt++ {
		child := ind.Clone(generation)
		pos := candidates[rng.Intn(len(candidates))]
		terms := m.Gen.PSet.TerminalsFor(child.Nodes[pos].ReturnType())
		term := terms[rng.Intn(len(terms))]

		start, end := child.SubtreeRange(pos)
		mutated := &Individual{
			ID:         child.ID,
			Nodes:      spliceNodes(child.Nodes, start, end, []Node{terminalNode(term)}),
			Generation: generation,
		}
		if mutated.CheckTyped() == nil {
			return mutated
		}
	}
	return ind.Clone(generation)
}
