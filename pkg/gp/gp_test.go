package gp_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evopipe/evopipe/pkg/gp"
)

func testPSet(t *testing.T) *gp.PrimitiveSet {
	t.Helper()
	ps := gp.NewPrimitiveSet()
	require.NoError(t, ps.RegisterOperator("ClfA", gp.KindClassifier, nil))
	require.NoError(t, ps.RegisterOperator("ClfB", gp.KindClassifier, map[string][]interface{}{
		"k": {1, 3, 5},
	}))
	require.NoError(t, ps.RegisterOperator("TransX", gp.KindTransformer, map[string][]interface{}{
		"threshold": {0.0, 0.5},
	}))
	require.NoError(t, ps.RegisterCombiner("CombineDFs"))
	require.NoError(t, ps.Validate())
	return ps
}

// newScored builds a minimal one-operator individual carrying the given
// fitness, for selection and archive tests.
func newScored(name string, complexity, quality float64) *gp.Individual {
	prim := &gp.Primitive{
		Name:       name,
		Kind:       gp.KindClassifier,
		InputTypes: []gp.TypeTag{gp.TypeData},
		ReturnType: gp.TypeOutput,
		Root:       true,
	}
	ind := gp.NewIndividual([]gp.Node{
		{Primitive: prim},
		{Terminal: gp.DataTerminal},
	}, 0)
	ind.SetFitness(gp.Fitness{Complexity: complexity, Quality: quality})
	return ind
}

func TestRegisterOperatorDualRegistration(t *testing.T) {
	ps := testPSet(t)

	rootNames := map[string]bool{}
	for _, p := range ps.PrimitivesFor(gp.TypeOutput) {
		rootNames[p.Name] = true
		assert.True(t, p.Root)
	}
	assert.True(t, rootNames["ClfA"])
	assert.True(t, rootNames["ClfB"])
	assert.False(t, rootNames["TransX"], "transformers must not be root-eligible")

	dataNames := map[string]bool{}
	for _, p := range ps.PrimitivesFor(gp.TypeData) {
		dataNames[p.Name] = true
	}
	// Estimators double as stacked feature generators.
	assert.True(t, dataNames["ClfA"])
	assert.True(t, dataNames["TransX"])
	assert.True(t, dataNames["CombineDFs"])
}

func TestRegisterOperatorRejectsDuplicates(t *testing.T) {
	ps := gp.NewPrimitiveSet()
	require.NoError(t, ps.RegisterOperator("ClfA", gp.KindClassifier, nil))
	assert.Error(t, ps.RegisterOperator("ClfA", gp.KindClassifier, nil))
}

func TestValidateRequiresRootOperator(t *testing.T) {
	ps := gp.NewPrimitiveSet()
	require.NoError(t, ps.RegisterOperator("TransX", gp.KindTransformer, nil))
	assert.Error(t, ps.Validate())
}

func TestCanonicalString(t *testing.T) {
	ps := testPSet(t)

	var clfB *gp.Primitive
	for _, p := range ps.PrimitivesFor(gp.TypeOutput) {
		if p.Name == "ClfB" {
			clfB = p
		}
	}
	require.NotNil(t, clfB)

	kTerm := ps.TerminalsFor(gp.ParamTypeTag("ClfB", "k"))[1]
	ind := gp.NewIndividual([]gp.Node{
		{Primitive: clfB},
		{Terminal: gp.DataTerminal},
		{Terminal: kTerm},
	}, 0)

	assert.Equal(t, "ClfB(input_matrix, ClfB__k=3)", ind.String())
	assert.NoError(t, ind.CheckTyped())
	assert.Equal(t, 1, ind.OperatorCount())
	assert.Equal(t, 1, ind.Depth())
}

func TestGeneratorProducesTypedTrees(t *testing.T) {
	ps := testPSet(t)
	g, err := gp.NewGenerator(ps, 1, 3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		ind := g.Generate(rng, 0)
		require.NoError(t, ind.CheckTyped(), "tree %d: %s", i, ind)
		d := ind.Depth()
		assert.GreaterOrEqual(t, d, 1)
		assert.LessOrEqual(t, d, 3)
	}
}

func TestGeneratorDeterminism(t *testing.T) {
	ps := testPSet(t)
	g, err := gp.NewGenerator(ps, 1, 3)
	require.NoError(t, err)

	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		assert.Equal(t, g.Generate(a, 0).String(), g.Generate(b, 0).String())
	}
}

func TestSubtreeRange(t *testing.T) {
	ps := testPSet(t)
	g, err := gp.NewGenerator(ps, 1, 3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		ind := g.Generate(rng, 0)
		start, end := ind.SubtreeRange(0)
		assert.Equal(t, 0, start)
		assert.Equal(t, len(ind.Nodes), end, "root subtree must span the whole encoding")
	}
}

func TestCloneGetsNewIdentityAndClearsFitness(t *testing.T) {
	ind := newScored("ClfA", 1, 0.9)
	clone := ind.Clone(3)
	assert.NotEqual(t, ind.ID, clone.ID)
	assert.Nil(t, clone.Fitness)
	assert.Equal(t, 3, clone.Generation)
	assert.Equal(t, ind.String(), clone.String())
}

func TestCrossoverPreservesTyping(t *testing.T) {
	ps := testPSet(t)
	g, err := gp.NewGenerator(ps, 1, 3)
	require.NoError(t, err)
	cx := &gp.Crossover{MaxAttempts: 20, MaxHeight: 17}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		p1 := g.Generate(rng, 0)
		p2 := g.Generate(rng, 0)
		c1, c2 := cx.Apply(rng, p1, p2, 1)
		require.NoError(t, c1.CheckTyped(), "child1 of %s x %s", p1, p2)
		require.NoError(t, c2.CheckTyped(), "child2 of %s x %s", p1, p2)
		assert.LessOrEqual(t, c1.Depth(), 17)
		assert.LessOrEqual(t, c2.Depth(), 17)
	}
}

func TestCrossoverDoesNotModifyParents(t *testing.T) {
	ps := testPSet(t)
	g, err := gp.NewGenerator(ps, 1, 3)
	require.NoError(t, err)
	cx := &gp.Crossover{MaxAttempts: 20, MaxHeight: 17}

	rng := rand.New(rand.NewSource(5))
	p1 := g.Generate(rng, 0)
	p2 := g.Generate(rng, 0)
	s1, s2 := p1.String(), p2.String()
	for i := 0; i < 20; i++ {
		cx.Apply(rng, p1, p2, 1)
	}
	assert.Equal(t, s1, p1.String())
	assert.Equal(t, s2, p2.String())
}

func TestMutationPreservesTypingAndRoot(t *testing.T) {
	ps := testPSet(t)
	g, err := gp.NewGenerator(ps, 1, 3)
	require.NoError(t, err)
	mut := &gp.Mutator{Gen: g, MaxAttempts: 20, MaxHeight: 17}

	rng := rand.New(rand.NewSource(13))
	for i := 0; i < 300; i++ {
		parent := g.Generate(rng, 0)
		child := mut.Mutate(rng, parent, 1)
		require.NoError(t, child.CheckTyped(), "mutant of %s: %s", parent, child)
		assert.Equal(t, gp.TypeOutput, child.Nodes[0].ReturnType())
		assert.LessOrEqual(t, child.Depth(), 17)
	}
}

func TestFitnessDominates(t *testing.T) {
	a := gp.Fitness{Complexity: 1, Quality: 0.9}
	b := gp.Fitness{Complexity: 2, Quality: 0.8}
	c := gp.Fitness{Complexity: 2, Quality: 0.95}

	assert.True(t, a.Dominates(b))
	assert.False(t, b.Dominates(a))
	assert.False(t, a.Dominates(c), "trade-off pair must not dominate")
	assert.False(t, c.Dominates(a))
	assert.False(t, a.Dominates(a), "equal fitness must not dominate itself")
}

func TestFailedFitness(t *testing.T) {
	f := gp.FailedFitness(3)
	assert.True(t, f.Failed())
	assert.True(t, math.IsInf(f.Quality, -1))
	assert.False(t, gp.Fitness{Complexity: 3, Quality: 0}.Failed())
}

func TestSelectNSGA2KeepsFirstFront(t *testing.T) {
	front1 := []*gp.Individual{
		newScored("A", 1, 0.7),
		newScored("B", 2, 0.8),
		newScored("C", 3, 0.9),
	}
	dominated := []*gp.Individual{
		newScored("D", 3, 0.7),
		newScored("E", 4, 0.6),
	}
	all := append(append([]*gp.Individual{}, dominated...), front1...)

	got := gp.SelectNSGA2(all, 3)
	require.Len(t, got, 3)
	names := map[string]bool{}
	for _, ind := range got {
		names[ind.String()] = true
	}
	for _, ind := range front1 {
		assert.True(t, names[ind.String()], "first front member %s must survive", ind)
	}
}

func TestSelectNSGA2CrowdingPrefersBoundaries(t *testing.T) {
	// One front of four; the two boundary points have infinite crowding
	// distance and must survive a cut to two.
	front := []*gp.Individual{
		newScored("A", 1, 0.60),
		newScored("B", 2, 0.61), // crowded interior
		newScored("C", 3, 0.62), // crowded interior
		newScored("D", 9, 0.99),
	}
	got := gp.SelectNSGA2(front, 2)
	require.Len(t, got, 2)
	names := map[string]bool{}
	for _, ind := range got {
		names[ind.String()] = true
	}
	assert.True(t, names["A(input_matrix)"])
	assert.True(t, names["D(input_matrix)"])
}

func TestTournamentSelectPrefersDominator(t *testing.T) {
	strong := newScored("A", 1, 0.9)
	weak := newScored("B", 5, 0.1)
	pool := []*gp.Individual{strong, weak}

	rng := rand.New(rand.NewSource(1))
	dist := gp.PoolCrowding(pool)
	wins := 0
	for i := 0; i < 100; i++ {
		if gp.TournamentSelect(rng, pool, dist) == strong {
			wins++
		}
	}
	// strong loses only when both contenders are weak.
	assert.Greater(t, wins, 60)
}

func TestParetoArchive(t *testing.T) {
	arc := gp.NewParetoArchive()

	arc.Update([]*gp.Individual{newScored("A", 2, 0.8)})
	assert.Equal(t, 1, arc.Len())

	// Dominated newcomer is rejected.
	arc.Update([]*gp.Individual{newScored("B", 3, 0.7)})
	assert.Equal(t, 1, arc.Len())

	// Dominating newcomer evicts the old member.
	arc.Update([]*gp.Individual{newScored("C", 1, 0.9)})
	require.Equal(t, 1, arc.Len())
	assert.Equal(t, "C(input_matrix)", arc.Members()[0].String())

	// Trade-off joins the front.
	arc.Update([]*gp.Individual{newScored("D", 2, 0.95)})
	assert.Equal(t, 2, arc.Len())

	// Failed evaluations and duplicate strings never enter.
	failed := newScored("E", 1, 0)
	failed.SetFitness(gp.FailedFitness(1))
	arc.Update([]*gp.Individual{failed, newScored("D", 2, 0.95)})
	assert.Equal(t, 2, arc.Len())

	best := arc.Best()
	require.NotNil(t, best)
	assert.Equal(t, "D(input_matrix)", best.String())
}
