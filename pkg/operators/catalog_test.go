package operators_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/evopipe/evopipe/internal/testutil"
	"github.com/evopipe/evopipe/pkg/gp"
	"github.com/evopipe/evopipe/pkg/operators"
)

func TestDomainUnmarshalList(t *testing.T) {
	var d operators.Domain
	require.NoError(t, yaml.Unmarshal([]byte(`[1, 2, 3]`), &d))
	assert.Equal(t, []interface{}{1, 2, 3}, d.Values)

	require.NoError(t, yaml.Unmarshal([]byte(`["uniform", "distance"]`), &d))
	assert.Equal(t, []interface{}{"uniform", "distance"}, d.Values)
}

func TestDomainUnmarshalRange(t *testing.T) {
	var d operators.Domain
	require.NoError(t, yaml.Unmarshal([]byte(`{low: 1, high: 7, step: 2}`), &d))
	assert.Equal(t, []interface{}{1, 3, 5, 7}, d.Values)

	require.NoError(t, yaml.Unmarshal([]byte(`{low: 0.25, high: 1.0, step: 0.25}`), &d))
	require.Len(t, d.Values, 4)
	assert.InDelta(t, 0.25, d.Values[0].(float64), 1e-12)
	assert.InDelta(t, 1.0, d.Values[3].(float64), 1e-12)

	assert.Error(t, yaml.Unmarshal([]byte(`{low: 5, high: 1, step: 1}`), &d))
	assert.Error(t, yaml.Unmarshal([]byte(`{low: 1, high: 5, step: 0}`), &d))
	assert.Error(t, yaml.Unmarshal([]byte(`"scalar"`), &d))
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
GaussianNB: {}
Binarizer:
  threshold: [0.0, 0.5, 1.0]
KNeighborsClassifier:
  n_neighbors: {low: 1, high: 9, step: 2}
  weights: [uniform, distance]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cat, err := operators.LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, cat, 3)
	assert.Len(t, cat["KNeighborsClassifier"]["n_neighbors"].Values, 5)
}

func TestLoadCatalogRejectsUnknownOperator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("RandomForest: {}\n"), 0o644))
	_, err := operators.LoadCatalog(path)
	assert.Error(t, err)
}

func TestCatalogPresets(t *testing.T) {
	for _, task := range []operators.Task{operators.TaskClassification, operators.TaskRegression} {
		for _, preset := range []string{"default", "light", ""} {
			cat, err := operators.CatalogPreset(preset, task)
			require.NoError(t, err, "%s/%s", preset, task)
			require.NoError(t, cat.Validate())
			_, err = operators.BuildPrimitiveSet(cat, task)
			require.NoError(t, err, "%s/%s", preset, task)
		}
	}
	_, err := operators.CatalogPreset("huge", operators.TaskClassification)
	assert.Error(t, err)
}

func TestBuildPrimitiveSetRejectsWrongTask(t *testing.T) {
	cat := operators.Catalog{"GaussianNB": {}}
	_, err := operators.BuildPrimitiveSet(cat, operators.TaskRegression)
	assert.Error(t, err, "classifier in a regression catalog")

	cat = operators.Catalog{"LinearRegression": {}}
	_, err = operators.BuildPrimitiveSet(cat, operators.TaskClassification)
	assert.Error(t, err, "regressor in a classification catalog")
}

func TestTinyCatalogGeneratesValidTrees(t *testing.T) {
	ps := testutil.TinyPSet(t)
	g, err := gp.NewGenerator(ps, 1, 3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(21))
	for i := 0; i < 100; i++ {
		ind := g.Generate(rng, 0)
		require.NoError(t, ind.CheckTyped())
		assert.Equal(t, gp.TypeOutput, ind.Nodes[0].ReturnType())
		assert.GreaterOrEqual(t, ind.OperatorCount(), 1)
	}
}

func TestBuildPrimitiveSetRegistersCombiner(t *testing.T) {
	cat := operators.Catalog{"GaussianNB": {}, "StandardScaler": {}}
	ps, err := operators.BuildPrimitiveSet(cat, operators.TaskClassification)
	require.NoError(t, err)

	kind, ok := ps.Kind(operators.CombinerName)
	require.True(t, ok)
	assert.Equal(t, gp.KindCombiner, kind)
	assert.NotEmpty(t, ps.PrimitivesFor(gp.TypeOutput))
}
