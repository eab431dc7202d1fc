package operators

import (
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/evopipe/evopipe/pkg/errors"
	"github.com/evopipe/evopipe/pkg/gp"
)

// Domain is the finite set of values one hyperparameter may take. In
// YAML it is written either as an explicit list or as an inclusive
// numeric range {low, high, step} that gets expanded at load time.
type Domain struct {
	Values []interface{}
}

type domainRange struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
	Step float64 `yaml:"step"`
}

func (d *Domain) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var vals []interface{}
		if err := node.Decode(&vals); err != nil {
			return err
		}
		d.Values = normalizeValues(vals)
		return nil
	case yaml.MappingNode:
		var r domainRange
		if err := node.Decode(&r); err != nil {
			return err
		}
		vals, err := expandRange(r)
		if err != nil {
			return err
		}
		d.Values = vals
		return nil
	default:
		return errors.New(errors.InvalidConfig, "hyperparameter domain must be a list or a range mapping")
	}
}

func expandRange(r domainRange) ([]interface{}, error) {
	if r.Step <= 0 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "range step must be positive"),
			errors.Fields{"step": r.Step})
	}
	if r.High < r.Low {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "range high must not be below low"),
			errors.Fields{"low": r.Low, "high": r.High})
	}
	integral := isWhole(r.Low) && isWhole(r.High) && isWhole(r.Step)
	var out []interface{}
	for i := 0; ; i++ {
		v := r.Low + float64(i)*r.Step
		if v > r.High+1e-12 {
			break
		}
		if integral {
			out = append(out, int(math.Round(v)))
		} else {
			out = append(out, v)
		}
	}
	return out, nil
}

func isWhole(v float64) bool {
	return v == math.Trunc(v)
}

// normalizeValues collapses the YAML decoder's numeric types onto the
// ones FormatValue renders, keeping canonical strings stable.
func normalizeValues(vals []interface{}) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case int64:
			out[i] = int(x)
		case float32:
			out[i] = float64(x)
		default:
			out[i] = v
		}
	}
	return out
}

// Catalog maps operator names to their hyperparameter domains. It is
// the single source of truth for which operators a search may use.
type Catalog map[string]map[string]Domain

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "reading catalog file")
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "parsing catalog yaml")
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Validate checks every catalog entry names an implemented operator
// and every domain is non-empty.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return errors.New(errors.InvalidConfig, "catalog is empty")
	}
	for name, params := range c {
		if _, err := KindOf(name); err != nil {
			return err
		}
		for p, d := range params {
			if len(d.Values) == 0 {
				return errors.WithFields(
					errors.New(errors.InvalidConfig, "empty hyperparameter domain"),
					errors.Fields{"operator": name, "param": p})
			}
		}
	}
	return nil
}

func listDomain(vals ...interface{}) Domain {
	return Domain{Values: vals}
}

func intRange(low, high, step int) Domain {
	var vals []interface{}
	for v := low; v <= high; v += step {
		vals = append(vals, v)
	}
	return Domain{Values: vals}
}

// DefaultCatalog returns the full built-in operator set for the task.
func DefaultCatalog(task Task) Catalog {
	shared := Catalog{
		"StandardScaler": {},
		"MinMaxScaler":   {},
		"ZeroCount":      {},
		"Binarizer": {
			"threshold": listDomain(0.0, 0.25, 0.5, 0.75, 1.0),
		},
		"PCA": {
			"n_components": listDomain(0.25, 0.5, 0.75, 1.0),
		},
		"VarianceThreshold": {
			"threshold": listDomain(0.0, 0.05, 0.1, 0.2),
		},
		"SelectPercentile": {
			"percentile": intRange(10, 100, 10),
		},
	}
	cat := Catalog{}
	for name, params := range shared {
		cat[name] = params
	}
	switch task {
	case TaskRegression:
		cat["LinearRegression"] = map[string]Domain{}
		cat["RidgeRegression"] = map[string]Domain{
			"alpha": listDomain(0.01, 0.1, 1.0, 10.0, 100.0),
		}
		cat["KNeighborsRegressor"] = map[string]Domain{
			"n_neighbors": intRange(1, 25, 2),
			"weights":     listDomain("uniform", "distance"),
			"p":           listDomain(1, 2),
		}
	default:
		cat["GaussianNB"] = map[string]Domain{}
		cat["LogisticRegression"] = map[string]Domain{
			"C": listDomain(0.01, 0.1, 0.5, 1.0, 5.0, 10.0, 25.0),
		}
		cat["KNeighborsClassifier"] = map[string]Domain{
			"n_neighbors": intRange(1, 25, 2),
			"weights":     listDomain("uniform", "distance"),
			"p":           listDomain(1, 2),
		}
	}
	return cat
}

// LightCatalog returns a reduced operator set with cheaper models and
// smaller domains, for quick runs on large data.
func LightCatalog(task Task) Catalog {
	cat := Catalog{
		"StandardScaler": {},
		"MinMaxScaler":   {},
		"Binarizer": {
			"threshold": listDomain(0.0, 0.5, 1.0),
		},
		"SelectPercentile": {
			"percentile": intRange(25, 100, 25),
		},
	}
	switch task {
	case TaskRegression:
		cat["LinearRegression"] = map[string]Domain{}
		cat["RidgeRegression"] = map[string]Domain{
			"alpha": listDomain(0.1, 1.0, 10.0),
		}
	default:
		cat["GaussianNB"] = map[string]Domain{}
		cat["LogisticRegression"] = map[string]Domain{
			"C": listDomain(0.1, 1.0, 10.0),
		}
	}
	return cat
}

// CatalogPreset resolves a preset name to its catalog.
func CatalogPreset(name string, task Task) (Catalog, error) {
	switch name {
	case "", "default":
		return DefaultCatalog(task), nil
	case "light":
		return LightCatalog(task), nil
	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfig, "unknown catalog preset"),
			errors.Fields{"preset": name})
	}
}

// BuildPrimitiveSet turns a catalog into the typed grammar the tree
// generator draws from. Estimators that do not match the task are
// rejected rather than silently dropped.
func BuildPrimitiveSet(cat Catalog, task Task) (*gp.PrimitiveSet, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cat))
	for name := range cat {
		names = append(names, name)
	}
	sort.Strings(names)

	ps := gp.NewPrimitiveSet()
	for _, name := range names {
		kind, err := KindOf(name)
		if err != nil {
			return nil, err
		}
		if kind == gp.KindClassifier && task != TaskClassification {
			return nil, errors.WithFields(
				errors.New(errors.InvalidConfig, "classifier in a regression catalog"),
				errors.Fields{"operator": name})
		}
		if kind == gp.KindRegressor && task != TaskRegression {
			return nil, errors.WithFields(
				errors.New(errors.InvalidConfig, "regressor in a classification catalog"),
				errors.Fields{"operator": name})
		}

		params := make(map[string][]interface{}, len(cat[name]))
		for p, d := range cat[name] {
			params[p] = d.Values
		}
		if err := ps.RegisterOperator(name, kind, params); err != nil {
			return nil, err
		}
	}
	if err := ps.RegisterCombiner(CombinerName); err != nil {
		return nil, err
	}
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps, nil
}
