// Package config defines the search configuration, its defaults and
// its validation rules.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/evopipe/evopipe/pkg/errors"
)

// Duration wraps time.Duration so YAML configs can say "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrap(err, errors.InvalidConfig, "parsing duration")
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds every knob of a pipeline search. The zero value is not
// usable; start from Default and override.
type Config struct {
	// PopulationSize is the number of individuals kept per generation.
	PopulationSize int `yaml:"population_size" validate:"gte=1"`

	// OffspringSize is the number of offspring produced per generation.
	OffspringSize int `yaml:"offspring_size" validate:"gte=1"`

	// Generations is the number of evolution iterations after the
	// initial population.
	Generations int `yaml:"generations" validate:"gte=0"`

	// MutationRate and CrossoverRate split offspring production; their
	// sum must not exceed 1, the remainder reproduces unchanged.
	MutationRate  float64 `yaml:"mutation_rate" validate:"gte=0,lte=1"`
	CrossoverRate float64 `yaml:"crossover_rate" validate:"gte=0,lte=1"`

	// CVFolds is the cross-validation fold count; 1 means a holdout
	// split instead.
	CVFolds int `yaml:"cv_folds" validate:"gte=1"`

	// Subsample is the fraction of training rows visible to the search.
	Subsample float64 `yaml:"subsample" validate:"gt=0,lte=1"`

	// Scoring names the registered score function; empty picks the
	// task default.
	Scoring string `yaml:"scoring"`

	// CatalogPreset picks the operator catalog ("default" or "light")
	// unless CatalogPath overrides it with a YAML file.
	CatalogPreset string `yaml:"catalog_preset"`
	CatalogPath   string `yaml:"catalog_path"`

	// MinTreeDepth and MaxTreeDepth bound freshly generated trees;
	// MaxHeight bounds trees produced by variation.
	MinTreeDepth int `yaml:"min_tree_depth" validate:"gte=1"`
	MaxTreeDepth int `yaml:"max_tree_depth" validate:"gte=1"`
	MaxHeight    int `yaml:"max_height" validate:"gte=1"`

	// Workers caps concurrent evaluations; 0 uses all CPUs.
	Workers int `yaml:"workers" validate:"gte=0"`

	// MaxTime bounds the whole search; checked at generation
	// boundaries. Zero disables.
	MaxTime Duration `yaml:"max_time" validate:"gte=0"`

	// EvalTimeout bounds a single pipeline evaluation. Zero disables.
	EvalTimeout Duration `yaml:"eval_timeout" validate:"gte=0"`

	// CachePath persists evaluations in SQLite; empty keeps them in
	// memory only.
	CachePath string `yaml:"cache_path"`

	// Seed makes the search deterministic for a fixed dataset and
	// worker-independent cache state.
	Seed int64 `yaml:"seed"`

	// WarmStart makes a second Fit call continue from the previous
	// population and archive instead of starting over.
	WarmStart bool `yaml:"warm_start"`

	// Verbosity: 0 quiet, 1 per-generation summary, 2 debug.
	Verbosity int `yaml:"verbosity" validate:"gte=0,lte=2"`
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		PopulationSize: 100,
		OffspringSize:  100,
		Generations:    100,
		MutationRate:   0.9,
		CrossoverRate:  0.1,
		CVFolds:        5,
		Subsample:      1.0,
		CatalogPreset:  "default",
		MinTreeDepth:   1,
		MaxTreeDepth:   3,
		MaxHeight:      17,
		Verbosity:      1,
	}
}

var validate = validator.New()

// Validate checks field ranges and the cross-field constraints the
// tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, errors.InvalidConfig, "invalid search configuration")
	}
	if c.MutationRate+c.CrossoverRate > 1.0 {
		return errors.WithFields(
			errors.New(errors.InvalidConfig, "mutation_rate + crossover_rate must not exceed 1"),
			errors.Fields{"mutation_rate": c.MutationRate, "crossover_rate": c.CrossoverRate})
	}
	if c.MinTreeDepth > c.MaxTreeDepth {
		return errors.WithFields(
			errors.New(errors.InvalidConfig, "min_tree_depth must not exceed max_tree_depth"),
			errors.Fields{"min": c.MinTreeDepth, "max": c.MaxTreeDepth})
	}
	if c.MaxTreeDepth > c.MaxHeight {
		return errors.WithFields(
			errors.New(errors.InvalidConfig, "max_tree_depth must not exceed max_height"),
			errors.Fields{"max_tree_depth": c.MaxTreeDepth, "max_height": c.MaxHeight})
	}
	return nil
}

// Load reads a YAML config file layered over Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, errors.InvalidConfig, "reading config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, errors.InvalidConfig, "parsing config yaml")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
