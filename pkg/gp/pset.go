package gp

import (
	"sort"

	"github.com/evopipe/evopipe/pkg/errors"
)

// PrimitiveSet is the immutable registry of primitives and terminals
// the grammar draws from. It is built once per configuration and
// shared read-only across the whole search, so no locking is needed
// after construction.
type PrimitiveSet struct {
	primitives map[TypeTag][]*Primitive
	terminals  map[TypeTag][]*Terminal
	names      map[string]OperatorKind // registered operator names
}

// NewPrimitiveSet creates an empty registry seeded with the data-input
// terminal.
func NewPrimitiveSet() *PrimitiveSet {
	ps := &PrimitiveSet{
		primitives: make(map[TypeTag][]*Primitive),
		terminals:  make(map[TypeTag][]*Terminal),
		names:      make(map[string]OperatorKind),
	}
	ps.terminals[TypeData] = []*Terminal{DataTerminal}
	return ps
}

// RegisterOperator wraps one operator descriptor into primitives and
// hyperparameter terminals. Parameter names are registered in sorted
// order so construction is deterministic regardless of map iteration.
// Root-eligible kinds are registered both as a root primitive
// (returning TypeOutput) and as a stacked, Data-returning primitive.
func (ps *PrimitiveSet) RegisterOperator(name string, kind OperatorKind, params map[string][]interface{}) error {
	if _, exists := ps.names[name]; exists {
		return errors.WithFields(
			errors.New(errors.InvalidConfig, "operator already registered"),
			errors.Fields{"operator": name})
	}

	paramNames := make([]string, 0, len(params))
	for p := range params {
		paramNames = append(paramNames, p)
	}
	sort.Strings(paramNames)

	inputs := []TypeTag{TypeData}
	for _, p := range paramNames {
		domain := params[p]
		if len(domain) == 0 {
			return errors.WithFields(
				errors.New(errors.InvalidConfig, "empty hyperparameter domain"),
				errors.Fields{"operator": name, "param": p})
		}
		tag := ParamTypeTag(name, p)
		for _, v := range domain {
			ps.terminals[tag] = append(ps.terminals[tag], &Terminal{
				Type:  tag,
				Op:    name,
				Param: p,
				Value: v,
			})
		}
		inputs = append(inputs, tag)
	}

	if kind.RootEligible() {
		ps.primitives[TypeOutput] = append(ps.primitives[TypeOutput], &Primitive{
			Name:       name,
			Kind:       kind,
			InputTypes: inputs,
			ReturnType: TypeOutput,
			Root:       true,
		})
	}
	// Every operator is also usable at interior Data positions;
	// estimators become stacked feature generators there.
	ps.primitives[TypeData] = append(ps.primitives[TypeData], &Primitive{
		Name:       name,
		Kind:       kind,
		InputTypes: inputs,
		ReturnType: TypeData,
	})

	ps.names[name] = kind
	return nil
}

// RegisterCombiner adds the branching primitive: two Data children
// concatenated column-wise into one Data output.
func (ps *PrimitiveSet) RegisterCombiner(name string) error {
	if _, exists := ps.names[name]; exists {
		return errors.WithFields(
			errors.New(errors.InvalidConfig, "operator already registered"),
			errors.Fields{"operator": name})
	}
	ps.primitives[TypeData] = append(ps.primitives[TypeData], &Primitive{
		Name:       name,
		Kind:       KindCombiner,
		InputTypes: []TypeTag{TypeData, TypeData},
		ReturnType: TypeData,
	})
	ps.names[name] = KindCombiner
	return nil
}

// Validate checks the registry can actually produce trees: at least
// one root-eligible primitive must exist.
func (ps *PrimitiveSet) Validate() error {
	if len(ps.primitives[TypeOutput]) == 0 {
		return errors.New(errors.InvalidConfig, "no root-eligible operator registered")
	}
	return nil
}

// PrimitivesFor returns the primitives producing the given type.
func (ps *PrimitiveSet) PrimitivesFor(t TypeTag) []*Primitive {
	return ps.primitives[t]
}

// TerminalsFor returns the terminals of the given type.
func (ps *PrimitiveSet) TerminalsFor(t TypeTag) []*Terminal {
	return ps.terminals[t]
}

// Kind looks up the registered kind of an operator name.
func (ps *PrimitiveSet) Kind(name string) (OperatorKind, bool) {
	k, ok := ps.names[name]
	return k, ok
}

// OperatorNames returns all registered operator names, sorted.
func (ps *PrimitiveSet) OperatorNames() []string {
	out := make([]string, 0, len(ps.names))
	for n := range ps.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
