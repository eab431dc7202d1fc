package gp

import (
	"strconv"
)

// OperatorKind categorizes registered operators. The kind decides
// root-eligibility and how the evaluator materializes the node.
type OperatorKind int

const (
	KindClassifier OperatorKind = iota
	KindRegressor
	KindTransformer
	KindSelector
	KindCombiner
)

func (k OperatorKind) String() string {
	switch k {
	case KindClassifier:
		return "Classifier"
	case KindRegressor:
		return "Regressor"
	case KindTransformer:
		return "Transformer"
	case KindSelector:
		return "Selector"
	case KindCombiner:
		return "Combiner"
	default:
		return "Unknown"
	}
}

// RootEligible reports whether operators of this kind may sit at the
// tree root. Estimators produce the pipeline output; transformers and
// selectors only produce intermediate matrices.
func (k OperatorKind) RootEligible() bool {
	return k == KindClassifier || k == KindRegressor
}

// Primitive is an immutable operator descriptor placed at interior
// tree positions. Root-eligible operators are registered twice: once
// returning TypeOutput (tree root) and once returning TypeData so
// they can feed another estimator as a stacked feature generator.
type Primitive struct {
	Name       string // qualified operator name, e.g. "KNeighborsClassifier"
	Kind       OperatorKind
	InputTypes []TypeTag
	ReturnType TypeTag
	Root       bool // true only for the TypeOutput registration
}

// Arity returns the number of typed children the primitive expects.
func (p *Primitive) Arity() int {
	return len(p.InputTypes)
}

// Terminal is a leaf node: either the data-input terminal or one
// concrete hyperparameter value bound to a single operator parameter.
type Terminal struct {
	Type  TypeTag
	Op    string      // owning operator, empty for the data terminal
	Param string      // parameter name, empty for the data terminal
	Value interface{} // concrete value, nil for the data terminal
}

// DataTerminal is the leaf denoting the original feature matrix.
var DataTerminal = &Terminal{Type: TypeData}

// Label renders the terminal in canonical-string form.
func (t *Terminal) Label() string {
	if t.Param == "" {
		return "input_matrix"
	}
	return t.Op + "__" + t.Param + "=" + FormatValue(t.Value)
}

// FormatValue renders a hyperparameter value for canonical strings.
// The rendering must be stable: it is part of the cache key.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return "?"
	}
}

// Node is one slot in the prefix encoding: exactly one of Primitive or
// Terminal is set.
type Node struct {
	Primitive *Primitive
	Terminal  *Terminal
}

// IsTerminal reports whether the node is a leaf.
func (n Node) IsTerminal() bool {
	return n.Terminal != nil
}

// Arity returns the node's child count; terminals have zero.
func (n Node) Arity() int {
	if n.Primitive != nil {
		return n.Primitive.Arity()
	}
	return 0
}

// ReturnType returns the type tag the node produces.
func (n Node) ReturnType() TypeTag {
	if n.Primitive != nil {
		return n.Primitive.ReturnType
	}
	return n.Terminal.Type
}

func primitiveNode(p *Primitive) Node {
	return Node{Primitive: p}
}

func terminalNode(t *Terminal) Node {
	return Node{Terminal: t}
}
