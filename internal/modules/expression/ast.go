package expression

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// NodeType represents the kind of AST node
type NodeType int

const (
	NodeTypeConstant NodeType = iota
	NodeTypeField
	NodeTypeUnary
	NodeTypeBinary
	NodeTypeCall
)

// Operator represents a unary or binary operator
type Operator string

const (
	OpAdd      Operator = "+"
	OpSubtract Operator = "-"
	OpMultiply Operator = "*"
	OpDivide   Operator = "/"
	OpModulo   Operator = "%"
	OpEqual    Operator = "=="
	OpNotEqual Operator = "!="
	OpLess     Operator = "<"
	OpLessEq   Operator = "<="
	OpGreater  Operator = ">"
	OpGreatEq  Operator = ">="
	OpAnd      Operator = "and"
	OpOr       Operator = "or"
	OpNot      Operator = "not"
	OpNegate   Operator = "neg"
)

var (
	// ErrUnknownField is returned when a field path does not resolve
	ErrUnknownField = errors.New("unknown field")
	// ErrTypeMismatch is returned when an operator gets operands of the wrong type
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrDivisionByZero is returned for x/0 and x%0
	ErrDivisionByZero = errors.New("division by zero")
	// ErrNotFinite is returned when arithmetic yields NaN or Inf
	ErrNotFinite = errors.New("non-finite result")
)

// Scope resolves dotted field paths during evaluation
type Scope interface {
	Lookup(path []string) (Value, error)
}

// Node is one node of a parsed expression
type Node struct {
	Type  NodeType
	Op    Operator
	Value Value    // NodeTypeConstant
	Path  []string // NodeTypeField
	Name  string   // NodeTypeCall
	Left  *Node
	Right *Node
	Args  []*Node
}

// Evaluate computes the node's value against scope
func (n *Node) Evaluate(scope Scope) (Value, error) {
	switch n.Type {
	case NodeTypeConstant:
		return n.Value, nil

	case NodeTypeField:
		v, err := scope.Lookup(n.Path)
		if err != nil {
			return nil, err
		}
		return normalize(v), nil

	case NodeTypeUnary:
		operand, err := n.Left.Evaluate(scope)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case OpNot:
			return !Truthy(operand), nil
		case OpNegate:
			x, ok := toNumber(operand)
			if !ok {
				return nil, fmt.Errorf("%w: cannot negate %s", ErrTypeMismatch, typeName(operand))
			}
			return -x, nil
		}
		return nil, fmt.Errorf("unknown unary operator %q", n.Op)

	case NodeTypeBinary:
		return n.evaluateBinary(scope)

	case NodeTypeCall:
		return callFunction(n, scope)
	}

	return nil, fmt.Errorf("unknown node type %d", n.Type)
}

func (n *Node) evaluateBinary(scope Scope) (Value, error) {
	left, err := n.Left.Evaluate(scope)
	if err != nil {
		return nil, err
	}

	// Boolean combinators short-circuit
	switch n.Op {
	case OpAnd:
		if !Truthy(left) {
			return false, nil
		}
		right, err := n.Right.Evaluate(scope)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	case OpOr:
		if Truthy(left) {
			return true, nil
		}
		right, err := n.Right.Evaluate(scope)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	}

	right, err := n.Right.Evaluate(scope)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case OpEqual:
		return valuesEqual(left, right), nil
	case OpNotEqual:
		return !valuesEqual(left, right), nil
	case OpLess, OpLessEq, OpGreater, OpGreatEq:
		return compare(n.Op, left, right)
	case OpAdd:
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
	}

	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, typeName(left), n.Op, typeName(right))
	}

	var result float64
	switch n.Op {
	case OpAdd:
		result = l + r
	case OpSubtract:
		result = l - r
	case OpMultiply:
		result = l * r
	case OpDivide:
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		result = l / r
	case OpModulo:
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		result = math.Mod(l, r)
	default:
		return nil, fmt.Errorf("unknown binary operator %q", n.Op)
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, ErrNotFinite
	}
	return result, nil
}

func valuesEqual(a, b Value) bool {
	if an, ok := toNumber(a); ok {
		bn, ok := toNumber(b)
		return ok && an == bn
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

func compare(op Operator, a, b Value) (Value, error) {
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			switch op {
			case OpLess:
				return an < bn, nil
			case OpLessEq:
				return an <= bn, nil
			case OpGreater:
				return an > bn, nil
			default:
				return an >= bn, nil
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			c := strings.Compare(as, bs)
			switch op {
			case OpLess:
				return c < 0, nil
			case OpLessEq:
				return c <= 0, nil
			case OpGreater:
				return c > 0, nil
			default:
				return c >= 0, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: cannot compare %s %s %s", ErrTypeMismatch, typeName(a), op, typeName(b))
}

// String renders the node back to expression syntax
func (n *Node) String() string {
	switch n.Type {
	case NodeTypeConstant:
		return formatValue(n.Value)
	case NodeTypeField:
		return strings.Join(n.Path, ".")
	case NodeTypeUnary:
		if n.Op == OpNegate {
			return "-" + n.Left.String()
		}
		return "not " + n.Left.String()
	case NodeTypeBinary:
		return "(" + n.Left.String() + " " + string(n.Op) + " " + n.Right.String() + ")"
	case NodeTypeCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = a.String()
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	}
	return "?"
}
