package expression

import (
	"errors"
	"fmt"
	"math"
)

type numericFunc struct {
	minArgs int
	maxArgs int // -1 for variadic
	fn      func(args []float64) (float64, error)
}

var numericFunctions = map[string]numericFunc{
	"abs":   {1, 1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"floor": {1, 1, func(a []float64) (float64, error) { return math.Floor(a[0]), nil }},
	"ceil":  {1, 1, func(a []float64) (float64, error) { return math.Ceil(a[0]), nil }},
	"exp":   {1, 1, func(a []float64) (float64, error) { return math.Exp(a[0]), nil }},
	"sqrt": {1, 1, func(a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, fmt.Errorf("sqrt of negative value %g", a[0])
		}
		return math.Sqrt(a[0]), nil
	}},
	"log": {1, 1, func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, fmt.Errorf("log of non-positive value %g", a[0])
		}
		return math.Log(a[0]), nil
	}},
	"pow": {2, 2, func(a []float64) (float64, error) { return math.Pow(a[0], a[1]), nil }},
	"round": {1, 2, func(a []float64) (float64, error) {
		if len(a) == 1 {
			return math.Round(a[0]), nil
		}
		scale := math.Pow(10, math.Trunc(a[1]))
		return math.Round(a[0]*scale) / scale, nil
	}},
	"clamp": {3, 3, func(a []float64) (float64, error) {
		return math.Max(a[1], math.Min(a[2], a[0])), nil
	}},
	"min": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
}

// special forms see their arguments unevaluated
var specialForms = map[string]bool{
	"if":       true,
	"coalesce": true,
	"exists":   true,
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func isKnownFunction(name string) bool {
	_, ok := numericFunctions[name]
	return ok || specialForms[name]
}

func callFunction(n *Node, scope Scope) (Value, error) {
	switch n.Name {
	case "if":
		if len(n.Args) != 3 {
			return nil, fmt.Errorf("if expects 3 arguments, got %d", len(n.Args))
		}
		cond, err := n.Args[0].Evaluate(scope)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return n.Args[1].Evaluate(scope)
		}
		return n.Args[2].Evaluate(scope)

	case "coalesce":
		for _, arg := range n.Args {
			v, err := arg.Evaluate(scope)
			if err != nil {
				if errors.Is(err, ErrUnknownField) {
					continue
				}
				return nil, err
			}
			if v != nil {
				return v, nil
			}
		}
		return nil, nil

	case "exists":
		if len(n.Args) != 1 || n.Args[0].Type != NodeTypeField {
			return nil, fmt.Errorf("exists expects a single field reference")
		}
		v, err := scope.Lookup(n.Args[0].Path)
		if err != nil {
			if errors.Is(err, ErrUnknownField) {
				return false, nil
			}
			return nil, err
		}
		return v != nil, nil
	}

	def, ok := numericFunctions[n.Name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", n.Name)
	}
	if len(n.Args) < def.minArgs || (def.maxArgs >= 0 && len(n.Args) > def.maxArgs) {
		return nil, fmt.Errorf("%s: wrong number of arguments (%d)", n.Name, len(n.Args))
	}

	args := make([]float64, len(n.Args))
	for i, arg := range n.Args {
		v, err := arg.Evaluate(scope)
		if err != nil {
			return nil, err
		}
		x, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s argument %d is %s", ErrTypeMismatch, n.Name, i+1, typeName(v))
		}
		args[i] = x
	}

	result, err := def.fn(args)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, ErrNotFinite
	}
	return result, nil
}
