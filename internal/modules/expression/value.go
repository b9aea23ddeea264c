package expression

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is the result of evaluating an expression: float64, string, bool
// or nil.
type Value = any

// Truthy reports whether v counts as satisfied. Numbers are truthy when
// non-zero and not NaN, strings when non-empty; nil is falsy.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		if n, ok := toNumber(v); ok {
			return n != 0 && !math.IsNaN(n)
		}
		return false
	}
}

// AsNumber converts v to float64 when it holds a numeric value
func AsNumber(v Value) (float64, bool) {
	return toNumber(v)
}

// AsString returns v when it is a string
func AsString(v Value) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toNumber(v Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// normalize folds every numeric representation into float64 so equality
// and caching see a single type
func normalize(v Value) Value {
	if n, ok := toNumber(v); ok {
		return n
	}
	return v
}

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	default:
		if _, ok := toNumber(v); ok {
			return "number"
		}
		return fmt.Sprintf("%T", v)
	}
}

func formatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		if n, ok := toNumber(v); ok {
			return strconv.FormatFloat(n, 'g', -1, 64)
		}
		return fmt.Sprintf("%v", v)
	}
}
