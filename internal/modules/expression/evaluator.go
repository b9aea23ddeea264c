// Package expression evaluates factor expressions against match records.
//
// Evaluation is fail-closed: parse errors, unknown fields and runtime
// errors all produce nil, which is falsy.
package expression

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/domain"
)

type compiled struct {
	node *Node
	err  error
}

// Evaluator parses and memoizes expression results per (match, expression)
type Evaluator struct {
	results *cache.Table[Value]
	log     zerolog.Logger

	mu       sync.RWMutex
	programs map[string]compiled
}

// NewEvaluator creates an evaluator whose results live in the layer's
// expression table
func NewEvaluator(layer *cache.Layer, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		results:  cache.Register[Value](layer, cache.TableExpression),
		log:      log.With().Str("component", "expression").Logger(),
		programs: make(map[string]compiled),
	}
}

// Compile returns the AST for expr, parsing it at most once. A parse
// failure is logged the first time it is seen.
func (e *Evaluator) Compile(expr string) (*Node, error) {
	e.mu.RLock()
	c, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return c.node, c.err
	}

	node, err := Parse(expr)

	e.mu.Lock()
	if existing, ok := e.programs[expr]; ok {
		e.mu.Unlock()
		return existing.node, existing.err
	}
	e.programs[expr] = compiled{node: node, err: err}
	e.mu.Unlock()

	if err != nil {
		e.log.Warn().Err(err).Str("expression", expr).Msg("Failed to parse expression")
	}
	return node, err
}

// Evaluate returns the value of expr for the record, or nil on any failure
func (e *Evaluator) Evaluate(record *domain.MatchRecord, expr string) Value {
	return e.results.GetOrCompute(record.Key+"|"+expr, func() Value {
		return e.evaluate(record, expr)
	})
}

// Satisfies reports whether expr is truthy for the record
func (e *Evaluator) Satisfies(record *domain.MatchRecord, expr string) bool {
	return Truthy(e.Evaluate(record, expr))
}

func (e *Evaluator) evaluate(record *domain.MatchRecord, expr string) Value {
	node, err := e.Compile(expr)
	if err != nil {
		return nil
	}

	v, err := node.Evaluate(NewMatchScope(record))
	if err != nil {
		e.log.Debug().
			Err(err).
			Str("expression", expr).
			Str("match", record.Key).
			Msg("Expression evaluation failed")
		return nil
	}
	return normalize(v)
}
