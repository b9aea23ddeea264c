// Package backtest runs a strategy through the filter, settlement and
// aggregation pipeline.
package backtest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ahlab/ahlab/internal/domain"
)

// ErrInvalidStrategy is returned when a factor set does not hold exactly one
// side and one size factor
var ErrInvalidStrategy = errors.New("invalid strategy")

// Strategy is one side rule, one stake rule and any number of predicates
type Strategy struct {
	Side       domain.FactorDefinition   `json:"side"`
	Size       domain.FactorDefinition   `json:"size"`
	Predicates []domain.FactorDefinition `json:"predicates"`
}

// StrategyFromFactors splits a flat factor set by role
func StrategyFromFactors(factors []domain.FactorDefinition) (Strategy, error) {
	var s Strategy
	var sides, sizes int
	for _, f := range factors {
		switch f.Role {
		case domain.RoleSide:
			s.Side = f
			sides++
		case domain.RoleSize:
			s.Size = f
			sizes++
		default:
			s.Predicates = append(s.Predicates, f)
		}
	}
	if sides != 1 || sizes != 1 {
		return Strategy{}, fmt.Errorf("%w: %d side and %d size factors", ErrInvalidStrategy, sides, sizes)
	}
	return s, nil
}

// Factors flattens the strategy back into one slice
func (s Strategy) Factors() []domain.FactorDefinition {
	out := make([]domain.FactorDefinition, 0, len(s.Predicates)+2)
	out = append(out, s.Side, s.Size)
	return append(out, s.Predicates...)
}

// Identity is the order-independent identity of the strategy's factor set
func (s Strategy) Identity() string {
	return domain.FactorSetIdentity(s.Factors())
}

// Labels lists category.key names sorted, for display
func (s Strategy) Labels() []string {
	factors := s.Factors()
	labels := make([]string, len(factors))
	for i, f := range factors {
		labels[i] = f.ID.String()
	}
	sort.Strings(labels)
	return labels
}
