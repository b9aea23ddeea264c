package optimizer

import (
	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/backtest"
)

// Genome is one candidate strategy: exactly one side factor, exactly one
// size factor and distinct predicates
type Genome struct {
	Factors   []domain.FactorDefinition
	Fitness   float64
	Evaluated bool
	Report    *backtest.Report
}

// Clone copies the factor list and marks the copy unevaluated
func (g *Genome) Clone() *Genome {
	factors := make([]domain.FactorDefinition, len(g.Factors))
	copy(factors, g.Factors)
	return &Genome{Factors: factors}
}

// Identity is the order-independent identity of the factor set
func (g *Genome) Identity() string {
	return domain.FactorSetIdentity(g.Factors)
}

// Identities lists each factor's role|category|key
func (g *Genome) Identities() []string {
	ids := make([]string, len(g.Factors))
	for i, f := range g.Factors {
		ids[i] = f.Identity()
	}
	return ids
}

// Predicates returns the predicate factors
func (g *Genome) Predicates() []domain.FactorDefinition {
	var out []domain.FactorDefinition
	for _, f := range g.Factors {
		if f.Role == domain.RolePredicate {
			out = append(out, f)
		}
	}
	return out
}

// Valid reports whether the structural invariant holds
func (g *Genome) Valid() bool {
	counts := domain.CountRoles(g.Factors)
	if counts[domain.RoleSide] != 1 || counts[domain.RoleSize] != 1 {
		return false
	}
	seen := make(map[string]bool, len(g.Factors))
	for _, f := range g.Factors {
		id := f.Identity()
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

// Labels lists category.key names for display
func (g *Genome) Labels() []string {
	labels := make([]string, len(g.Factors))
	for i, f := range g.Factors {
		labels[i] = f.ID.String()
	}
	return labels
}
