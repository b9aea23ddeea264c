package optimizer

import (
	"github.com/ahlab/ahlab/internal/domain"
)

// repairResult tells what repair had to change. Roles is set only when the
// side/size invariant was broken; Changed covers duplicates and predicate
// count adjustments as well.
type repairResult struct {
	Roles   bool
	Changed bool
}

// repair restores the genome invariant: exactly one side factor, exactly
// one size factor, distinct identities and a predicate count within
// bounds.
func (o *operators) repair(g *Genome) repairResult {
	var result repairResult
	repaired := false

	var side, size []domain.FactorDefinition
	var preds []domain.FactorDefinition
	seen := make(map[string]bool, len(g.Factors))
	for _, f := range g.Factors {
		id := f.Identity()
		if seen[id] {
			repaired = true
			continue
		}
		seen[id] = true

		switch f.Role {
		case domain.RoleSide:
			side = append(side, f)
		case domain.RoleSize:
			size = append(size, f)
		default:
			preds = append(preds, f)
		}
	}

	if len(side) != 1 || len(size) != 1 {
		side = []domain.FactorDefinition{o.pick(o.pools.side)}
		size = []domain.FactorDefinition{o.pick(o.pools.size)}
		result.Roles = true
		repaired = true
	}

	minP, maxP := o.predicateBounds()
	for len(preds) > maxP {
		idx := o.rng.Intn(len(preds))
		preds = append(preds[:idx], preds[idx+1:]...)
		repaired = true
	}

	factors := make([]domain.FactorDefinition, 0, len(preds)+2)
	factors = append(factors, side[0], size[0])
	factors = append(factors, preds...)
	g.Factors = factors

	for len(g.Predicates()) < minP {
		candidates := o.unused(g, domain.RolePredicate)
		if len(candidates) == 0 {
			break
		}
		g.Factors = append(g.Factors, o.pick(candidates))
		repaired = true
	}

	if repaired {
		g.Evaluated = false
		g.Report = nil
	}
	result.Changed = repaired
	return result
}
