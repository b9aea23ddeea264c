package backtest

import (
	"fmt"

	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/factors"
)

// ResolveStrategy builds a strategy from catalog references. Each reference
// is a role|category|key identity or a category.key name.
func ResolveStrategy(catalog *factors.Catalog, side, size string, predicates []string) (Strategy, error) {
	if side == "" || size == "" {
		return Strategy{}, fmt.Errorf("%w: side and size are required", ErrInvalidStrategy)
	}

	defs := make([]domain.FactorDefinition, 0, len(predicates)+2)
	refs := append([]string{side, size}, predicates...)
	for i, ref := range refs {
		role := domain.RolePredicate
		switch i {
		case 0:
			role = domain.RoleSide
		case 1:
			role = domain.RoleSize
		}

		def, err := catalog.Resolve(ref, role)
		if err != nil {
			return Strategy{}, err
		}
		defs = append(defs, def)
	}
	return StrategyFromFactors(defs)
}
