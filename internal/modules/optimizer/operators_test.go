package optimizer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/factors"
	testingpkg "github.com/ahlab/ahlab/internal/testing"
)

func newTestOperators(t *testing.T, cfg Config) (*operators, *factors.Catalog) {
	t.Helper()
	c := testingpkg.NewCatalogFixture()
	return &operators{
		cfg: cfg,
		rng: rand.New(rand.NewSource(1)),
		pools: pools{
			side:      c.Pool(domain.RoleSide),
			size:      c.Pool(domain.RoleSize),
			predicate: c.Pool(domain.RolePredicate),
		},
	}, c
}

func assertWithinBounds(t *testing.T, o *operators, g *Genome) {
	t.Helper()
	require.True(t, g.Valid(), "invalid genome %v", g.Labels())
	minP, maxP := o.predicateBounds()
	n := len(g.Predicates())
	assert.GreaterOrEqual(t, n, minP)
	assert.LessOrEqual(t, n, maxP)
}

func TestOperators_PreserveInvariant(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MutationRate = 1
	o, _ := newTestOperators(t, cfg)

	population := make([]*Genome, 20)
	for i := range population {
		population[i] = o.randomGenome()
		population[i].Fitness = float64(i)
		assertWithinBounds(t, o, population[i])
	}

	for i := 0; i < 500; i++ {
		child := o.crossover(o.tournament(population), o.tournament(population))
		require.True(t, child.Valid(), "crossover broke invariant: %v", child.Labels())

		o.mutate(child)
		require.True(t, child.Valid(), "mutation broke invariant: %v", child.Labels())

		assert.False(t, o.repair(child).Roles, "repair redrew roles for %v", child.Labels())
		assertWithinBounds(t, o, child)
	}
}

func TestOperators_ReplaceKeepsRole(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MutationRate = 1
	cfg.MinFactors = 1
	cfg.MaxFactors = 1
	o, _ := newTestOperators(t, cfg)

	replaced := map[domain.Role]int{}
	for i := 0; i < 300; i++ {
		g := o.randomGenome()
		before := g.Clone()
		require.True(t, o.mutate(g))
		require.True(t, g.Valid(), "invalid genome %v", g.Labels())
		require.Len(t, g.Factors, len(before.Factors))

		changed := 0
		for j := range g.Factors {
			if g.Factors[j].Identity() == before.Factors[j].Identity() {
				continue
			}
			changed++
			assert.Equal(t, before.Factors[j].Role, g.Factors[j].Role)
			replaced[g.Factors[j].Role]++
		}
		assert.Equal(t, 1, changed)
	}

	assert.Positive(t, replaced[domain.RoleSide])
	assert.Positive(t, replaced[domain.RoleSize])
	assert.Positive(t, replaced[domain.RolePredicate])
}

func TestOperators_PredicateBoundsClampToPool(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFactors = 9
	cfg.MaxFactors = 12
	o, _ := newTestOperators(t, cfg)

	lo, hi := o.predicateBounds()
	assert.Equal(t, 7, hi)
	assert.Equal(t, 7, lo)

	g := o.randomGenome()
	assert.Len(t, g.Predicates(), 7)
}

func TestOperators_TournamentPrefersFitter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TournamentSize = 50
	o, _ := newTestOperators(t, cfg)

	weak := o.randomGenome()
	weak.Fitness = -10
	strong := o.randomGenome()
	strong.Fitness = 10

	wins := 0
	for i := 0; i < 100; i++ {
		if o.tournament([]*Genome{weak, strong}) == strong {
			wins++
		}
	}
	assert.Equal(t, 100, wins)
}

func TestOperators_CrossoverDrawsFromParents(t *testing.T) {
	o, c := newTestOperators(t, DefaultConfig())
	lookup := func(id string) domain.FactorDefinition {
		def, ok := c.Lookup(id)
		require.True(t, ok, id)
		return def
	}

	a := &Genome{Factors: []domain.FactorDefinition{
		lookup("side|side|home"), lookup("size|size|flat"), lookup("predicate|form|home_hot"),
	}}
	b := &Genome{Factors: []domain.FactorDefinition{
		lookup("side|side|away"), lookup("size|size|odds_scaled"), lookup("predicate|line|home_gives"),
	}}

	allowed := map[string]bool{}
	for _, id := range append(a.Identities(), b.Identities()...) {
		allowed[id] = true
	}
	for i := 0; i < 50; i++ {
		child := o.crossover(a, b)
		require.True(t, child.Valid())
		for _, id := range child.Identities() {
			assert.True(t, allowed[id], id)
		}
		assert.False(t, child.Evaluated)
	}
}

func TestOperators_CrossoverFallsBackToPool(t *testing.T) {
	o, c := newTestOperators(t, DefaultConfig())
	lookup := func(id string) domain.FactorDefinition {
		def, ok := c.Lookup(id)
		require.True(t, ok, id)
		return def
	}

	a := &Genome{Factors: []domain.FactorDefinition{
		lookup("size|size|flat"), lookup("predicate|form|home_hot"),
	}}
	b := &Genome{Factors: []domain.FactorDefinition{
		lookup("size|size|flat"), lookup("predicate|line|home_gives"),
	}}

	sides := map[string]bool{}
	for i := 0; i < 100; i++ {
		child := o.crossover(a, b)
		require.True(t, child.Valid(), "invalid child %v", child.Labels())
		for _, f := range child.Factors {
			switch f.Role {
			case domain.RoleSize:
				assert.Equal(t, "size|size|flat", f.Identity())
			case domain.RoleSide:
				sides[f.Identity()] = true
			}
		}
	}
	assert.Greater(t, len(sides), 1)
}

func TestRepair(t *testing.T) {
	o, c := newTestOperators(t, DefaultConfig())
	lookup := func(id string) domain.FactorDefinition {
		def, _ := c.Lookup(id)
		return def
	}

	t.Run("two sides and no size", func(t *testing.T) {
		g := &Genome{Factors: []domain.FactorDefinition{
			lookup("side|side|home"), lookup("side|side|away"), lookup("predicate|form|gap"),
		}, Evaluated: true}
		assert.Equal(t, repairResult{Roles: true, Changed: true}, o.repair(g))
		assertWithinBounds(t, o, g)
		assert.False(t, g.Evaluated)
	})

	t.Run("duplicate predicate", func(t *testing.T) {
		gap := lookup("predicate|form|gap")
		g := &Genome{Factors: []domain.FactorDefinition{
			lookup("side|side|home"), lookup("size|size|flat"), gap, gap,
		}}
		assert.Equal(t, repairResult{Changed: true}, o.repair(g))
		assert.Len(t, g.Factors, 3)
	})

	t.Run("valid genome untouched", func(t *testing.T) {
		g := &Genome{Factors: []domain.FactorDefinition{
			lookup("side|side|home"), lookup("size|size|flat"), lookup("predicate|form|gap"),
		}, Evaluated: true}
		assert.Equal(t, repairResult{}, o.repair(g))
		assert.True(t, g.Evaluated)
	})

	t.Run("too few predicates", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MinFactors = 3
		o2, _ := newTestOperators(t, cfg)
		g := &Genome{Factors: []domain.FactorDefinition{lookup("side|side|home"), lookup("size|size|flat")}}
		assert.Equal(t, repairResult{Changed: true}, o2.repair(g))
		assert.Len(t, g.Predicates(), 3)
	})
}

func TestGenome_CloneIsIndependent(t *testing.T) {
	o, _ := newTestOperators(t, DefaultConfig())
	g := o.randomGenome()
	g.Fitness = 5
	g.Evaluated = true

	clone := g.Clone()
	assert.False(t, clone.Evaluated)
	assert.Zero(t, clone.Fitness)
	assert.Equal(t, g.Identity(), clone.Identity())

	clone.Factors[0] = clone.Factors[1]
	assert.True(t, g.Valid())
}
