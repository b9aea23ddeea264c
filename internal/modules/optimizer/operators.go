package optimizer

import (
	"math/rand"

	"github.com/ahlab/ahlab/internal/domain"
)

// pools are the catalog factors available per role, sorted by identity
type pools struct {
	side      []domain.FactorDefinition
	size      []domain.FactorDefinition
	predicate []domain.FactorDefinition
}

func (p pools) forRole(role domain.Role) []domain.FactorDefinition {
	switch role {
	case domain.RoleSide:
		return p.side
	case domain.RoleSize:
		return p.size
	default:
		return p.predicate
	}
}

// operators holds the genetic operators of one run. Not safe for
// concurrent use: the run's RNG is shared.
type operators struct {
	cfg   Config
	rng   *rand.Rand
	pools pools
}

// predicateBounds clamps the configured predicate count to the pool
func (o *operators) predicateBounds() (int, int) {
	lo, hi := o.cfg.MinFactors, o.cfg.MaxFactors
	if hi > len(o.pools.predicate) {
		hi = len(o.pools.predicate)
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func (o *operators) pick(pool []domain.FactorDefinition) domain.FactorDefinition {
	return pool[o.rng.Intn(len(pool))]
}

// randomGenome draws one side, one size and a random number of distinct
// predicates
func (o *operators) randomGenome() *Genome {
	lo, hi := o.predicateBounds()
	n := lo + o.rng.Intn(hi-lo+1)

	factors := make([]domain.FactorDefinition, 0, n+2)
	factors = append(factors, o.pick(o.pools.side), o.pick(o.pools.size))
	for _, idx := range o.rng.Perm(len(o.pools.predicate))[:n] {
		factors = append(factors, o.pools.predicate[idx])
	}
	return &Genome{Factors: factors}
}

// tournament samples TournamentSize genomes with replacement and returns
// the fittest
func (o *operators) tournament(population []*Genome) *Genome {
	var best *Genome
	for i := 0; i < o.cfg.TournamentSize; i++ {
		candidate := population[o.rng.Intn(len(population))]
		if best == nil || candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best
}

// crossover seeds the child with a side and a size taken from either
// parent, falling back to the global pool when neither parent has one, then
// fills predicates from the union of both parents without replacement
func (o *operators) crossover(a, b *Genome) *Genome {
	var sides, sizes []domain.FactorDefinition
	var union []domain.FactorDefinition
	seen := make(map[string]bool)

	for _, parent := range []*Genome{a, b} {
		for _, f := range parent.Factors {
			switch f.Role {
			case domain.RoleSide:
				sides = append(sides, f)
			case domain.RoleSize:
				sizes = append(sizes, f)
			default:
				if id := f.Identity(); !seen[id] {
					seen[id] = true
					union = append(union, f)
				}
			}
		}
	}

	if len(sides) == 0 {
		sides = o.pools.side
	}
	if len(sizes) == 0 {
		sizes = o.pools.size
	}
	child := &Genome{Factors: make([]domain.FactorDefinition, 0, len(union)+2)}
	child.Factors = append(child.Factors, o.pick(sides), o.pick(sizes))

	lo, hi := len(a.Predicates()), len(b.Predicates())
	if lo > hi {
		lo, hi = hi, lo
	}
	target := lo + o.rng.Intn(hi-lo+1)
	minP, maxP := o.predicateBounds()
	if target < minP {
		target = minP
	}
	if target > maxP {
		target = maxP
	}
	if target > len(union) {
		target = len(union)
	}

	o.rng.Shuffle(len(union), func(i, j int) { union[i], union[j] = union[j], union[i] })
	child.Factors = append(child.Factors, union[:target]...)
	return child
}

type mutation int

const (
	mutationAdd mutation = iota
	mutationRemove
	mutationReplace
)

// mutate applies one random structural change with probability
// MutationRate. Returns whether the genome changed.
func (o *operators) mutate(g *Genome) bool {
	if o.rng.Float64() >= o.cfg.MutationRate {
		return false
	}

	minP, maxP := o.predicateBounds()
	preds := len(g.Predicates())

	options := []mutation{mutationReplace}
	if preds < maxP && len(o.unused(g, domain.RolePredicate)) > 0 {
		options = append(options, mutationAdd)
	}
	if preds > minP {
		options = append(options, mutationRemove)
	}

	switch options[o.rng.Intn(len(options))] {
	case mutationAdd:
		g.Factors = append(g.Factors, o.pick(o.unused(g, domain.RolePredicate)))
	case mutationRemove:
		idx := o.nthOfRole(g, domain.RolePredicate, o.rng.Intn(preds))
		g.Factors = append(g.Factors[:idx], g.Factors[idx+1:]...)
	case mutationReplace:
		idx := o.rng.Intn(len(g.Factors))
		candidates := o.unused(g, g.Factors[idx].Role)
		if len(candidates) == 0 {
			return false
		}
		g.Factors[idx] = o.pick(candidates)
	}

	g.Evaluated = false
	g.Report = nil
	return true
}

// unused lists pool factors of a role not already in the genome
func (o *operators) unused(g *Genome, role domain.Role) []domain.FactorDefinition {
	present := make(map[string]bool, len(g.Factors))
	for _, f := range g.Factors {
		present[f.Identity()] = true
	}
	var out []domain.FactorDefinition
	for _, f := range o.pools.forRole(role) {
		if !present[f.Identity()] {
			out = append(out, f)
		}
	}
	return out
}

func (o *operators) nthOfRole(g *Genome, role domain.Role, n int) int {
	for i, f := range g.Factors {
		if f.Role != role {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return -1
}
