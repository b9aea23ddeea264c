package factors

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/expression"
)

// Filter selects the matches satisfying every factor of a set
type Filter struct {
	evaluator *expression.Evaluator
	results   *cache.Table[[]domain.MatchRecord]
	log       zerolog.Logger
}

// NewFilter creates a filter backed by the layer's filter table
func NewFilter(evaluator *expression.Evaluator, layer *cache.Layer, log zerolog.Logger) *Filter {
	return &Filter{
		evaluator: evaluator,
		results:   cache.Register[[]domain.MatchRecord](layer, cache.TableFilter),
		log:       log.With().Str("component", "factor_filter").Logger(),
	}
}

// Apply returns the matches for which every factor expression is truthy.
// An empty factor set keeps every match. The returned slice is shared
// through the cache and must not be modified.
func (f *Filter) Apply(matches []domain.MatchRecord, factors []domain.FactorDefinition) []domain.MatchRecord {
	if len(factors) == 0 {
		return matches
	}

	key := FilterKey(matches, factors)
	if cached, ok := f.results.Get(key); ok {
		return cached
	}

	kept := make([]domain.MatchRecord, 0, len(matches)/4)
	for i := range matches {
		if f.satisfiesAll(&matches[i], factors) {
			kept = append(kept, matches[i])
		}
	}

	f.results.Put(key, kept)
	f.log.Debug().
		Str("factors", domain.FactorSetIdentity(factors)).
		Int("matches", len(matches)).
		Int("kept", len(kept)).
		Msg("Filtered matches")
	return kept
}

func (f *Filter) satisfiesAll(record *domain.MatchRecord, factors []domain.FactorDefinition) bool {
	for _, factor := range factors {
		if !f.evaluator.Satisfies(record, factor.Expression) {
			return false
		}
	}
	return true
}

// FilterKey is the cache key of a factor set over a match set. The factor
// part is the sorted role|category|key identities, so order never matters.
// Every match key contributes, so distinct subsets never share an entry.
func FilterKey(matches []domain.MatchRecord, factors []domain.FactorDefinition) string {
	var sb strings.Builder
	for i := range matches {
		sb.WriteString(matches[i].Key)
		sb.WriteByte(',')
	}
	return cache.HashKey(sb.String(), domain.FactorSetIdentity(factors))
}
