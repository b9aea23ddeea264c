package backtest

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/factors"
	"github.com/ahlab/ahlab/internal/modules/performance"
	"github.com/ahlab/ahlab/internal/modules/settlement"
)

// Report is the full result of one backtest
type Report struct {
	Strategy Strategy                `json:"strategy"`
	Bets     []domain.BetRecord      `json:"bets"`
	Summary  performance.Summary     `json:"summary"`
	Risk     performance.RiskMetrics `json:"risk"`
}

type aggregate struct {
	bets    []domain.BetRecord
	summary performance.Summary
	risk    performance.RiskMetrics
}

// Service backtests strategies over a fixed match set
type Service struct {
	matches    []domain.MatchRecord
	filter     *factors.Filter
	resolver   *settlement.Resolver
	aggregates *cache.Table[aggregate]
	log        zerolog.Logger
}

// NewService creates a backtest service. matches must be sorted by date.
func NewService(
	matches []domain.MatchRecord,
	filter *factors.Filter,
	resolver *settlement.Resolver,
	layer *cache.Layer,
	log zerolog.Logger,
) *Service {
	return &Service{
		matches:    matches,
		filter:     filter,
		resolver:   resolver,
		aggregates: cache.Register[aggregate](layer, cache.TableAggregate),
		log:        log.With().Str("component", "backtest").Logger(),
	}
}

// Matches returns the match set backtests run over
func (s *Service) Matches() []domain.MatchRecord {
	return s.matches
}

// Run filters, settles and aggregates one strategy
func (s *Service) Run(strategy Strategy) Report {
	eligible := s.filter.Apply(s.matches, strategy.Predicates)

	agg := s.aggregates.GetOrCompute(AggregateKey(eligible, strategy.Side, strategy.Size), func() aggregate {
		return s.settle(eligible, strategy)
	})

	return Report{
		Strategy: strategy,
		Bets:     agg.bets,
		Summary:  agg.summary,
		Risk:     agg.risk,
	}
}

func (s *Service) settle(eligible []domain.MatchRecord, strategy Strategy) aggregate {
	bets := make([]domain.BetRecord, 0, len(eligible))
	voided := 0
	for i := range eligible {
		bet, ok := s.resolver.SettleMatch(&eligible[i], strategy.Side, strategy.Size)
		if !ok {
			voided++
			continue
		}
		bets = append(bets, bet)
	}

	sort.SliceStable(bets, func(i, j int) bool { return bets[i].Date.Before(bets[j].Date) })

	if voided > 0 {
		s.log.Debug().
			Str("strategy", strategy.Identity()).
			Int("voided", voided).
			Int("settled", len(bets)).
			Msg("Voided bets excluded")
	}

	return aggregate{
		bets:    bets,
		summary: performance.Summarize(bets),
		risk:    performance.Risk(bets),
	}
}

// AggregateKey hashes the eligible match keys together with the side and
// stake rules, so different rules over the same matches never collide
func AggregateKey(matches []domain.MatchRecord, side, size domain.FactorDefinition) string {
	keys := make([]string, len(matches))
	for i, m := range matches {
		keys[i] = m.Key
	}
	return cache.HashKey(
		cache.SortedJoin(keys, ","),
		side.Identity()+"="+side.Rule(),
		size.Identity()+"="+size.Rule(),
	)
}
