package settlement

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/expression"
)

// Resolver turns side and size factors into concrete bets
type Resolver struct {
	evaluator  *expression.Evaluator
	calculator *Calculator
	log        zerolog.Logger
}

// NewResolver creates a resolver
func NewResolver(evaluator *expression.Evaluator, calculator *Calculator, log zerolog.Logger) *Resolver {
	return &Resolver{
		evaluator:  evaluator,
		calculator: calculator,
		log:        log.With().Str("component", "settlement").Logger(),
	}
}

// ResolveSide returns the literal side, or the side named by the factor's
// expression. Anything other than home/away falls back to home.
func (r *Resolver) ResolveSide(record *domain.MatchRecord, factor domain.FactorDefinition) domain.BetSide {
	if factor.Side != "" {
		return factor.Side
	}

	v := r.evaluator.Evaluate(record, factor.Expression)
	if s, ok := expression.AsString(v); ok {
		if side, ok := domain.ParseBetSide(s); ok {
			return side
		}
	}

	r.log.Debug().
		Str("match", record.Key).
		Str("factor", factor.ID.String()).
		Interface("value", v).
		Msg("Side expression did not resolve, defaulting to home")
	return domain.SideHome
}

// ResolveStake evaluates the size factor. The bool is false when the stake
// is not a positive number, which voids the bet.
func (r *Resolver) ResolveStake(record *domain.MatchRecord, factor domain.FactorDefinition) (float64, bool) {
	v := r.evaluator.Evaluate(record, factor.Expression)
	stake, ok := expression.AsNumber(v)
	if !ok || stake <= 0 {
		return 0, false
	}
	return stake, true
}

// SettleMatch resolves and settles one bet. The bool is false when the bet
// is void: unknown scores, invalid stake or invalid odds.
func (r *Resolver) SettleMatch(record *domain.MatchRecord, sideFactor, sizeFactor domain.FactorDefinition) (domain.BetRecord, bool) {
	if !record.HasResult() {
		return domain.BetRecord{}, false
	}

	stake, ok := r.ResolveStake(record, sizeFactor)
	if !ok {
		return domain.BetRecord{}, false
	}

	side := r.ResolveSide(record, sideFactor)
	odds := record.OddsFor(side)

	result, err := r.calculator.Settle(*record.HomeScore, *record.AwayScore, record.HandicapLine, side, odds, stake)
	if err != nil {
		if !errors.Is(err, ErrInvalidOdds) && !errors.Is(err, ErrInvalidStake) {
			r.log.Warn().Err(err).Str("match", record.Key).Msg("Unexpected settlement failure")
		}
		return domain.BetRecord{}, false
	}

	return domain.BetRecord{
		MatchKey: record.Key,
		Date:     record.Date,
		Side:     side,
		Line:     lineFor(record.HandicapLine, side),
		Odds:     odds,
		Stake:    stake,
		Outcome:  result.Outcome,
		Payout:   result.Payout,
		Profit:   result.Profit,
	}, true
}

// lineFor expresses the home-perspective line from the backed side
func lineFor(homeLine float64, side domain.BetSide) float64 {
	if side == domain.SideAway && homeLine != 0 {
		return -homeLine
	}
	return homeLine
}
