// Package settlement settles Asian-Handicap bets.
package settlement

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/domain"
)

var (
	// ErrInvalidOdds is returned for decimal odds of 1 or less
	ErrInvalidOdds = errors.New("invalid odds")
	// ErrInvalidStake is returned for a non-positive stake
	ErrInvalidStake = errors.New("invalid stake")
)

// Result is the outcome of one settled bet
type Result struct {
	Outcome domain.Outcome `json:"outcome"`
	Payout  float64        `json:"payout"`
	Profit  float64        `json:"profit"`
}

// Calculator settles bets, memoizing by all six inputs
type Calculator struct {
	results *cache.Table[Result]
}

// NewCalculator creates a calculator backed by the layer's settlement table
func NewCalculator(layer *cache.Layer) *Calculator {
	return &Calculator{
		results: cache.Register[Result](layer, cache.TableSettlement),
	}
}

// Settle computes outcome, payout and profit. line is quoted from the home
// perspective, so an away bet takes the opposite line.
func (c *Calculator) Settle(homeScore, awayScore int, line float64, side domain.BetSide, odds, stake float64) (Result, error) {
	if odds <= 1 || math.IsNaN(odds) || math.IsInf(odds, 0) {
		return Result{}, fmt.Errorf("%w: %g", ErrInvalidOdds, odds)
	}
	if stake <= 0 || math.IsNaN(stake) || math.IsInf(stake, 0) {
		return Result{}, fmt.Errorf("%w: %g", ErrInvalidStake, stake)
	}

	key := settleKey(homeScore, awayScore, line, side, odds, stake)
	if cached, ok := c.results.Get(key); ok {
		return cached, nil
	}

	result := Settle(homeScore, awayScore, line, side, odds, stake)
	c.results.Put(key, result)
	return result, nil
}

func settleKey(homeScore, awayScore int, line float64, side domain.BetSide, odds, stake float64) string {
	return strconv.Itoa(homeScore) + "|" +
		strconv.Itoa(awayScore) + "|" +
		strconv.FormatFloat(line, 'g', -1, 64) + "|" +
		string(side) + "|" +
		strconv.FormatFloat(odds, 'g', -1, 64) + "|" +
		strconv.FormatFloat(stake, 'g', -1, 64)
}

// Settle is the uncached settlement rule. Inputs are assumed valid.
func Settle(homeScore, awayScore int, line float64, side domain.BetSide, odds, stake float64) Result {
	// work in quarter goals so a quarter line compares exactly
	quarterLine := int(math.Round(line * 4))
	var diff int
	if side == domain.SideAway {
		diff = 4*(awayScore-homeScore) - quarterLine
	} else {
		diff = 4*(homeScore-awayScore) + quarterLine
	}

	s := decimal.NewFromFloat(stake)
	o := decimal.NewFromFloat(odds)
	half := s.Div(decimal.NewFromInt(2))

	var outcome domain.Outcome
	var payout decimal.Decimal
	switch {
	case diff == 1:
		outcome = domain.OutcomeHalfWin
		payout = half.Add(half.Mul(o))
	case diff == -1:
		outcome = domain.OutcomeHalfLoss
		payout = half
	case diff > 0:
		outcome = domain.OutcomeWin
		payout = s.Mul(o)
	case diff < 0:
		outcome = domain.OutcomeLoss
		payout = decimal.Zero
	default:
		outcome = domain.OutcomePush
		payout = s
	}

	payout = payout.Round(2)
	profit := payout.Sub(s).Round(2)
	return Result{
		Outcome: outcome,
		Payout:  payout.InexactFloat64(),
		Profit:  profit.InexactFloat64(),
	}
}
