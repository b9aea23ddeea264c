// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// BetSide is the team a handicap bet is placed on
type BetSide string

const (
	SideHome BetSide = "home"
	SideAway BetSide = "away"
)

// ParseBetSide normalises a textual side. The second return is false for
// anything other than home/away.
func ParseBetSide(s string) (BetSide, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home":
		return SideHome, true
	case "away":
		return SideAway, true
	default:
		return "", false
	}
}

// Outcome is the settlement result of a single Asian-Handicap bet
type Outcome string

const (
	OutcomeWin      Outcome = "win"
	OutcomeLoss     Outcome = "loss"
	OutcomePush     Outcome = "push"
	OutcomeHalfWin  Outcome = "half-win"
	OutcomeHalfLoss Outcome = "half-loss"
)

// Role tells how a factor participates in a strategy
type Role string

const (
	// RoleSide picks which team to back
	RoleSide Role = "side"
	// RoleSize decides the stake
	RoleSize Role = "size"
	// RolePredicate filters which matches are bet on
	RolePredicate Role = "predicate"
)

// Roles lists every role in a stable order
var Roles = []Role{RoleSide, RoleSize, RolePredicate}

// FactorID identifies a catalog entry
type FactorID struct {
	Category string `json:"category" msgpack:"category"`
	Key      string `json:"key" msgpack:"key"`
}

// String renders the id as category.key for display
func (id FactorID) String() string {
	return id.Category + "." + id.Key
}

// FactorDefinition is one named expression from the factor catalog.
//
// For RoleSide, a non-empty Side is a literal choice; otherwise Expression
// must evaluate to "home" or "away". For RoleSize, Expression evaluates to
// the stake (a bare number for fixed staking).
type FactorDefinition struct {
	ID          FactorID `json:"id"`
	Role        Role     `json:"role"`
	Expression  string   `json:"expression"`
	Description string   `json:"description,omitempty"`
	Side        BetSide  `json:"side,omitempty"`
}

// Identity is the role|category|key tuple used for cache keys and dedupe
func (f FactorDefinition) Identity() string {
	return string(f.Role) + "|" + f.ID.Category + "|" + f.ID.Key
}

// Rule is the resolution text of a side or size factor, used to tell apart
// differently configured rules that share an id
func (f FactorDefinition) Rule() string {
	if f.Side != "" {
		return "literal:" + string(f.Side)
	}
	return f.Expression
}

// FactorSetIdentity returns the order-independent identity of a factor set
func FactorSetIdentity(factors []FactorDefinition) string {
	ids := make([]string, len(factors))
	for i, f := range factors {
		ids[i] = f.Identity()
	}
	sort.Strings(ids)
	return strings.Join(ids, "&")
}

// CountRoles tallies factors by role
func CountRoles(factors []FactorDefinition) map[Role]int {
	counts := make(map[Role]int, len(Roles))
	for _, f := range factors {
		counts[f.Role]++
	}
	return counts
}

// MatchRecord is one historical match. Records are built once at load time
// and never mutated afterwards.
type MatchRecord struct {
	Key          string         `json:"key"`          // Season-prefixed, globally unique
	OriginalKey  string         `json:"original_key"` // Key inside its source document
	Season       string         `json:"season"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Date         time.Time      `json:"date"`
	HomeScore    *int           `json:"home_score,omitempty"`
	AwayScore    *int           `json:"away_score,omitempty"`
	HandicapLine float64        `json:"ah_line"` // Home perspective
	HomeOdds     float64        `json:"ah_home_odds"`
	AwayOdds     float64        `json:"ah_away_odds"`
	PreMatch     map[string]any `json:"pre_match"`
	TimeSeries   map[string]any `json:"time_series"`
}

// HasResult reports whether final scores are known
func (m *MatchRecord) HasResult() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}

// OddsFor returns the quoted handicap odds for a side
func (m *MatchRecord) OddsFor(side BetSide) float64 {
	if side == SideAway {
		return m.AwayOdds
	}
	return m.HomeOdds
}

// Label is a short human readable description of the fixture
func (m *MatchRecord) Label() string {
	return fmt.Sprintf("%s vs %s (%s)", m.HomeTeam, m.AwayTeam, m.Date.Format("2006-01-02"))
}

// BetRecord is one settled wager. Derived per evaluation, never persisted
// as a primary entity.
type BetRecord struct {
	MatchKey string    `json:"match_key"`
	Date     time.Time `json:"date"`
	Side     BetSide   `json:"side"`
	Line     float64   `json:"line"`
	Odds     float64   `json:"odds"`
	Stake    float64   `json:"stake"`
	Outcome  Outcome   `json:"outcome"`
	Payout   float64   `json:"payout"`
	Profit   float64   `json:"profit"`
}
