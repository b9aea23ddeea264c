package expression

import (
	"fmt"
	"strconv"

	"github.com/ahlab/ahlab/internal/domain"
)

// MatchScope exposes a match record to expressions.
//
// Roots: pre (pre-match data), ts (time series) and match (the normalised
// record fields). A path without a known root is looked up in pre, then ts.
type MatchScope struct {
	record *domain.MatchRecord
}

// NewMatchScope wraps a record for evaluation
func NewMatchScope(record *domain.MatchRecord) *MatchScope {
	return &MatchScope{record: record}
}

// Lookup implements Scope
func (s *MatchScope) Lookup(path []string) (Value, error) {
	if len(path) == 0 {
		return nil, ErrUnknownField
	}

	switch path[0] {
	case "pre":
		return navigate(s.record.PreMatch, path[1:], path)
	case "ts":
		return navigate(s.record.TimeSeries, path[1:], path)
	case "match":
		if len(path) != 2 {
			return nil, fmt.Errorf("%w: %v", ErrUnknownField, path)
		}
		return s.matchField(path[1])
	}

	if v, err := navigate(s.record.PreMatch, path, path); err == nil {
		return v, nil
	}
	return navigate(s.record.TimeSeries, path, path)
}

func (s *MatchScope) matchField(name string) (Value, error) {
	r := s.record
	switch name {
	case "key":
		return r.Key, nil
	case "season":
		return r.Season, nil
	case "home_team":
		return r.HomeTeam, nil
	case "away_team":
		return r.AwayTeam, nil
	case "date":
		return r.Date.Format("2006-01-02"), nil
	case "ah_line":
		return r.HandicapLine, nil
	case "ah_home_odds", "home_odds":
		return r.HomeOdds, nil
	case "ah_away_odds", "away_odds":
		return r.AwayOdds, nil
	case "home_score":
		if r.HomeScore == nil {
			return nil, nil
		}
		return float64(*r.HomeScore), nil
	case "away_score":
		if r.AwayScore == nil {
			return nil, nil
		}
		return float64(*r.AwayScore), nil
	}
	return nil, fmt.Errorf("%w: match.%s", ErrUnknownField, name)
}

func navigate(root map[string]any, rest, full []string) (Value, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownField, full)
	}
	if len(rest) == 0 {
		return root, nil
	}

	var current any = root
	for _, seg := range rest {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("%w: %v", ErrUnknownField, full)
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("%w: %v", ErrUnknownField, full)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("%w: %v", ErrUnknownField, full)
		}
	}
	return current, nil
}
