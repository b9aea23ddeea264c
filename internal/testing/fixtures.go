package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/factors"
)

var fixtureLines = []float64{-1, -0.75, -0.5, -0.25, 0, 0.25, 0.5}

// NewMatchFixtures returns n deterministic, fully settled matches sorted by
// date, one per day from 2023-08-01
func NewMatchFixtures(n int) []domain.MatchRecord {
	rng := rand.New(rand.NewSource(42))
	start := time.Date(2023, 8, 1, 15, 0, 0, 0, time.UTC)

	records := make([]domain.MatchRecord, n)
	for i := 0; i < n; i++ {
		home, away := rng.Intn(4), rng.Intn(3)
		line := fixtureLines[rng.Intn(len(fixtureLines))]
		homeOdds := 1.80 + float64(rng.Intn(30))/100
		awayOdds := 1.80 + float64(rng.Intn(30))/100
		homeForm := float64(rng.Intn(30)) / 10
		awayForm := float64(rng.Intn(30)) / 10

		favourite := "home"
		if awayOdds < homeOdds {
			favourite = "away"
		}

		key := fmt.Sprintf("m%03d", i)
		records[i] = domain.MatchRecord{
			Key:          "2023_" + key,
			OriginalKey:  key,
			Season:       "2023",
			HomeTeam:     fmt.Sprintf("Home %d", i%10),
			AwayTeam:     fmt.Sprintf("Away %d", i%7),
			Date:         start.AddDate(0, 0, i),
			HomeScore:    &home,
			AwayScore:    &away,
			HandicapLine: line,
			HomeOdds:     homeOdds,
			AwayOdds:     awayOdds,
			PreMatch: map[string]any{
				"home_form":    homeForm,
				"away_form":    awayForm,
				"ah_line":      line,
				"ah_home_odds": homeOdds,
				"ah_away_odds": awayOdds,
				"favourite":    favourite,
			},
			TimeSeries: map[string]any{
				"home": map[string]any{"win_streak": float64(i % 5)},
				"away": map[string]any{"win_streak": float64(i % 3)},
			},
		}
	}
	return records
}

// CatalogFixtureJSON is a small catalog covering every role
const CatalogFixtureJSON = `{
  "side": {
    "home": {"side": "home", "description": "Always back the home team"},
    "away": {"side": "away", "description": "Always back the away team"},
    "favourite": {"side_expression": "pre.favourite", "description": "Back the shorter price"}
  },
  "size": {
    "flat": {"stake": 100, "description": "Fixed 100 unit stake"},
    "odds_scaled": {"stake_expression": "round(190 / pre.ah_home_odds, 2)", "description": "Stake shrinks as home odds grow"}
  },
  "form": {
    "home_hot": {"expression": "pre.home_form >= 1.5"},
    "away_cold": {"expression": "pre.away_form < 2"},
    "gap": {"expression": "pre.home_form - pre.away_form > 0"}
  },
  "line": {
    "home_gives": {"expression": "pre.ah_line < 0"},
    "level_or_quarter": {"expression": "abs(pre.ah_line) <= 0.25"}
  },
  "streak": {
    "home_streak": {"expression": "ts.home.win_streak >= 2"},
    "away_no_streak": {"expression": "ts.away.win_streak == 0"}
  }
}`

// NewCatalogFixture parses CatalogFixtureJSON
func NewCatalogFixture() *factors.Catalog {
	c, err := factors.ParseCatalog([]byte(CatalogFixtureJSON), zerolog.Nop())
	if err != nil {
		panic(err)
	}
	return c
}

// MatchDocumentFixture is a season document in the on-disk match format
const MatchDocumentFixture = `{
  "matches": {
    "m1": {"pre_match": {"home_team": "Alpha", "away_team": "Beta", "date": "2023-08-12",
           "home_score": 2, "away_score": 1, "ah_line": -0.5, "ah_home_odds": 1.9, "ah_away_odds": 2.0,
           "home_form": 2.2, "away_form": 0.8, "favourite": "home"},
           "time_series": {"home": {"win_streak": 3}, "away": {"win_streak": 0}}},
    "m2": {"pre_match": {"home_team": "Gamma", "away_team": "Delta", "date": "2023-08-19",
           "home_score": 1, "away_score": 1, "ah_line": 0.25, "ah_home_odds": 1.95, "ah_away_odds": 1.9,
           "home_form": 1.0, "away_form": 1.5, "favourite": "away"},
           "time_series": {"home": {"win_streak": 0}, "away": {"win_streak": 1}}}
  }
}`
