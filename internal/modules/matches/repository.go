// Package matches loads historical match records from season files.
package matches

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/domain"
)

var (
	// ErrNoMatches is returned when no source produced a single record
	ErrNoMatches = errors.New("no matches loaded")
	// ErrInvalidLine marks a handicap line that is absent on a played match
	// or cannot be read as a quarter-goal line
	ErrInvalidLine = errors.New("invalid handicap line")
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

type rawRecord struct {
	PreMatch   map[string]any `json:"pre_match"`
	TimeSeries map[string]any `json:"time_series"`
}

// Repository normalises season documents into a flat, uniquely keyed
// match collection
type Repository struct {
	log zerolog.Logger
}

// NewRepository creates a repository
func NewRepository(log zerolog.Logger) *Repository {
	return &Repository{
		log: log.With().Str("component", "match_repository").Logger(),
	}
}

// Load reads every source and returns the merged records sorted by date
// then key. Unreadable sources are skipped with a warning.
func (r *Repository) Load(sources []string) ([]domain.MatchRecord, error) {
	seen := make(map[string]bool)
	var records []domain.MatchRecord

	for _, source := range sources {
		loaded, err := r.loadSource(source)
		if err != nil {
			r.log.Warn().Err(err).Str("source", source).Msg("Skipping match source")
			continue
		}

		added := 0
		for _, rec := range loaded {
			if seen[rec.Key] {
				r.log.Warn().Str("key", rec.Key).Str("source", source).Msg("Dropping duplicate match")
				continue
			}
			seen[rec.Key] = true
			records = append(records, rec)
			added++
		}
		r.log.Info().Str("source", source).Int("matches", added).Msg("Loaded match source")
	}

	if len(records) == 0 {
		return nil, ErrNoMatches
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Key < records[j].Key
	})

	r.log.Info().Int("matches", len(records)).Int("sources", len(sources)).Msg("Match repository ready")
	return records, nil
}

func (r *Repository) loadSource(source string) ([]domain.MatchRecord, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	docs, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}

	season := SeasonTag(source)
	keys := make([]string, 0, len(docs))
	for key := range docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]domain.MatchRecord, 0, len(docs))
	for _, key := range keys {
		var raw rawRecord
		if err := decodeJSON(docs[key], &raw); err != nil {
			r.log.Debug().Err(err).Str("key", key).Msg("Skipping malformed match")
			continue
		}
		rec, err := normalize(season, key, raw)
		if err != nil {
			r.log.Debug().Err(err).Str("key", key).Msg("Skipping malformed match")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeDocument accepts {"matches": {...}} or a bare {key: record} map
func decodeDocument(data []byte) (map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}

	if inner, ok := top["matches"]; ok {
		var docs map[string]json.RawMessage
		if err := json.Unmarshal(inner, &docs); err == nil {
			return docs, nil
		}
	}
	return top, nil
}

// decodeJSON reads numbers as json.Number so plain() decides their type
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// SeasonTag derives the season prefix from a source path, e.g.
// data/matches_2023-2024.json -> 2023-2024
func SeasonTag(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, prefix := range []string{"matches_", "season_"} {
		if strings.HasPrefix(base, prefix) {
			return strings.TrimPrefix(base, prefix)
		}
	}
	return base
}

func normalize(season, key string, raw rawRecord) (domain.MatchRecord, error) {
	if raw.PreMatch == nil {
		return domain.MatchRecord{}, errors.New("missing pre_match")
	}

	pre := make(map[string]any, len(raw.PreMatch))
	for k, v := range raw.PreMatch {
		pre[k] = plain(v)
	}
	ts := make(map[string]any, len(raw.TimeSeries))
	for k, v := range raw.TimeSeries {
		ts[k] = plain(v)
	}

	rec := domain.MatchRecord{
		Key:         season + "_" + key,
		OriginalKey: key,
		Season:      season,
		HomeTeam:    stringField(pre, "home_team"),
		AwayTeam:    stringField(pre, "away_team"),
		PreMatch:    pre,
		TimeSeries:  ts,
	}

	if s := stringField(pre, "date"); s != "" {
		date, err := parseDate(s)
		if err != nil {
			return rec, err
		}
		rec.Date = date
	}

	rec.HomeScore = intField(pre, "home_score")
	rec.AwayScore = intField(pre, "away_score")
	line, err := handicapLine(pre["ah_line"], rec.HasResult())
	if err != nil {
		return rec, err
	}
	rec.HandicapLine = line
	if _, ok := pre["ah_line"]; ok {
		pre["ah_line"] = line
	}
	rec.HomeOdds, _ = floatField(pre, "ah_home_odds")
	rec.AwayOdds, _ = floatField(pre, "ah_away_odds")
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// plain converts json.Number leaves to float64 so expressions see one
// numeric type
func plain(v any) any {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			out[k] = plain(inner)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, inner := range x {
			out[i] = plain(inner)
		}
		return out
	}
	return v
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func floatField(m map[string]any, key string) (float64, bool) {
	switch x := m[key].(type) {
	case float64:
		return x, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func intField(m map[string]any, key string) *int {
	f, ok := floatField(m, key)
	if !ok || f != math.Trunc(f) || f < 0 {
		return nil
	}
	n := int(f)
	return &n
}

// handicapLine reads the home-perspective line. Split notation such as
// "0/-0.5" or "-0.5/1" is the mean of its halves, with a leading minus
// carried to an unsigned second half. A played match must carry a line.
func handicapLine(v any, played bool) (float64, error) {
	var line float64
	switch x := v.(type) {
	case nil:
		if played {
			return 0, fmt.Errorf("%w: missing ah_line", ErrInvalidLine)
		}
		return 0, nil
	case float64:
		line = x
	case string:
		parsed, err := parseLineString(strings.TrimSpace(x))
		if err != nil {
			return 0, err
		}
		line = parsed
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidLine, v)
	}

	if math.IsNaN(line) || math.IsInf(line, 0) || line*4 != math.Trunc(line*4) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidLine, v)
	}
	return line, nil
}

func parseLineString(s string) (float64, error) {
	first, second, split := strings.Cut(s, "/")
	a, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLine, s)
	}
	if !split {
		return a, nil
	}

	second = strings.TrimSpace(second)
	b, err := strconv.ParseFloat(second, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLine, s)
	}
	if strings.HasPrefix(strings.TrimSpace(first), "-") && !strings.HasPrefix(second, "-") && !strings.HasPrefix(second, "+") {
		b = -b
	}
	if math.Abs(a-b) != 0.5 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLine, s)
	}
	return (a + b) / 2, nil
}
