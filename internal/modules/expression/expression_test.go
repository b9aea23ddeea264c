package expression

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/domain"
)

func testRecord() *domain.MatchRecord {
	home, away := 2, 1
	return &domain.MatchRecord{
		Key:          "2023_m1",
		Season:       "2023",
		HomeTeam:     "Alpha",
		AwayTeam:     "Beta",
		HomeScore:    &home,
		AwayScore:    &away,
		HandicapLine: -0.5,
		HomeOdds:     1.9,
		AwayOdds:     2.0,
		PreMatch: map[string]any{
			"home_form": 2.5,
			"away_form": 1.0,
			"league":    "EPL",
			"ranks":     []any{3.0, 7.0},
			"stats":     map[string]any{"xg": 1.4},
			"derby":     false,
		},
		TimeSeries: map[string]any{
			"minute": map[string]any{"45": map[string]any{"home_goals": 1.0}},
			"trend":  0.3,
		},
	}
}

func newTestEvaluator() (*Evaluator, *cache.Layer) {
	layer := cache.NewLayer(nil, zerolog.Nop())
	return NewEvaluator(layer, zerolog.Nop()), layer
}

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		expr     string
		expected Value
	}{
		{"1 + 2 * 3", 7.0},
		{"(1 + 2) * 3", 9.0},
		{"-2 * 3", -6.0},
		{"10 % 4", 2.0},
		{"2 > 1 and 3 > 4 or true", true},
		{"not 1 > 2", true},
		{"!false && 1 == 1", true},
		{"'a' + 'b'", "ab"},
		{"pow(2, 3) + abs(-1)", 9.0},
		{"round(3.14159, 2)", 3.14},
		{"clamp(15, 0, 10)", 10.0},
		{"min(4, 2, 8)", 2.0},
		{"max(4, 2, 8)", 8.0},
		{"floor(pi)", 3.0},
		{"if(1 > 2, 'yes', 'no')", "no"},
		{"null == null", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			node, err := Parse(tt.expr)
			require.NoError(t, err)

			v, err := node.Evaluate(NewMatchScope(testRecord()))
			require.NoError(t, err)
			if f, ok := tt.expected.(float64); ok {
				got, ok := AsNumber(v)
				require.True(t, ok)
				assert.InDelta(t, f, got, 1e-9)
			} else {
				assert.Equal(t, tt.expected, v)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, expr := range []string{
		"",
		"1 +",
		"(1 + 2",
		"1 < 2 < 3",
		"unknown_fn(1)",
		"'unterminated",
		"1 $ 2",
		"and",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			assert.Error(t, err)
		})
	}
}

func TestMatchScope_Lookup(t *testing.T) {
	scope := NewMatchScope(testRecord())

	tests := []struct {
		expr     string
		expected Value
	}{
		{"pre.home_form", 2.5},
		{"home_form", 2.5},
		{"trend", 0.3},
		{"pre.stats.xg", 1.4},
		{"pre.ranks.1", 7.0},
		{"ts.minute.45.home_goals", 1.0},
		{"match.ah_line", -0.5},
		{"match.home_score", 2.0},
		{"match.season", "2023"},
		{"league == 'EPL'", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			node, err := Parse(tt.expr)
			require.NoError(t, err)
			v, err := node.Evaluate(scope)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestMatchScope_UnknownField(t *testing.T) {
	node, err := Parse("pre.missing > 1")
	require.NoError(t, err)

	_, err = node.Evaluate(NewMatchScope(testRecord()))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSpecialForms(t *testing.T) {
	scope := NewMatchScope(testRecord())

	tests := []struct {
		expr     string
		expected Value
	}{
		{"exists(pre.home_form)", true},
		{"exists(pre.nope)", false},
		{"coalesce(pre.nope, pre.home_form)", 2.5},
		{"coalesce(pre.nope, null)", nil},
		// the untaken branch is never evaluated
		{"if(true, 1, 1 / 0)", 1.0},
		{"false and 1 / 0", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			node, err := Parse(tt.expr)
			require.NoError(t, err)
			v, err := node.Evaluate(scope)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	scope := NewMatchScope(testRecord())

	tests := []struct {
		expr string
		err  error
	}{
		{"1 / 0", ErrDivisionByZero},
		{"5 % 0", ErrDivisionByZero},
		{"'a' * 2", ErrTypeMismatch},
		{"'a' < 1", ErrTypeMismatch},
		{"pow(10, 400)", ErrNotFinite},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			node, err := Parse(tt.expr)
			require.NoError(t, err)
			_, err = node.Evaluate(scope)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEvaluator_FailClosed(t *testing.T) {
	e, _ := newTestEvaluator()
	record := testRecord()

	assert.Nil(t, e.Evaluate(record, "1 +"))
	assert.Nil(t, e.Evaluate(record, "pre.missing"))
	assert.Nil(t, e.Evaluate(record, "1 / 0"))
	assert.False(t, e.Satisfies(record, "pre.missing > 0"))
	assert.False(t, e.Satisfies(record, "not_a_field"))

	assert.True(t, e.Satisfies(record, "home_form > away_form"))
	assert.Equal(t, 1.5, e.Evaluate(record, "home_form - away_form"))
}

func TestEvaluator_Memoizes(t *testing.T) {
	e, layer := newTestEvaluator()
	record := testRecord()

	first := e.Evaluate(record, "home_form * 2")
	second := e.Evaluate(record, "home_form * 2")
	assert.Equal(t, first, second)

	stats, ok := layer.Stats().Table(cache.TableExpression)
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)

	// failures are cached too
	e.Evaluate(record, "1 +")
	e.Evaluate(record, "1 +")
	stats, _ = layer.Stats().Table(cache.TableExpression)
	assert.Equal(t, uint64(2), stats.Hits)
}

func TestEvaluator_CompileOnce(t *testing.T) {
	e, _ := newTestEvaluator()

	a, err := e.Compile("1 + 1")
	require.NoError(t, err)
	b, err := e.Compile("1 + 1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err1 := e.Compile("((")
	_, err2 := e.Compile("((")
	assert.Error(t, err1)
	assert.Equal(t, err1, err2)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(0.0))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy(1))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(-0.5))
}

func TestNode_String(t *testing.T) {
	node, err := Parse("max(pre.a, 2) > 1 and not b")
	require.NoError(t, err)
	assert.NotEmpty(t, node.String())

	// String output parses back to the same value
	again, err := Parse("1 + 2 * 3")
	require.NoError(t, err)
	reparsed, err := Parse(again.String())
	require.NoError(t, err)
	v, err := reparsed.Evaluate(NewMatchScope(testRecord()))
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}
