package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_HitAndMissCounters(t *testing.T) {
	layer := NewLayer(nil, zerolog.Nop())
	table := Register[float64](layer, TableSettlement)

	_, ok := table.Get("a")
	assert.False(t, ok)

	table.Put("a", 190)
	v, ok := table.Get("a")
	require.True(t, ok)
	assert.Equal(t, 190.0, v)

	stats, found := layer.Stats().Table(TableSettlement)
	require.True(t, found)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 50.0, stats.HitRate)
	assert.Equal(t, 1, stats.Entries)
}

func TestTable_GetOrComputeCallsOnce(t *testing.T) {
	layer := NewLayer(nil, zerolog.Nop())
	table := Register[string](layer, TableFilter)

	calls := 0
	compute := func() string {
		calls++
		return "value"
	}

	first := table.GetOrCompute("k", compute)
	second := table.GetOrCompute("k", compute)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	stats, _ := layer.Stats().Table(TableFilter)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestLayer_ClearAllZeroesEverything(t *testing.T) {
	layer := NewLayer(NewMetrics(prometheus.NewRegistry()), zerolog.Nop())
	exprs := Register[any](layer, TableExpression)
	aggs := Register[int](layer, TableAggregate)

	exprs.Put("m1|x > 1", true)
	exprs.Get("m1|x > 1")
	aggs.Get("missing")
	aggs.Put("k", 3)

	layer.ClearAll()

	stats := layer.Stats()
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
	assert.Equal(t, 0.0, stats.HitRate)
	for _, ts := range stats.Tables {
		assert.Equal(t, 0, ts.Entries, ts.Name)
	}
	assert.Equal(t, 0, exprs.Len())
	assert.Equal(t, 0, aggs.Len())
}

func TestRegister_ReturnsExistingTable(t *testing.T) {
	layer := NewLayer(nil, zerolog.Nop())
	a := Register[int](layer, "t")
	b := Register[int](layer, "t")

	a.Put("x", 1)
	v, ok := b.Get("x")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Len(t, layer.Stats().Tables, 1)
}

func TestMetrics_CountsHitsAndMisses(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	layer := NewLayer(metrics, zerolog.Nop())
	table := Register[int](layer, TableAggregate)

	table.Get("k")
	table.Put("k", 1)
	table.Get("k")
	table.Get("k")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requests.WithLabelValues(TableAggregate, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues(TableAggregate, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.size.WithLabelValues(TableAggregate)))
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("a", "b"), HashKey("a", "b"))
	assert.NotEqual(t, HashKey("ab", ""), HashKey("a", "b"))
	assert.Len(t, HashKey("x"), 32)
}

func TestSortedJoin(t *testing.T) {
	input := []string{"c", "a", "b"}
	assert.Equal(t, "a&b&c", SortedJoin(input, "&"))
	assert.Equal(t, []string{"c", "a", "b"}, input)
}
