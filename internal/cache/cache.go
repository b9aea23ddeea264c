// Package cache provides the memoization tables shared by the backtesting
// pipeline, with hit/miss instrumentation.
package cache

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Table names used by the pipeline
const (
	TableExpression = "expression"
	TableSettlement = "settlement"
	TableFilter     = "filter"
	TableAggregate  = "aggregate"
)

// TableStats is a point-in-time snapshot of one table's counters
type TableStats struct {
	Name    string  `json:"name"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"` // Percentage
	Entries int     `json:"entries"`
}

// Stats aggregates every registered table
type Stats struct {
	Tables  []TableStats `json:"tables"`
	Hits    uint64       `json:"hits"`
	Misses  uint64       `json:"misses"`
	HitRate float64      `json:"hit_rate"`
}

// Table returns the stats of one table by name
func (s Stats) Table(name string) (TableStats, bool) {
	for _, ts := range s.Tables {
		if ts.Name == name {
			return ts, true
		}
	}
	return TableStats{}, false
}

type registeredTable interface {
	name() string
	stats() TableStats
	clear()
}

// Layer owns a set of independent memo tables. A Layer belongs to a single
// optimizer instance; it must be cleared before a run over a different
// dataset so results from the previous run are never served.
type Layer struct {
	mu      sync.Mutex
	tables  map[string]registeredTable
	metrics *Metrics
	log     zerolog.Logger
}

// NewLayer creates an empty cache layer. metrics may be nil.
func NewLayer(metrics *Metrics, log zerolog.Logger) *Layer {
	return &Layer{
		tables:  make(map[string]registeredTable),
		metrics: metrics,
		log:     log.With().Str("component", "cache").Logger(),
	}
}

// Register creates (or returns the existing) table with the given name.
// Registering a name twice with a different value type panics, since that
// is a wiring error.
func Register[V any](l *Layer, name string) *Table[V] {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.tables[name]; ok {
		return existing.(*Table[V])
	}

	t := &Table[V]{
		tableName: name,
		entries:   make(map[string]V),
		metrics:   l.metrics,
	}
	l.tables[name] = t
	return t
}

// Stats returns counters for every table, sorted by name
func (l *Layer) Stats() Stats {
	l.mu.Lock()
	tables := make([]registeredTable, 0, len(l.tables))
	for _, t := range l.tables {
		tables = append(tables, t)
	}
	l.mu.Unlock()

	var out Stats
	for _, t := range tables {
		ts := t.stats()
		out.Tables = append(out.Tables, ts)
		out.Hits += ts.Hits
		out.Misses += ts.Misses
	}
	sort.Slice(out.Tables, func(i, j int) bool { return out.Tables[i].Name < out.Tables[j].Name })
	out.HitRate = hitRate(out.Hits, out.Misses)
	return out
}

// ClearAll empties every table and zeroes every counter
func (l *Layer) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.tables {
		t.clear()
	}
	if l.metrics != nil {
		l.metrics.reset()
	}
	l.log.Debug().Int("tables", len(l.tables)).Msg("Cleared all cache tables")
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
