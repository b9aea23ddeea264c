package cache

import "sync"

// Table is a single memo table keyed by a deterministic string
type Table[V any] struct {
	tableName string
	metrics   *Metrics

	mu      sync.Mutex
	entries map[string]V
	hits    uint64
	misses  uint64
}

// Get looks up key, counting a hit or a miss
func (t *Table[V]) Get(key string) (V, bool) {
	t.mu.Lock()
	v, ok := t.entries[key]
	if ok {
		t.hits++
	} else {
		t.misses++
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.observe(t.tableName, ok)
	}
	return v, ok
}

// Put stores value under key
func (t *Table[V]) Put(key string, value V) {
	t.mu.Lock()
	t.entries[key] = value
	size := len(t.entries)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.entries(t.tableName, size)
	}
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns it
func (t *Table[V]) GetOrCompute(key string, compute func() V) V {
	if v, ok := t.Get(key); ok {
		return v
	}
	v := compute()
	t.Put(key, v)
	return v
}

// Len returns the number of cached entries
func (t *Table[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table[V]) name() string {
	return t.tableName
}

func (t *Table[V]) stats() TableStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TableStats{
		Name:    t.tableName,
		Hits:    t.hits,
		Misses:  t.misses,
		HitRate: hitRate(t.hits, t.misses),
		Entries: len(t.entries),
	}
}

func (t *Table[V]) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]V)
	t.hits = 0
	t.misses = 0
}
