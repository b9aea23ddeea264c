package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// HashKey builds a compact deterministic key from ordered parts
func HashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// SortedJoin sorts a copy of items and joins them with sep
func SortedJoin(items []string, sep string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return strings.Join(sorted, sep)
}
