package progress

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(gen int) Snapshot {
	return Snapshot{
		Time:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		RunID:        "run-1",
		Generation:   gen,
		Best:         41.25,
		Average:      -300.5,
		Evaluated:    50,
		Discovered:   2,
		Repairs:      1,
		CacheHitRate: 87.5,
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t,
		"2024-03-01T12:00:00Z run=run-1 gen=4 best=41.2500 avg=-300.5000 evaluated=50 discovered=2 repairs=1 cache_hit_rate=87.5%",
		Format(snapshot(4)))
}

func TestLog_Writer(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	require.NoError(t, l.Report(snapshot(1)))
	require.NoError(t, l.Report(snapshot(2)))
	require.NoError(t, l.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "gen=2")
	assert.NotContains(t, lines[0], "mem_used")
}

func TestLog_FileIncludesHostMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "progress.log")
	l, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, l.Report(snapshot(1)))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gen=1")
	assert.Contains(t, string(data), "mem_used=")
}
