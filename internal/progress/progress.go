// Package progress writes the optimizer's plain-text progress log.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is the state reported after each generation
type Snapshot struct {
	Time         time.Time
	RunID        string
	Generation   int
	Best         float64
	Average      float64
	Evaluated    int
	Discovered   int
	Repairs      int
	CacheHitRate float64
}

type syncer interface {
	Sync() error
}

// Log appends one line per snapshot and flushes it immediately
type Log struct {
	mu      sync.Mutex
	out     io.Writer
	closer  io.Closer
	memStat func() (*mem.VirtualMemoryStat, error)
}

// Open appends to the log file at path
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress log: %w", err)
	}
	return &Log{out: f, closer: f, memStat: mem.VirtualMemory}, nil
}

// New writes to an arbitrary writer, without host memory figures
func New(w io.Writer) *Log {
	return &Log{out: w}
}

// Report writes the snapshot as a single line
func (l *Log) Report(s Snapshot) error {
	line := Format(s)
	if l.memStat != nil {
		if vm, err := l.memStat(); err == nil {
			line += fmt.Sprintf(" mem_used=%.1f%%", vm.UsedPercent)
		}
	}
	line += "\n"

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := io.WriteString(l.out, line); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if s, ok := l.out.(syncer); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("failed to sync progress log: %w", err)
		}
	}
	return nil
}

// Close closes the file opened by Open
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Format renders a snapshot without the trailing newline
func Format(s Snapshot) string {
	return fmt.Sprintf("%s run=%s gen=%d best=%.4f avg=%.4f evaluated=%d discovered=%d repairs=%d cache_hit_rate=%.1f%%",
		s.Time.Format(time.RFC3339),
		s.RunID,
		s.Generation,
		s.Best,
		s.Average,
		s.Evaluated,
		s.Discovered,
		s.Repairs,
		s.CacheHitRate,
	)
}
