package optimizer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/factors"
)

// Checkpoint is the resumable state saved after each generation
type Checkpoint struct {
	RunID       string     `msgpack:"run_id"`
	Generation  int        `msgpack:"generation"` // Next generation to evaluate
	BestFitness float64    `msgpack:"best_fitness"`
	Population  [][]string `msgpack:"population"` // Factor identities per genome
	SavedAt     time.Time  `msgpack:"saved_at"`
}

// SaveCheckpoint writes the checkpoint atomically through a temp file
func SaveCheckpoint(path string, cp Checkpoint) error {
	data, err := msgpack.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint
func LoadCheckpoint(path string) (Checkpoint, error) {
	var cp Checkpoint
	data, err := os.ReadFile(path)
	if err != nil {
		return cp, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if err := msgpack.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return cp, nil
}

func checkpointPopulation(population []*Genome) [][]string {
	out := make([][]string, len(population))
	for i, g := range population {
		out[i] = g.Identities()
	}
	return out
}

// restorePopulation rebuilds genomes from identities. Identities missing
// from the catalog are dropped; the caller repairs the result.
func restorePopulation(catalog *factors.Catalog, saved [][]string) (population []*Genome, dropped int) {
	for _, ids := range saved {
		g := &Genome{Factors: make([]domain.FactorDefinition, 0, len(ids))}
		for _, id := range ids {
			def, ok := catalog.Lookup(id)
			if !ok {
				dropped++
				continue
			}
			g.Factors = append(g.Factors, def)
		}
		population = append(population, g)
	}
	return population, dropped
}
