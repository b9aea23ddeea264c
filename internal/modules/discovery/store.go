package discovery

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/utils"
)

// Store keeps discovered strategies and run history in sqlite
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a store over a migrated database
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "discovery_store").Logger(),
	}
}

// Record saves a discovered strategy. A strategy already stored for the
// same run is ignored.
func (s *Store) Record(entry Entry) error {
	factorsJSON, err := json.Marshal(entry.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}

	identity := entry.Identity
	if identity == "" {
		identity = strings.Join(entry.Factors, "&")
	}

	query := `
		INSERT OR IGNORE INTO discovered_strategies (
			run_id, generation, identity, factors_json, roi, matches,
			win_rate, fitness, max_drawdown_percent, discovered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	measure := utils.MeasureDBQuery("insert_discovered_strategy", s.log)
	result, err := s.db.Exec(
		query,
		entry.RunID,
		entry.Generation,
		identity,
		string(factorsJSON),
		entry.ROI,
		entry.Matches,
		entry.WinRate,
		entry.Fitness,
		entry.MaxDrawdownPercent,
		entry.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert discovered strategy: %w", err)
	}
	rows, _ := result.RowsAffected()
	measure(rows)

	s.log.Debug().
		Str("run_id", entry.RunID).
		Int("generation", entry.Generation).
		Float64("roi", entry.ROI).
		Msg("Saved discovered strategy")
	return nil
}

// ListFilter narrows List
type ListFilter struct {
	RunID string
	Limit int
}

// List returns discovered strategies, best fitness first
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `
		SELECT run_id, generation, identity, factors_json, roi, matches,
		       win_rate, fitness, max_drawdown_percent, discovered_at
		FROM discovered_strategies
	`
	var args []interface{}
	if filter.RunID != "" {
		query += " WHERE run_id = ?"
		args = append(args, filter.RunID)
	}
	query += " ORDER BY fitness DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovered strategies: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var factorsJSON string
		var discoveredAt int64
		if err := rows.Scan(
			&e.RunID, &e.Generation, &e.Identity, &factorsJSON, &e.ROI, &e.Matches,
			&e.WinRate, &e.Fitness, &e.MaxDrawdownPercent, &discoveredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan discovered strategy: %w", err)
		}
		if err := json.Unmarshal([]byte(factorsJSON), &e.Factors); err != nil {
			s.log.Warn().Err(err).Str("identity", e.Identity).Msg("Failed to unmarshal factors")
		}
		e.Timestamp = time.Unix(discoveredAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RunStarted records the beginning of a run
func (s *Store) RunStarted(run Run) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO optimizer_runs (run_id, started_at, config_json, status)
		VALUES (?, ?, ?, ?)
	`, run.RunID, run.StartedAt.Unix(), string(configJSON), string(RunStatusRunning))
	if err != nil {
		return fmt.Errorf("failed to insert optimizer run: %w", err)
	}
	return nil
}

// RunFinished stores the final counters of a run
func (s *Store) RunFinished(run Run) error {
	_, err := s.db.Exec(`
		UPDATE optimizer_runs
		SET finished_at = ?, generations = ?, best_fitness = ?, discovered = ?,
		    repairs = ?, status = ?
		WHERE run_id = ?
	`, run.FinishedAt.Unix(), run.Generations, run.BestFitness, run.Discovered,
		run.Repairs, string(run.Status), run.RunID)
	if err != nil {
		return fmt.Errorf("failed to update optimizer run: %w", err)
	}
	return nil
}

// Runs lists recorded runs, newest first
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, generations, best_fitness,
		       discovered, repairs, config_json, status
		FROM optimizer_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimizer runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt int64
		var finishedAt sql.NullInt64
		var best sql.NullFloat64
		var configJSON, status string
		if err := rows.Scan(&r.RunID, &startedAt, &finishedAt, &r.Generations, &best,
			&r.Discovered, &r.Repairs, &configJSON, &status); err != nil {
			return nil, fmt.Errorf("failed to scan optimizer run: %w", err)
		}
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt.Valid {
			r.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
		}
		r.BestFitness = best.Float64
		r.Status = RunStatus(status)
		var cfg map[string]any
		if err := json.Unmarshal([]byte(configJSON), &cfg); err == nil {
			r.Config = cfg
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
