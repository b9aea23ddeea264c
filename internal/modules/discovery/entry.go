// Package discovery persists strategies that met the discovery thresholds
// during an optimizer run.
package discovery

import (
	"time"
)

// Entry is one discovered strategy
type Entry struct {
	RunID              string    `json:"run_id"`
	Generation         int       `json:"generation"`
	Identity           string    `json:"-"`
	Factors            []string  `json:"factors"` // role|category|key identities
	ROI                float64   `json:"roi"`
	Matches            int       `json:"matches"`
	WinRate            float64   `json:"win_rate"`
	Fitness            float64   `json:"fitness"`
	MaxDrawdownPercent float64   `json:"max_drawdown_percent"`
	Timestamp          time.Time `json:"timestamp"`
}

// RunStatus is the lifecycle state of a recorded run
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusStopped  RunStatus = "stopped"
	RunStatusFailed   RunStatus = "failed"
)

// Run summarises one optimizer run for history
type Run struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Generations int       `json:"generations"`
	BestFitness float64   `json:"best_fitness"`
	Discovered  int       `json:"discovered"`
	Repairs     int       `json:"repairs"`
	Config      any       `json:"config"`
	Status      RunStatus `json:"status"`
}
