// Package optimizer searches the space of factor combinations with a
// genetic algorithm, using the backtest pipeline as its fitness function.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/backtest"
	"github.com/ahlab/ahlab/internal/modules/discovery"
	"github.com/ahlab/ahlab/internal/modules/factors"
	"github.com/ahlab/ahlab/internal/modules/matches"
	"github.com/ahlab/ahlab/internal/progress"
	"github.com/ahlab/ahlab/internal/utils"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is active
	ErrAlreadyRunning = errors.New("optimizer already running")
	// ErrMissingRolePool is returned when the catalog has no side or no
	// size factors
	ErrMissingRolePool = errors.New("catalog has no factors for a required role")
)

// State is the phase an optimizer run is in
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateEvaluating   State = "evaluating"
	StateBreeding     State = "breeding"
	StateTerminated   State = "terminated"
)

// Backtester evaluates strategies over the loaded matches
type Backtester interface {
	Run(strategy backtest.Strategy) backtest.Report
	Matches() []domain.MatchRecord
}

// Sink receives each newly discovered strategy
type Sink interface {
	Record(entry discovery.Entry) error
}

// RunRecorder keeps run history
type RunRecorder interface {
	RunStarted(run discovery.Run) error
	RunFinished(run discovery.Run) error
}

// ProgressReporter receives one snapshot per generation
type ProgressReporter interface {
	Report(s progress.Snapshot) error
}

// Status is a point-in-time view of the engine
type Status struct {
	RunID          string    `json:"run_id"`
	IsRunning      bool      `json:"is_running"`
	State          State     `json:"state"`
	Generation     int       `json:"generation"`
	MaxGenerations int       `json:"max_generations"`
	PopulationSize int       `json:"population_size"`
	BestFitness    float64   `json:"best_fitness"`
	BestFactors    []string  `json:"best_factors"`
	BestROI        float64   `json:"best_roi"`
	BestMatches    int       `json:"best_matches"`
	Discovered     int       `json:"discovered"`
	Repairs        int       `json:"repairs"` // side/size invariant violations
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Error          string    `json:"error,omitempty"`
}

// run is the state owned by one optimizer run
type run struct {
	id        string
	cfg       Config
	ops       *operators
	seen      map[string]bool
	stop      atomic.Bool
	startedAt time.Time

	hasBest     bool
	bestFitness float64
	discovered  int
	repairs     int
	generation  int
}

func (r *run) stopped(ctx context.Context) bool {
	return r.stop.Load() || ctx.Err() != nil
}

// Engine controls optimizer runs. At most one run is active at a time.
type Engine struct {
	catalog    *factors.Catalog
	backtester Backtester
	cache      *cache.Layer
	defaults   Config
	log        zerolog.Logger

	sinks    []Sink
	runs     RunRecorder
	progress ProgressReporter
	metrics  *Metrics

	mu      sync.RWMutex
	status  Status
	current *run
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates an idle engine
func NewEngine(
	catalog *factors.Catalog,
	backtester Backtester,
	layer *cache.Layer,
	defaults Config,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		catalog:    catalog,
		backtester: backtester,
		cache:      layer,
		defaults:   defaults,
		log:        log.With().Str("component", "optimizer").Logger(),
		status:     Status{State: StateIdle},
	}
}

// AddSink registers a discovery sink. Call before Start.
func (e *Engine) AddSink(s Sink) {
	e.sinks = append(e.sinks, s)
}

// SetRunRecorder sets where run history is kept
func (e *Engine) SetRunRecorder(r RunRecorder) {
	e.runs = r
}

// SetProgress sets the per-generation progress reporter
func (e *Engine) SetProgress(p ProgressReporter) {
	e.progress = p
}

// SetMetrics enables prometheus export
func (e *Engine) SetMetrics(m *Metrics) {
	e.metrics = m
}

// Defaults returns the base configuration overrides are merged into
func (e *Engine) Defaults() Config {
	return e.defaults
}

// Start launches a run in the background and returns its id
func (e *Engine) Start(ctx context.Context, overrides Overrides) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status.IsRunning {
		return "", ErrAlreadyRunning
	}

	cfg := e.defaults.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	p, err := e.pools()
	if err != nil {
		return "", err
	}
	if len(e.backtester.Matches()) == 0 {
		return "", matches.ErrNoMatches
	}

	// a previous run may have cached results over another dataset
	e.cache.ClearAll()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r := &run{
		id:        uuid.NewString(),
		cfg:       cfg,
		ops:       &operators{cfg: cfg, rng: rand.New(rand.NewSource(seed)), pools: p},
		seen:      make(map[string]bool),
		startedAt: time.Now(),
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.current = r
	e.cancel = cancel
	e.done = done
	e.status = Status{
		RunID:          r.id,
		IsRunning:      true,
		State:          StateInitializing,
		MaxGenerations: cfg.MaxGenerations,
		PopulationSize: cfg.PopulationSize,
		StartedAt:      r.startedAt,
	}

	if e.runs != nil {
		if err := e.runs.RunStarted(discovery.Run{RunID: r.id, StartedAt: r.startedAt, Config: cfg}); err != nil {
			e.log.Warn().Err(err).Str("run_id", r.id).Msg("Failed to record run start")
		}
	}
	if e.metrics != nil {
		e.metrics.running.Set(1)
		e.metrics.generation.Set(0)
		e.metrics.bestFitness.Set(0)
	}

	e.log.Info().
		Str("run_id", r.id).
		Int64("seed", seed).
		Int("population_size", cfg.PopulationSize).
		Int("max_generations", cfg.MaxGenerations).
		Int("matches", len(e.backtester.Matches())).
		Int("side_pool", len(p.side)).
		Int("size_pool", len(p.size)).
		Int("predicate_pool", len(p.predicate)).
		Msg("Starting optimizer run")

	go e.execute(runCtx, r, done)
	return r.id, nil
}

// Stop asks the active run to finish after the genome in progress.
// Returns false when nothing is running.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.status.IsRunning || e.current == nil {
		return false
	}
	e.current.stop.Store(true)
	e.cancel()
	e.log.Info().Str("run_id", e.current.id).Msg("Stop requested")
	return true
}

// Wait blocks until the active run, if any, has terminated
func (e *Engine) Wait() {
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// Run starts a run and blocks until it terminates
func (e *Engine) Run(ctx context.Context, overrides Overrides) (Status, error) {
	if _, err := e.Start(ctx, overrides); err != nil {
		return Status{}, err
	}
	e.Wait()

	status := e.Status()
	if status.Error != "" {
		return status, errors.New(status.Error)
	}
	return status, nil
}

// Status returns a copy of the current status
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := e.status
	s.BestFactors = append([]string(nil), e.status.BestFactors...)
	return s
}

func (e *Engine) pools() (pools, error) {
	if e.catalog == nil || e.catalog.Len() == 0 {
		return pools{}, factors.ErrEmptyCatalog
	}
	p := pools{
		side:      e.catalog.Pool(domain.RoleSide),
		size:      e.catalog.Pool(domain.RoleSize),
		predicate: e.catalog.Pool(domain.RolePredicate),
	}
	if len(p.side) == 0 {
		return p, fmt.Errorf("%w: side", ErrMissingRolePool)
	}
	if len(p.size) == 0 {
		return p, fmt.Errorf("%w: size", ErrMissingRolePool)
	}
	return p, nil
}

func (e *Engine) updateStatus(fn func(s *Status)) {
	e.mu.Lock()
	fn(&e.status)
	e.mu.Unlock()
}

func (e *Engine) execute(ctx context.Context, r *run, done chan struct{}) {
	defer close(done)

	err := e.loop(ctx, r)

	finished := time.Now()
	runStatus := discovery.RunStatusFinished
	switch {
	case err != nil:
		runStatus = discovery.RunStatusFailed
		e.log.Error().Err(err).Str("run_id", r.id).Msg("Optimizer run failed")
	case r.stopped(ctx):
		runStatus = discovery.RunStatusStopped
	}

	e.mu.Lock()
	e.status.IsRunning = false
	e.status.State = StateTerminated
	e.status.FinishedAt = finished
	if err != nil {
		e.status.Error = err.Error()
	}
	cancel := e.cancel
	e.mu.Unlock()
	cancel()

	if e.metrics != nil {
		e.metrics.running.Set(0)
	}
	if e.runs != nil {
		record := discovery.Run{
			RunID:       r.id,
			StartedAt:   r.startedAt,
			FinishedAt:  finished,
			Generations: r.generation,
			BestFitness: r.bestFitness,
			Discovered:  r.discovered,
			Repairs:     r.repairs,
			Status:      runStatus,
		}
		if err := e.runs.RunFinished(record); err != nil {
			e.log.Warn().Err(err).Str("run_id", r.id).Msg("Failed to record run end")
		}
	}

	e.log.Info().
		Str("run_id", r.id).
		Str("status", string(runStatus)).
		Int("generations", r.generation).
		Float64("best_fitness", r.bestFitness).
		Int("discovered", r.discovered).
		Int("repairs", r.repairs).
		Dur("elapsed", finished.Sub(r.startedAt)).
		Msg("Optimizer run terminated")
}

func (e *Engine) loop(ctx context.Context, r *run) error {
	population, start, err := e.initialPopulation(r)
	if err != nil {
		return err
	}

	for gen := start; gen < r.cfg.MaxGenerations; gen++ {
		if r.stopped(ctx) {
			return nil
		}

		r.generation = gen + 1
		e.updateStatus(func(s *Status) {
			s.State = StateEvaluating
			s.Generation = r.generation
		})
		if e.metrics != nil {
			e.metrics.generation.Set(float64(r.generation))
		}

		timer := utils.NewTimer("generation", e.log)
		evaluated, interrupted := e.evaluate(ctx, r, population)
		e.reportGeneration(r, population, evaluated)
		timer.Stop()

		if interrupted {
			return nil
		}

		last := gen+1 == r.cfg.MaxGenerations
		if !last {
			e.updateStatus(func(s *Status) { s.State = StateBreeding })
			population = e.breed(r, population)
		}

		if r.cfg.CheckpointPath != "" {
			cp := Checkpoint{
				RunID:       r.id,
				Generation:  gen + 1,
				BestFitness: r.bestFitness,
				Population:  checkpointPopulation(population),
				SavedAt:     time.Now(),
			}
			if err := SaveCheckpoint(r.cfg.CheckpointPath, cp); err != nil {
				e.log.Warn().Err(err).Str("path", r.cfg.CheckpointPath).Msg("Failed to save checkpoint")
			}
		}
	}
	return nil
}

// initialPopulation builds a random population, or restores one from a
// checkpoint when ResumeFrom is set
func (e *Engine) initialPopulation(r *run) ([]*Genome, int, error) {
	var population []*Genome
	start := 0

	if r.cfg.ResumeFrom != "" {
		cp, err := LoadCheckpoint(r.cfg.ResumeFrom)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to resume: %w", err)
		}

		restored, dropped := restorePopulation(e.catalog, cp.Population)
		for _, g := range restored {
			if r.ops.repair(g).Roles {
				r.repairs++
			}
		}
		if len(restored) > r.cfg.PopulationSize {
			restored = restored[:r.cfg.PopulationSize]
		}
		population = restored
		start = cp.Generation

		e.log.Info().
			Str("from", r.cfg.ResumeFrom).
			Str("previous_run", cp.RunID).
			Int("generation", cp.Generation).
			Int("restored", len(restored)).
			Int("dropped_factors", dropped).
			Msg("Resuming from checkpoint")
	}

	for len(population) < r.cfg.PopulationSize {
		population = append(population, r.ops.randomGenome())
	}

	e.updateStatus(func(s *Status) { s.Repairs = r.repairs })
	return population, start, nil
}

// evaluate scores every unevaluated genome. The second return is true when
// the run was stopped part way through.
func (e *Engine) evaluate(ctx context.Context, r *run, population []*Genome) (int, bool) {
	evaluated := 0
	for _, g := range population {
		if r.stopped(ctx) {
			return evaluated, true
		}
		if g.Evaluated {
			continue
		}

		strategy, err := backtest.StrategyFromFactors(g.Factors)
		if err != nil {
			// genomes are repaired when bred, so this only guards restores
			if r.ops.repair(g).Roles {
				r.repairs++
			}
			if strategy, err = backtest.StrategyFromFactors(g.Factors); err != nil {
				g.Fitness = r.cfg.Fitness.DisqualifiedFitness
				g.Evaluated = true
				continue
			}
		}

		report := e.backtester.Run(strategy)
		g.Report = &report
		g.Fitness = r.cfg.Fitness.Score(report)
		g.Evaluated = true
		evaluated++
		if e.metrics != nil {
			e.metrics.evaluations.Inc()
		}

		if !r.hasBest || g.Fitness > r.bestFitness {
			r.hasBest = true
			r.bestFitness = g.Fitness
			labels := strategy.Labels()
			e.updateStatus(func(s *Status) {
				s.BestFitness = g.Fitness
				s.BestFactors = labels
				s.BestROI = report.Summary.ROI
				s.BestMatches = report.Summary.TotalBets
			})
			if e.metrics != nil {
				e.metrics.bestFitness.Set(g.Fitness)
			}
		}

		if r.cfg.Fitness.Qualifies(report) {
			e.discover(r, g)
		}
	}
	return evaluated, false
}

// discover reports a qualifying genome the first time its factor set is
// seen in this run
func (e *Engine) discover(r *run, g *Genome) {
	identity := g.Identity()
	if r.seen[identity] {
		return
	}
	r.seen[identity] = true
	r.discovered++

	ids := g.Identities()
	sort.Strings(ids)
	entry := discovery.Entry{
		RunID:              r.id,
		Generation:         r.generation,
		Identity:           identity,
		Factors:            ids,
		ROI:                g.Report.Summary.ROI,
		Matches:            g.Report.Summary.TotalBets,
		WinRate:            g.Report.Summary.WinRate,
		Fitness:            g.Fitness,
		MaxDrawdownPercent: g.Report.Risk.MaxDrawdownPercent,
		Timestamp:          time.Now().UTC(),
	}

	for _, sink := range e.sinks {
		if err := sink.Record(entry); err != nil {
			e.log.Warn().Err(err).Str("run_id", r.id).Msg("Failed to record discovered strategy")
		}
	}

	e.updateStatus(func(s *Status) { s.Discovered = r.discovered })
	if e.metrics != nil {
		e.metrics.discovered.Inc()
	}

	e.log.Info().
		Str("run_id", r.id).
		Int("generation", r.generation).
		Strs("factors", g.Labels()).
		Float64("roi", entry.ROI).
		Int("matches", entry.Matches).
		Float64("fitness", entry.Fitness).
		Msg("Discovered strategy")
}

// breed builds the next population: elites first, then children of
// tournament winners
func (e *Engine) breed(r *run, population []*Genome) []*Genome {
	ranked := make([]*Genome, len(population))
	copy(ranked, population)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Fitness > ranked[j].Fitness })

	next := make([]*Genome, 0, r.cfg.PopulationSize)
	for i := 0; i < r.cfg.EliteSize && i < len(ranked); i++ {
		next = append(next, ranked[i].Clone())
	}

	repairs := 0
	for len(next) < r.cfg.PopulationSize {
		parent := r.ops.tournament(population)

		var child *Genome
		if r.ops.rng.Float64() < r.cfg.CrossoverRate {
			child = r.ops.crossover(parent, r.ops.tournament(population))
		} else {
			child = parent.Clone()
		}
		r.ops.mutate(child)

		if r.ops.repair(child).Roles {
			repairs++
			e.log.Debug().
				Str("run_id", r.id).
				Int("generation", r.generation).
				Strs("factors", child.Labels()).
				Msg("repair")
		}
		next = append(next, child)
	}

	if repairs > 0 {
		r.repairs += repairs
		e.updateStatus(func(s *Status) { s.Repairs = r.repairs })
		if e.metrics != nil {
			e.metrics.repairs.Add(float64(repairs))
		}
	}
	return next
}

func (e *Engine) reportGeneration(r *run, population []*Genome, evaluated int) {
	best := math.Inf(-1)
	sum := 0.0
	scored := 0
	for _, g := range population {
		if !g.Evaluated {
			continue
		}
		scored++
		sum += g.Fitness
		best = math.Max(best, g.Fitness)
	}
	avg := 0.0
	if scored > 0 {
		avg = sum / float64(scored)
	} else {
		best = 0
	}

	hitRate := e.cache.Stats().HitRate

	e.log.Info().
		Str("run_id", r.id).
		Int("generation", r.generation).
		Float64("best", best).
		Float64("avg", avg).
		Int("evaluated", evaluated).
		Int("discovered", r.discovered).
		Int("repairs", r.repairs).
		Float64("cache_hit_rate", hitRate).
		Msg("Generation complete")

	if e.progress == nil {
		return
	}
	err := e.progress.Report(progress.Snapshot{
		Time:         time.Now(),
		RunID:        r.id,
		Generation:   r.generation,
		Best:         best,
		Average:      avg,
		Evaluated:    evaluated,
		Discovered:   r.discovered,
		Repairs:      r.repairs,
		CacheHitRate: hitRate,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("Failed to write progress")
	}
}
