package optimizer

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/backtest"
	"github.com/ahlab/ahlab/internal/modules/discovery"
	"github.com/ahlab/ahlab/internal/modules/expression"
	"github.com/ahlab/ahlab/internal/modules/factors"
	"github.com/ahlab/ahlab/internal/modules/matches"
	"github.com/ahlab/ahlab/internal/modules/settlement"
	"github.com/ahlab/ahlab/internal/progress"
	testingpkg "github.com/ahlab/ahlab/internal/testing"
)

type stubBacktester struct {
	matches []domain.MatchRecord
	run     func(backtest.Strategy) backtest.Report
	calls   atomic.Int64
}

func (s *stubBacktester) Run(strategy backtest.Strategy) backtest.Report {
	s.calls.Add(1)
	r := s.run(strategy)
	r.Strategy = strategy
	return r
}

func (s *stubBacktester) Matches() []domain.MatchRecord {
	return s.matches
}

type recordingSink struct {
	mu      sync.Mutex
	entries []discovery.Entry
}

func (s *recordingSink) Record(e discovery.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

type recordingRuns struct {
	mu       sync.Mutex
	started  []discovery.Run
	finished []discovery.Run
}

func (r *recordingRuns) RunStarted(run discovery.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, run)
	return nil
}

func (r *recordingRuns) RunFinished(run discovery.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, run)
	return nil
}

type recordingProgress struct {
	mu        sync.Mutex
	snapshots []progress.Snapshot
}

func (p *recordingProgress) Report(s progress.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
	return nil
}

func (p *recordingProgress) generations() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.snapshots))
	for i, s := range p.snapshots {
		out[i] = s.Generation
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 12
	cfg.MaxGenerations = 3
	cfg.EliteSize = 2
	cfg.Seed = 7
	return cfg
}

func constantReport(bets int, roi, ddPct float64) func(backtest.Strategy) backtest.Report {
	return func(backtest.Strategy) backtest.Report { return report(bets, roi, ddPct) }
}

func newStubEngine(t *testing.T, cfg Config, run func(backtest.Strategy) backtest.Report) (*Engine, *stubBacktester, *cache.Layer) {
	t.Helper()
	layer := cache.NewLayer(nil, zerolog.Nop())
	bt := &stubBacktester{matches: testingpkg.NewMatchFixtures(10), run: run}
	return NewEngine(testingpkg.NewCatalogFixture(), bt, layer, cfg, zerolog.Nop()), bt, layer
}

func TestEngine_SmallDatasetNeverQualifies(t *testing.T) {
	layer := cache.NewLayer(nil, zerolog.Nop())
	eval := expression.NewEvaluator(layer, zerolog.Nop())
	filter := factors.NewFilter(eval, layer, zerolog.Nop())
	resolver := settlement.NewResolver(eval, settlement.NewCalculator(layer), zerolog.Nop())
	svc := backtest.NewService(testingpkg.NewMatchFixtures(8), filter, resolver, layer, zerolog.Nop())

	engine := NewEngine(testingpkg.NewCatalogFixture(), svc, layer, testConfig(), zerolog.Nop())
	sink := &recordingSink{}
	engine.AddSink(sink)

	status, err := engine.Run(context.Background(), Overrides{})
	require.NoError(t, err)

	assert.False(t, status.IsRunning)
	assert.Equal(t, StateTerminated, status.State)
	assert.Equal(t, 3, status.Generation)
	assert.LessOrEqual(t, status.BestFitness, -960.0)
	assert.GreaterOrEqual(t, status.BestFitness, -1000.0)
	assert.Zero(t, status.Discovered)
	assert.Empty(t, sink.entries)
	assert.NotEmpty(t, status.BestFactors)
}

func TestEngine_DiscoveryDedupedAcrossGenerations(t *testing.T) {
	cfg := testConfig()
	cfg.MaxGenerations = 5
	engine, bt, _ := newStubEngine(t, cfg, constantReport(100, 12, 5))

	sink := &recordingSink{}
	runs := &recordingRuns{}
	prog := &recordingProgress{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	engine.AddSink(sink)
	engine.SetRunRecorder(runs)
	engine.SetProgress(prog)
	engine.SetMetrics(metrics)

	status, err := engine.Run(context.Background(), Overrides{})
	require.NoError(t, err)

	require.NotEmpty(t, sink.entries)
	seen := map[string]bool{}
	for _, e := range sink.entries {
		assert.False(t, seen[e.Identity], "duplicate discovery %s", e.Identity)
		seen[e.Identity] = true
		assert.Equal(t, status.RunID, e.RunID)
		assert.True(t, sort.StringsAreSorted(e.Factors))
		assert.Equal(t, 100, e.Matches)
		assert.InDelta(t, 12, e.ROI, 1e-9)
	}
	assert.Equal(t, len(sink.entries), status.Discovered)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, prog.generations())

	require.Len(t, runs.started, 1)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, discovery.RunStatusFinished, runs.finished[0].Status)
	assert.Equal(t, 5, runs.finished[0].Generations)
	assert.Equal(t, status.Discovered, runs.finished[0].Discovered)

	assert.Equal(t, float64(len(sink.entries)), testutil.ToFloat64(metrics.discovered))
	assert.Equal(t, float64(bt.calls.Load()), testutil.ToFloat64(metrics.evaluations))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.running))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.generation))
}

func TestEngine_SameSeedSameSearch(t *testing.T) {
	score := func(s backtest.Strategy) backtest.Report {
		return report(50+10*len(s.Predicates), 5+float64(len(s.Predicates)), 10)
	}

	run := func() Status {
		engine, _, _ := newStubEngine(t, testConfig(), score)
		status, err := engine.Run(context.Background(), Overrides{})
		require.NoError(t, err)
		return status
	}

	a, b := run(), run()
	assert.Equal(t, a.BestFactors, b.BestFactors)
	assert.Equal(t, a.BestFitness, b.BestFitness)
	assert.Equal(t, a.Discovered, b.Discovered)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestEngine_StopAndStatus(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	engine, _, _ := newStubEngine(t, testConfig(), func(backtest.Strategy) backtest.Report {
		once.Do(func() { close(started) })
		<-release
		return report(100, 12, 5)
	})
	runs := &recordingRuns{}
	engine.SetRunRecorder(runs)

	assert.Equal(t, StateIdle, engine.Status().State)
	assert.False(t, engine.Stop())

	id, err := engine.Start(context.Background(), Overrides{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never evaluated a genome")
	}

	status := engine.Status()
	assert.True(t, status.IsRunning)
	assert.Equal(t, id, status.RunID)
	assert.Equal(t, StateEvaluating, status.State)
	assert.Equal(t, 1, status.Generation)

	_, err = engine.Start(context.Background(), Overrides{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	assert.True(t, engine.Stop())
	close(release)
	engine.Wait()

	status = engine.Status()
	assert.False(t, status.IsRunning)
	assert.Equal(t, StateTerminated, status.State)
	assert.Equal(t, 1, status.Generation)
	assert.False(t, status.FinishedAt.IsZero())
	assert.False(t, engine.Stop())

	require.Len(t, runs.finished, 1)
	assert.Equal(t, discovery.RunStatusStopped, runs.finished[0].Status)
}

func TestEngine_CancelledContext(t *testing.T) {
	engine, bt, _ := newStubEngine(t, testConfig(), constantReport(100, 12, 5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := engine.Run(ctx, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, status.State)
	assert.Zero(t, status.Generation)
	assert.Zero(t, bt.calls.Load())
}

func TestEngine_StartValidation(t *testing.T) {
	layer := cache.NewLayer(nil, zerolog.Nop())
	bt := &stubBacktester{matches: testingpkg.NewMatchFixtures(10), run: constantReport(0, 0, 0)}

	t.Run("empty catalog", func(t *testing.T) {
		engine := NewEngine(factors.NewCatalog(nil), bt, layer, testConfig(), zerolog.Nop())
		_, err := engine.Start(context.Background(), Overrides{})
		assert.ErrorIs(t, err, factors.ErrEmptyCatalog)
		assert.Equal(t, StateIdle, engine.Status().State)
	})

	t.Run("missing size pool", func(t *testing.T) {
		full := testingpkg.NewCatalogFixture()
		defs := append(full.Pool(domain.RoleSide), full.Pool(domain.RolePredicate)...)
		engine := NewEngine(factors.NewCatalog(defs), bt, layer, testConfig(), zerolog.Nop())
		_, err := engine.Start(context.Background(), Overrides{})
		assert.ErrorIs(t, err, ErrMissingRolePool)
	})

	t.Run("no matches", func(t *testing.T) {
		empty := &stubBacktester{run: constantReport(0, 0, 0)}
		engine := NewEngine(testingpkg.NewCatalogFixture(), empty, layer, testConfig(), zerolog.Nop())
		_, err := engine.Start(context.Background(), Overrides{})
		assert.ErrorIs(t, err, matches.ErrNoMatches)
	})

	t.Run("invalid overrides", func(t *testing.T) {
		engine := NewEngine(testingpkg.NewCatalogFixture(), bt, layer, testConfig(), zerolog.Nop())
		_, err := engine.Start(context.Background(), Overrides{PopulationSize: ptr(1)})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestEngine_ClearsCacheOnStart(t *testing.T) {
	engine, _, layer := newStubEngine(t, testConfig(), constantReport(100, 12, 5))
	probe := cache.Register[int](layer, "probe")
	probe.Put("stale", 1)

	_, err := engine.Run(context.Background(), Overrides{})
	require.NoError(t, err)
	assert.Zero(t, probe.Len())
}

func TestEngine_CheckpointResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ckpt")
	score := constantReport(100, 12, 5)

	first, _, _ := newStubEngine(t, testConfig(), score)
	status, err := first.Run(context.Background(), Overrides{
		MaxGenerations: ptr(2),
		CheckpointPath: ptr(path),
	})
	require.NoError(t, err)

	cp, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, status.RunID, cp.RunID)
	assert.Equal(t, 2, cp.Generation)
	assert.Len(t, cp.Population, 12)

	second, _, _ := newStubEngine(t, testConfig(), score)
	prog := &recordingProgress{}
	second.SetProgress(prog)

	status, err = second.Run(context.Background(), Overrides{
		MaxGenerations: ptr(4),
		ResumeFrom:     ptr(path),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, status.Generation)
	assert.Equal(t, []int{3, 4}, prog.generations())
}

func TestEngine_ResumeMissingCheckpointFails(t *testing.T) {
	engine, _, _ := newStubEngine(t, testConfig(), constantReport(100, 12, 5))
	status, err := engine.Run(context.Background(), Overrides{
		ResumeFrom: ptr(filepath.Join(t.TempDir(), "missing.ckpt")),
	})
	require.Error(t, err)
	assert.Contains(t, status.Error, "failed to resume")
	assert.Equal(t, StateTerminated, status.State)
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cp.msgpack")
	saved := Checkpoint{
		RunID:       "run-1",
		Generation:  4,
		BestFitness: 42.5,
		Population: [][]string{
			{"side|side|home", "size|size|flat", "predicate|form|gap"},
			{"side|side|away", "size|size|flat", "predicate|retired|factor"},
		},
		SavedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, SaveCheckpoint(path, saved))

	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, saved.RunID, loaded.RunID)
	assert.Equal(t, saved.Generation, loaded.Generation)
	assert.Equal(t, saved.Population, loaded.Population)
	assert.True(t, saved.SavedAt.Equal(loaded.SavedAt))

	population, dropped := restorePopulation(testingpkg.NewCatalogFixture(), loaded.Population)
	require.Len(t, population, 2)
	assert.Equal(t, 1, dropped)
	assert.True(t, population[0].Valid())
	assert.Len(t, population[1].Factors, 2)
}
