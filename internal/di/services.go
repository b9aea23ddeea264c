package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/config"
	"github.com/ahlab/ahlab/internal/modules/backtest"
	"github.com/ahlab/ahlab/internal/modules/discovery"
	"github.com/ahlab/ahlab/internal/modules/expression"
	"github.com/ahlab/ahlab/internal/modules/factors"
	"github.com/ahlab/ahlab/internal/modules/matches"
	"github.com/ahlab/ahlab/internal/modules/optimizer"
	"github.com/ahlab/ahlab/internal/modules/settlement"
	"github.com/ahlab/ahlab/internal/progress"
)

// InitializeServices loads the data and builds the pipeline and optimizer
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	container.Registry = reg

	// Data
	records, err := matches.NewRepository(log).Load(cfg.DataSources)
	if err != nil {
		return fmt.Errorf("failed to load matches: %w", err)
	}
	container.Matches = records

	catalog, err := factors.LoadCatalog(cfg.CatalogPath, log)
	if err != nil {
		return fmt.Errorf("failed to load factor catalog: %w", err)
	}
	container.Catalog = catalog

	// Pipeline
	container.Cache = cache.NewLayer(cache.NewMetrics(reg), log)
	container.Evaluator = expression.NewEvaluator(container.Cache, log)
	container.Filter = factors.NewFilter(container.Evaluator, container.Cache, log)
	container.Calculator = settlement.NewCalculator(container.Cache)
	container.Resolver = settlement.NewResolver(container.Evaluator, container.Calculator, log)
	container.Backtest = backtest.NewService(records, container.Filter, container.Resolver, container.Cache, log)

	// Optimizer
	defaults, err := cfg.OptimizerDefaults()
	if err != nil {
		return err
	}
	engine := optimizer.NewEngine(catalog, container.Backtest, container.Cache, defaults, log)
	engine.SetMetrics(optimizer.NewMetrics(reg))

	container.Store = discovery.NewStore(container.DB.Conn(), log)
	engine.AddSink(container.Store)
	engine.SetRunRecorder(container.Store)

	if cfg.DiscoveryLogPath != "" {
		jsonl, err := discovery.OpenJSONL(cfg.DiscoveryLogPath)
		if err != nil {
			return err
		}
		container.DiscoveryLog = jsonl
		engine.AddSink(jsonl)
	}

	if cfg.ProgressLogPath != "" {
		progressLog, err := progress.Open(cfg.ProgressLogPath)
		if err != nil {
			return err
		}
		container.Progress = progressLog
		engine.SetProgress(progressLog)
	}

	container.Engine = engine

	log.Info().
		Int("matches", len(records)).
		Int("factors", catalog.Len()).
		Msg("Services initialized")
	return nil
}
