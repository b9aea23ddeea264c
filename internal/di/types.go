/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and CLI commands for access to services.
 */
package di

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahlab/ahlab/internal/cache"
	"github.com/ahlab/ahlab/internal/config"
	"github.com/ahlab/ahlab/internal/database"
	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/backtest"
	"github.com/ahlab/ahlab/internal/modules/discovery"
	"github.com/ahlab/ahlab/internal/modules/expression"
	"github.com/ahlab/ahlab/internal/modules/factors"
	"github.com/ahlab/ahlab/internal/modules/optimizer"
	"github.com/ahlab/ahlab/internal/modules/settlement"
	"github.com/ahlab/ahlab/internal/progress"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Database: run history and discovered strategies (sqlite)
 * - Data: loaded matches and the factor catalog, read-only after Wire
 * - Pipeline: evaluator -> filter -> resolver/calculator -> backtest, sharing one cache layer
 * - Optimizer: the engine with its discovery sinks and progress log
 */
type Container struct {
	Config *config.Config

	// Database
	DB *database.DB

	// Metrics
	Registry *prometheus.Registry

	// Data
	Matches []domain.MatchRecord
	Catalog *factors.Catalog

	// Pipeline
	Cache      *cache.Layer
	Evaluator  *expression.Evaluator
	Filter     *factors.Filter
	Calculator *settlement.Calculator
	Resolver   *settlement.Resolver
	Backtest   *backtest.Service

	// Optimizer
	Engine       *optimizer.Engine
	Store        *discovery.Store
	DiscoveryLog *discovery.JSONLWriter
	Progress     *progress.Log
}

// Close releases files and the database. Safe on a partially wired container.
func (c *Container) Close() error {
	var errs []error
	if c.Progress != nil {
		errs = append(errs, c.Progress.Close())
	}
	if c.DiscoveryLog != nil {
		errs = append(errs, c.DiscoveryLog.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
