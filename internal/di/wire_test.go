package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlab/ahlab/internal/config"
	"github.com/ahlab/ahlab/internal/modules/discovery"
	"github.com/ahlab/ahlab/internal/modules/optimizer"
	testingpkg "github.com/ahlab/ahlab/internal/testing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:          dir,
		DataSources:      []string{testingpkg.WriteFile(t, "2023.json", testingpkg.MatchDocumentFixture)},
		CatalogPath:      testingpkg.WriteFile(t, "factors.json", testingpkg.CatalogFixtureJSON),
		DatabasePath:     filepath.Join(dir, "ahlab.db"),
		DiscoveryLogPath: filepath.Join(dir, "discovered.jsonl"),
		ProgressLogPath:  filepath.Join(dir, "progress.log"),
		Port:             8080,
	}
}

func TestWire(t *testing.T) {
	container, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, container.Close()) })

	assert.NotNil(t, container.DB)
	assert.NotNil(t, container.Registry)
	assert.Len(t, container.Matches, 2)
	assert.Equal(t, testingpkg.NewCatalogFixture().Len(), container.Catalog.Len())
	assert.NotNil(t, container.Backtest)
	assert.NotNil(t, container.Engine)
	assert.NotNil(t, container.Store)
	assert.NotNil(t, container.DiscoveryLog)
	assert.NotNil(t, container.Progress)
	assert.NoError(t, container.DB.HealthCheck(context.Background()))
}

func TestWire_RunRecordedInStore(t *testing.T) {
	container, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	pop, gens := 4, 1
	status, err := container.Engine.Run(context.Background(), optimizer.Overrides{
		PopulationSize: &pop,
		MaxGenerations: &gens,
		EliteSize:      new(int),
	})
	require.NoError(t, err)

	runs, err := container.Store.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, status.RunID, runs[0].RunID)
	assert.Equal(t, discovery.RunStatusFinished, runs[0].Status)
}

func TestWire_MissingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := Wire(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to load factor catalog")
}

func TestWire_NoMatches(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataSources = nil

	_, err := Wire(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to load matches")
}
