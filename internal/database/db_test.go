package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MigrateIsIdempotent(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "nested", "ahlab.db"), Name: "ahlab"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	var count int
	err = db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('optimizer_runs', 'discovered_strategies')`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestWithTransaction_RollsBack(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "tx.db"), Profile: ProfileScratch, Name: "tx"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO optimizer_runs (run_id, started_at, config_json, status) VALUES ('r1', 1, '{}', 'running')`)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM optimizer_runs`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestBuildConnectionString(t *testing.T) {
	assert.Contains(t, buildConnectionString("x.db", ProfileDurable), "synchronous(FULL)")
	assert.Contains(t, buildConnectionString("x.db", ProfileScratch), "synchronous(OFF)")
	assert.Contains(t, buildConnectionString("x.db", ProfileStandard), "synchronous(NORMAL)")
}
