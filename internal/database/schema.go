package database

const schema = `
CREATE TABLE IF NOT EXISTS optimizer_runs (
    run_id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    generations INTEGER NOT NULL DEFAULT 0,
    best_fitness REAL,
    discovered INTEGER NOT NULL DEFAULT 0,
    repairs INTEGER NOT NULL DEFAULT 0,
    config_json TEXT NOT NULL,
    status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS discovered_strategies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    generation INTEGER NOT NULL,
    identity TEXT NOT NULL,
    factors_json TEXT NOT NULL,
    roi REAL NOT NULL,
    matches INTEGER NOT NULL,
    win_rate REAL NOT NULL,
    fitness REAL NOT NULL,
    max_drawdown_percent REAL NOT NULL,
    discovered_at INTEGER NOT NULL,
    UNIQUE (run_id, identity)
);

CREATE INDEX IF NOT EXISTS idx_discovered_fitness ON discovered_strategies (fitness DESC);
CREATE INDEX IF NOT EXISTS idx_discovered_run ON discovered_strategies (run_id);
`
