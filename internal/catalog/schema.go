package catalog

// Schema definitions for the run catalog (catalog.db). The catalog is the
// source of truth for which profiling runs exist and where their report
// artifacts live.

// createRunsTableSQL creates the core runs table. Run IDs are ULID strings,
// so the primary key doubles as a creation-time ordering.
const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    format TEXT NOT NULL DEFAULT '',
    event_count INTEGER NOT NULL DEFAULT 0,
    user_count INTEGER NOT NULL DEFAULT 0,
    session_count INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'completed',
    warnings TEXT NOT NULL DEFAULT '[]',
    config TEXT NOT NULL DEFAULT '{}',
    json_path TEXT NOT NULL DEFAULT '',
    compressed_path TEXT NOT NULL DEFAULT ''
)`

// createRunsCreatedIndexSQL supports TTL-based retention sweeps.
const createRunsCreatedIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`

// schemaSQL returns all statements needed to initialize the run catalog.
func schemaSQL() []string {
	return []string{
		createRunsTableSQL,
		createRunsCreatedIndexSQL,
	}
}
