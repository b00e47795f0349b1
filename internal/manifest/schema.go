// Package manifest provides the run catalog (manifest.db) recording every
// pipeline run and every table file it wrote.
package manifest

// CreateRunsTableSQL creates the runs table. One row per pipeline run; reruns
// of a day add rows, LatestRun picks the newest.
const CreateRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    day TEXT NOT NULL,
    batch_id TEXT NOT NULL,
    source_file TEXT NOT NULL,
    format TEXT NOT NULL,
    lines INTEGER NOT NULL,
    bronze_rows INTEGER NOT NULL,
    quarantine_json TEXT NOT NULL,
    silver_rows INTEGER NOT NULL,
    gold_events INTEGER NOT NULL,
    sessions INTEGER NOT NULL,
    users INTEGER NOT NULL,
    purchases INTEGER NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
)`

// CreateTablesTableSQL creates the tables table. A file path is unique: a
// rerun that rewrites a file replaces its row.
const CreateTablesTableSQL = `
CREATE TABLE IF NOT EXISTS tables (
    file_id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    table_name TEXT NOT NULL,
    day TEXT NOT NULL,
    kind TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    row_count INTEGER NOT NULL,
    size_bytes INTEGER NOT NULL,
    format TEXT NOT NULL,
    created_at INTEGER NOT NULL
)`

var CreateIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_runs_day ON runs(day, finished_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tables_day ON tables(day, kind, table_name)`,
}

// AllSchemaSQL returns all SQL statements needed to initialize the catalog.
func AllSchemaSQL() []string {
	return append([]string{CreateRunsTableSQL, CreateTablesTableSQL}, CreateIndexesSQL...)
}
