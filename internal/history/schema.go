// internal/history/schema.go
package history

// SchemaVersion for migrations
const SchemaVersion = 1

// CreateSchema returns the SQL to create all tables
func CreateSchema() string {
	return `
    -- Schema version tracking
    CREATE TABLE IF NOT EXISTS schema_version (
        version INTEGER PRIMARY KEY
    );

    -- One row per verification run
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        target TEXT NOT NULL,
        started_at TEXT NOT NULL,
        finished_at TEXT NOT NULL,
        passed INTEGER NOT NULL,
        error TEXT,
        screenshot TEXT
    );

    CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

    -- Step outcomes, in run order
    CREATE TABLE IF NOT EXISTS outcomes (
        run_id TEXT NOT NULL,
        seq INTEGER NOT NULL,
        name TEXT NOT NULL,
        status TEXT NOT NULL,
        detail TEXT,
        soft_fail INTEGER NOT NULL DEFAULT 0,
        duration_ms INTEGER NOT NULL,
        PRIMARY KEY (run_id, seq),
        FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
    );
    `
}
