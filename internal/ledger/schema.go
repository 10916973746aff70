package ledger

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target TEXT NOT NULL,
	plan_hash TEXT NOT NULL DEFAULT '',
	profile_role TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME,
	max_level_reached INTEGER NOT NULL DEFAULT 0,
	aborted BOOLEAN NOT NULL DEFAULT 0,
	abort_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS gate_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES runs(id),
	item TEXT NOT NULL,
	gate TEXT NOT NULL,
	status TEXT NOT NULL,
	attempt INTEGER NOT NULL DEFAULT 1,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL DEFAULT '',
	stdout_path TEXT NOT NULL DEFAULT '',
	stderr_path TEXT NOT NULL DEFAULT '',
	meta TEXT NOT NULL DEFAULT '{}',
	artifacts TEXT NOT NULL DEFAULT '[]',
	recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS weave_operations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES runs(id),
	item TEXT NOT NULL,
	strategy TEXT NOT NULL,
	success BOOLEAN NOT NULL DEFAULT 0,
	commit_sha TEXT NOT NULL DEFAULT '',
	conflicts TEXT NOT NULL DEFAULT '[]',
	message TEXT NOT NULL DEFAULT '',
	rollback_at TEXT NOT NULL DEFAULT '',
	recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS safety_alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES runs(id),
	level TEXT NOT NULL,
	signal TEXT NOT NULL,
	reason TEXT NOT NULL,
	triggered_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_gate_results_run ON gate_results(run_id);
CREATE INDEX IF NOT EXISTS idx_gate_results_item ON gate_results(run_id, item);
CREATE INDEX IF NOT EXISTS idx_weave_operations_run ON weave_operations(run_id);
CREATE INDEX IF NOT EXISTS idx_safety_alerts_run ON safety_alerts(run_id);
`

// migrate applies incremental schema migrations for existing databases.
// No migrations exist yet; the hook is kept so future additive schema
// changes (new columns, new tables) have a home without touching Open.
func migrate(db *sql.DB) error {
	return nil
}
