// Package ledger provides SQLite-backed persistence of run history: per-
// run bookkeeping, gate-result records, weave-operation records, and
// safety alerts. This is observability only — spec.md is explicit that
// eligibility decisions are driven by the in-memory execstate.State, not
// read back out of this store.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/safety"
	"github.com/antigravity-dev/lex-pr-runner/internal/weave"
)

// Store wraps a SQLite-backed run-history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at dbPath and ensures the
// schema exists, enabling WAL mode for concurrent readers during a run.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// StartRun inserts a new run record and returns its id.
func (s *Store) StartRun(target, planHash, profileRole string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (target, plan_hash, profile_role) VALUES (?, ?, ?)`,
		target, planHash, profileRole,
	)
	if err != nil {
		return 0, fmt.Errorf("ledger: start run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun marks runID complete, recording the highest autopilot level
// reached and whether a safety abort occurred.
func (s *Store) FinishRun(runID int64, maxLevelReached int, aborted bool, abortReason string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = datetime('now'), max_level_reached = ?, aborted = ?, abort_reason = ? WHERE id = ?`,
		maxLevelReached, aborted, abortReason, runID,
	)
	if err != nil {
		return fmt.Errorf("ledger: finish run %d: %w", runID, err)
	}
	return nil
}

// Run is one recorded autopilot/gate-execution run.
type Run struct {
	ID              int64
	Target          string
	PlanHash        string
	ProfileRole     string
	StartedAt       time.Time
	FinishedAt      sql.NullTime
	MaxLevelReached int
	Aborted         bool
	AbortReason     string
}

func (s *Store) GetRun(runID int64) (*Run, error) {
	var r Run
	err := s.db.QueryRow(
		`SELECT id, target, plan_hash, profile_role, started_at, finished_at, max_level_reached, aborted, abort_reason
		 FROM runs WHERE id = ?`, runID,
	).Scan(&r.ID, &r.Target, &r.PlanHash, &r.ProfileRole, &r.StartedAt, &r.FinishedAt, &r.MaxLevelReached, &r.Aborted, &r.AbortReason)
	if err != nil {
		return nil, fmt.Errorf("ledger: get run %d: %w", runID, err)
	}
	return &r, nil
}

// RecordGateResult persists one gate execution attempt.
func (s *Store) RecordGateResult(runID int64, result plan.GateResult, attempt int) error {
	meta, err := json.Marshal(result.Meta)
	if err != nil {
		return fmt.Errorf("ledger: marshal gate meta: %w", err)
	}
	artifacts, err := json.Marshal(result.Artifacts)
	if err != nil {
		return fmt.Errorf("ledger: marshal gate artifacts: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO gate_results (run_id, item, gate, status, attempt, duration_ms, started_at, stdout_path, stderr_path, meta, artifacts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, result.Item, result.Gate, result.Status, attempt, result.DurationMS, result.StartedAt,
		result.StdoutPath, result.StderrPath, string(meta), string(artifacts),
	)
	if err != nil {
		return fmt.Errorf("ledger: record gate result: %w", err)
	}
	return nil
}

// GateResultsForRun returns every gate result recorded for runID, oldest
// first.
func (s *Store) GateResultsForRun(runID int64) ([]plan.GateResult, error) {
	rows, err := s.db.Query(
		`SELECT item, gate, status, duration_ms, started_at, stdout_path, stderr_path, meta, artifacts
		 FROM gate_results WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: query gate results: %w", err)
	}
	defer rows.Close()

	var out []plan.GateResult
	for rows.Next() {
		var r plan.GateResult
		var metaJSON, artifactsJSON string
		if err := rows.Scan(&r.Item, &r.Gate, &r.Status, &r.DurationMS, &r.StartedAt, &r.StdoutPath, &r.StderrPath, &metaJSON, &artifactsJSON); err != nil {
			return nil, fmt.Errorf("ledger: scan gate result: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Meta); err != nil {
			return nil, fmt.Errorf("ledger: unmarshal gate meta: %w", err)
		}
		if err := json.Unmarshal([]byte(artifactsJSON), &r.Artifacts); err != nil {
			return nil, fmt.Errorf("ledger: unmarshal gate artifacts: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordWeaveOperation persists one weave.Result.
func (s *Store) RecordWeaveOperation(runID int64, result weave.Result) error {
	conflicts, err := json.Marshal(result.Conflicts)
	if err != nil {
		return fmt.Errorf("ledger: marshal conflicts: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO weave_operations (run_id, item, strategy, success, commit_sha, conflicts, message, rollback_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, result.Item, result.Strategy, result.Success, result.CommitSHA, string(conflicts), result.Message, result.RollbackAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: record weave operation: %w", err)
	}
	return nil
}

// WeaveOperationsForRun returns every weave operation recorded for
// runID, oldest first.
func (s *Store) WeaveOperationsForRun(runID int64) ([]weave.Result, error) {
	rows, err := s.db.Query(
		`SELECT item, strategy, success, commit_sha, conflicts, message, rollback_at
		 FROM weave_operations WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: query weave operations: %w", err)
	}
	defer rows.Close()

	var out []weave.Result
	for rows.Next() {
		var r weave.Result
		var conflictsJSON string
		if err := rows.Scan(&r.Item, &r.Strategy, &r.Success, &r.CommitSHA, &conflictsJSON, &r.Message, &r.RollbackAt); err != nil {
			return nil, fmt.Errorf("ledger: scan weave operation: %w", err)
		}
		if err := json.Unmarshal([]byte(conflictsJSON), &r.Conflicts); err != nil {
			return nil, fmt.Errorf("ledger: unmarshal conflicts: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordSafetyAlert persists one safety.Alert.
func (s *Store) RecordSafetyAlert(runID int64, alert safety.Alert) error {
	_, err := s.db.Exec(
		`INSERT INTO safety_alerts (run_id, level, signal, reason, triggered_at) VALUES (?, ?, ?, ?, ?)`,
		runID, alert.Level, alert.Signal, alert.Reason, alert.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: record safety alert: %w", err)
	}
	return nil
}

// SafetyAlertsForRun returns every alert recorded for runID, oldest first.
func (s *Store) SafetyAlertsForRun(runID int64) ([]safety.Alert, error) {
	rows, err := s.db.Query(
		`SELECT level, signal, reason, triggered_at FROM safety_alerts WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: query safety alerts: %w", err)
	}
	defer rows.Close()

	var out []safety.Alert
	for rows.Next() {
		var a safety.Alert
		if err := rows.Scan(&a.Level, &a.Signal, &a.Reason, &a.TriggeredAt); err != nil {
			return nil, fmt.Errorf("ledger: scan safety alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
