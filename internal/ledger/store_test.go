package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/safety"
	"github.com/antigravity-dev/lex-pr-runner/internal/weave"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartRunAndGetRun(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.StartRun("main", "sha256:abc", "development")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if runID == 0 {
		t.Fatal("expected non-zero run id")
	}

	run, err := s.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Target != "main" || run.PlanHash != "sha256:abc" || run.ProfileRole != "development" {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.FinishedAt.Valid {
		t.Error("expected FinishedAt to be unset before FinishRun")
	}
}

func TestFinishRun(t *testing.T) {
	s := openTestStore(t)
	runID, _ := s.StartRun("main", "", "")

	if err := s.FinishRun(runID, 3, true, "circuit breaker: retry loop"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := s.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !run.FinishedAt.Valid || run.MaxLevelReached != 3 || !run.Aborted || run.AbortReason == "" {
		t.Errorf("unexpected run after finish: %+v", run)
	}
}

func TestRecordAndFetchGateResults(t *testing.T) {
	s := openTestStore(t)
	runID, _ := s.StartRun("main", "", "")

	result := plan.GateResult{
		Item:       "PR-1",
		Gate:       "test",
		Status:     plan.StatusPass,
		DurationMS: 1500,
		StartedAt:  "2026-07-30T00:00:00Z",
		Meta:       map[string]string{"exit_code": "0"},
		Artifacts:  []string{"coverage.out@deadbeef"},
	}
	if err := s.RecordGateResult(runID, result, 1); err != nil {
		t.Fatalf("RecordGateResult: %v", err)
	}

	got, err := s.GateResultsForRun(runID)
	if err != nil {
		t.Fatalf("GateResultsForRun: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Item != "PR-1" || got[0].Gate != "test" || got[0].Status != plan.StatusPass {
		t.Errorf("unexpected result: %+v", got[0])
	}
	if got[0].Meta["exit_code"] != "0" {
		t.Errorf("unexpected meta: %+v", got[0].Meta)
	}
	if len(got[0].Artifacts) != 1 || got[0].Artifacts[0] != "coverage.out@deadbeef" {
		t.Errorf("unexpected artifacts: %+v", got[0].Artifacts)
	}
}

func TestRecordAndFetchWeaveOperations(t *testing.T) {
	s := openTestStore(t)
	runID, _ := s.StartRun("main", "", "")

	result := weave.Result{
		Item:       "PR-2",
		Strategy:   weave.StrategyMergeWeave,
		Success:    false,
		Conflicts:  []string{"a.go", "b.go"},
		Message:    "merge conflict",
		RollbackAt: "abc123",
	}
	if err := s.RecordWeaveOperation(runID, result); err != nil {
		t.Fatalf("RecordWeaveOperation: %v", err)
	}

	got, err := s.WeaveOperationsForRun(runID)
	if err != nil {
		t.Fatalf("WeaveOperationsForRun: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Item != "PR-2" || got[0].Success || len(got[0].Conflicts) != 2 {
		t.Errorf("unexpected result: %+v", got[0])
	}
}

func TestRecordAndFetchSafetyAlerts(t *testing.T) {
	s := openTestStore(t)
	runID, _ := s.StartRun("main", "", "")

	alert := safety.Alert{Level: "critical", Signal: "retry_loop", Reason: "too many retries", TriggeredAt: time.Now()}
	if err := s.RecordSafetyAlert(runID, alert); err != nil {
		t.Fatalf("RecordSafetyAlert: %v", err)
	}

	got, err := s.SafetyAlertsForRun(runID)
	if err != nil {
		t.Fatalf("SafetyAlertsForRun: %v", err)
	}
	if len(got) != 1 || got[0].Signal != "retry_loop" {
		t.Errorf("unexpected alerts: %+v", got)
	}
}

func TestGateResultsForRun_ScopedToRun(t *testing.T) {
	s := openTestStore(t)
	run1, _ := s.StartRun("main", "", "")
	run2, _ := s.StartRun("main", "", "")

	s.RecordGateResult(run1, plan.GateResult{Item: "PR-1", Gate: "test", Status: plan.StatusPass}, 1)
	s.RecordGateResult(run2, plan.GateResult{Item: "PR-2", Gate: "test", Status: plan.StatusFail}, 1)

	got, err := s.GateResultsForRun(run1)
	if err != nil {
		t.Fatalf("GateResultsForRun: %v", err)
	}
	if len(got) != 1 || got[0].Item != "PR-1" {
		t.Errorf("expected only run1's results, got %+v", got)
	}
}
