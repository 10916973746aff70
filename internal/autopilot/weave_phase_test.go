package autopilot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/lex-pr-runner/internal/gate"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
)

func TestWeaveLevels_RunsGatesAfterEachLevel(t *testing.T) {
	repo := setupTestRepo(t)
	branchOff(t, repo, "main", "pr-1", "pr1.txt", "pr1\n")

	p := &plan.Plan{
		SchemaVersion: "1.0.0",
		Target:        "main",
		Items: []plan.PlanItem{
			{Name: "PR-1", Branch: "pr-1", Strategy: plan.StrategyMergeWeave, Gates: []plan.Gate{
				{Name: "check", Run: "true", Runtime: plan.RuntimeLocal},
			}},
		},
	}

	cfg, _ := NewConfig(Config{MaxLevel: LevelWeave})
	e := &Engine{Config: cfg, Profile: writableProfile(repo), BranchPrefix: "integration/"}
	e.Gates = &gate.Engine{Local: gate.NewLocalRuntime(), ResultsDir: t.TempDir(), MaxWorkers: 1}

	levels := [][]string{{"PR-1"}}
	results, gateResults, branch, err := e.weaveLevels(context.Background(), repo, p, levels, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("weaveLevels: %v", err)
	}
	if branch == "" {
		t.Fatal("expected a named integration branch")
	}
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("expected a successful weave, got %+v", results)
	}
	if len(gateResults) != 1 || gateResults[0].Gate != "check" || gateResults[0].Status != plan.StatusPass {
		t.Fatalf("expected the level's gate to run and pass, got %+v", gateResults)
	}
}

func TestWeaveLevels_DryRunSkipsGitOperations(t *testing.T) {
	repo := setupTestRepo(t)

	p := &plan.Plan{
		SchemaVersion: "1.0.0",
		Target:        "main",
		Items:         []plan.PlanItem{{Name: "PR-1", Branch: "pr-1"}},
	}
	cfg, _ := NewConfig(Config{MaxLevel: LevelWeave, DryRun: true})
	e := &Engine{Config: cfg, Profile: writableProfile(repo), BranchPrefix: "integration/"}

	results, gateResults, branch, err := e.weaveLevels(context.Background(), repo, p, [][]string{{"PR-1"}}, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("weaveLevels: %v", err)
	}
	if branch == "" {
		t.Fatal("expected a computed integration branch name even in dry-run")
	}
	if len(results) != 1 || results[0].Message != "dry-run: no-op" {
		t.Fatalf("expected a recorded no-op, got %+v", results)
	}
	if gateResults != nil {
		t.Fatalf("expected no gate results in dry-run, got %+v", gateResults)
	}
	exists, _ := os.Stat(filepath.Join(repo, ".git", "refs", "heads", branch))
	if exists != nil {
		t.Fatal("expected dry-run to skip creating the integration branch")
	}
}
