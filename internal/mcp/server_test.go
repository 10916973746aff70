package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/profile"
)

func testPlan() *plan.Plan {
	return &plan.Plan{
		SchemaVersion: "1.0.0",
		Target:        "main",
		Items:         []plan.PlanItem{{Name: "PR-1"}},
	}
}

func loadTestPlan(role string) LoadPlanFunc {
	return func(ctx context.Context, profileDir string) (*plan.Plan, *profile.Profile, error) {
		return testPlan(), &profile.Profile{Dir: profileDir, Role: role}, nil
	}
}

func newTestEngine(maxLevel int) NewEngineFunc {
	return func(prof *profile.Profile) (*autopilot.Engine, error) {
		cfg, err := autopilot.NewConfig(autopilot.Config{MaxLevel: maxLevel})
		if err != nil {
			return nil, err
		}
		return autopilot.NewEngine(cfg, prof, nil, nil, "integration/", nil), nil
	}
}

func TestHandlePlan_ReturnsLevelsWithoutMutationGate(t *testing.T) {
	s := NewServer(&profile.Env{}, loadTestPlan(profile.RoleExample), newTestEngine(autopilot.LevelReportOnly), nil)

	params, _ := json.Marshal(PlanRequest{ProfileDir: "/tmp/profile"})
	raw, err := s.HandlePlan(context.Background(), params)
	if err != nil {
		t.Fatalf("HandlePlan returned error: %v", err)
	}

	var resp PlanResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Levels) != 1 {
		t.Fatalf("levels = %v, want 1 level", resp.Levels)
	}
}

func TestHandleStatus_ReturnsRecommendations(t *testing.T) {
	s := NewServer(&profile.Env{}, loadTestPlan(profile.RoleExample), newTestEngine(autopilot.LevelReportOnly), nil)

	params, _ := json.Marshal(StatusRequest{ProfileDir: "/tmp/profile"})
	raw, err := s.HandleStatus(context.Background(), params)
	if err != nil {
		t.Fatalf("HandleStatus returned error: %v", err)
	}

	var resp StatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Recommendations) != 1 {
		t.Fatalf("recommendations = %v, want 1", resp.Recommendations)
	}
}

func TestHandleAutopilot_RejectsMutatingCallWithoutAllowMutations(t *testing.T) {
	s := NewServer(&profile.Env{AllowMutations: false}, loadTestPlan(profile.RoleLocal), newTestEngine(autopilot.LevelArtifacts), nil)

	params, _ := json.Marshal(AutopilotRequest{ProfileDir: "/tmp/profile", MaxLevel: autopilot.LevelArtifacts})
	_, err := s.HandleAutopilot(context.Background(), params)
	if err == nil {
		t.Fatal("expected error")
	}
	var mutErr *MutationNotAllowedError
	if !errors.As(err, &mutErr) {
		t.Fatalf("error = %v, want *MutationNotAllowedError", err)
	}
}

func TestHandleAutopilot_AllowsReportOnlyWithoutAllowMutations(t *testing.T) {
	s := NewServer(&profile.Env{AllowMutations: false}, loadTestPlan(profile.RoleLocal), newTestEngine(autopilot.LevelReportOnly), nil)

	params, _ := json.Marshal(AutopilotRequest{ProfileDir: "/tmp/profile", MaxLevel: autopilot.LevelReportOnly})
	raw, err := s.HandleAutopilot(context.Background(), params)
	if err != nil {
		t.Fatalf("HandleAutopilot returned error: %v", err)
	}

	var resp AutopilotResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Result.LevelReached != autopilot.LevelReportOnly {
		t.Fatalf("levelReached = %d, want %d", resp.Result.LevelReached, autopilot.LevelReportOnly)
	}
}

func TestHandleAutopilot_AllowsDryRunWithoutAllowMutations(t *testing.T) {
	s := NewServer(&profile.Env{AllowMutations: false}, loadTestPlan(profile.RoleLocal), newTestEngine(autopilot.LevelArtifacts), nil)

	params, _ := json.Marshal(AutopilotRequest{ProfileDir: "/tmp/profile", MaxLevel: autopilot.LevelArtifacts, DryRun: true})
	_, err := s.HandleAutopilot(context.Background(), params)
	// Dry runs still attempt to write deliverables (L1), which requires a
	// writable profile; role=local satisfies that, so no mutation-gate
	// error should surface here even though AllowMutations is false.
	var mutErr *MutationNotAllowedError
	if errors.As(err, &mutErr) {
		t.Fatalf("dry run should not be rejected by the mutation gate, got %v", err)
	}
}

func TestHandlers_RegistersAllThreeTools(t *testing.T) {
	s := NewServer(&profile.Env{}, loadTestPlan(profile.RoleExample), newTestEngine(autopilot.LevelReportOnly), nil)
	handlers := s.Handlers()
	for _, name := range []string{"plan", "status", "autopilot"} {
		if _, ok := handlers[name]; !ok {
			t.Errorf("missing handler for tool %q", name)
		}
	}
}
