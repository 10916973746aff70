// Package mcp exposes the runner's core operations as a small set of
// named tool handlers (`plan`, `status`, `autopilot`). It implements no
// wire protocol: framing, transport, and tool discovery are out of scope
// per spec.md — callers wire these handlers into whatever MCP transport
// they use. The only responsibility this package owns is the
// side-effect gate: any tool call that could mutate state is rejected
// unless ALLOW_MUTATIONS is set, mirroring the teacher's
// internal/api.AuthMiddleware distinguishing read endpoints from control
// endpoints before dispatching.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/profile"
)

// ToolHandler is the narrow shape every MCP tool handler takes: a
// request envelope in, a response envelope out, both raw JSON so this
// package stays agnostic to whatever framing wraps it.
type ToolHandler func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// LoadPlanFunc resolves a profile directory into a Plan and its
// Profile. Injected rather than imported directly so this package
// never takes on internal/loader's YAML-precedence logic itself.
type LoadPlanFunc func(ctx context.Context, profileDir string) (*plan.Plan, *profile.Profile, error)

// NewEngineFunc constructs an autopilot.Engine scoped to a resolved
// profile. Injected for the same reason: internal/mcp adapts, it
// doesn't own engine wiring.
type NewEngineFunc func(prof *profile.Profile) (*autopilot.Engine, error)

// Server wires the three tool handlers over a LoadPlanFunc and
// NewEngineFunc. AllowMutations mirrors spec.md §6's ALLOW_MUTATIONS
// environment variable (exact string "true"; see profile.Env).
type Server struct {
	Env       *profile.Env
	LoadPlan  LoadPlanFunc
	NewEngine NewEngineFunc
	Logger    *slog.Logger
}

// NewServer constructs a Server. logger may be nil (defaults to
// slog.Default()).
func NewServer(env *profile.Env, loadPlan LoadPlanFunc, newEngine NewEngineFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Env: env, LoadPlan: loadPlan, NewEngine: newEngine, Logger: logger}
}

// MutationNotAllowedError is returned when a side-effecting tool call
// arrives without ALLOW_MUTATIONS set.
type MutationNotAllowedError struct {
	Tool string
}

func (e *MutationNotAllowedError) Error() string {
	return fmt.Sprintf("mcp: tool %q requires ALLOW_MUTATIONS=true", e.Tool)
}

// Handlers returns the tool-name -> handler registry, suitable for
// registering against any MCP transport's dispatch table.
func (s *Server) Handlers() map[string]ToolHandler {
	return map[string]ToolHandler{
		"plan":      s.HandlePlan,
		"status":    s.HandleStatus,
		"autopilot": s.HandleAutopilot,
	}
}

// PlanRequest is the "plan" tool's input.
type PlanRequest struct {
	ProfileDir string `json:"profileDir"`
}

// PlanResponse is the "plan" tool's output: the resolved plan and its
// dependency levels.
type PlanResponse struct {
	Plan   *plan.Plan `json:"plan"`
	Levels [][]string `json:"levels"`
}

// HandlePlan is a read-only tool: it never mutates, so it is never
// gated by ALLOW_MUTATIONS.
func (s *Server) HandlePlan(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req PlanRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("mcp: plan: decode params: %w", err)
	}

	p, prof, err := s.LoadPlan(ctx, req.ProfileDir)
	if err != nil {
		return nil, fmt.Errorf("mcp: plan: load: %w", err)
	}

	eng, err := s.NewEngine(prof)
	if err != nil {
		return nil, fmt.Errorf("mcp: plan: engine: %w", err)
	}
	levels, _, err := eng.Report(p)
	if err != nil {
		return nil, fmt.Errorf("mcp: plan: report: %w", err)
	}

	return json.Marshal(PlanResponse{Plan: p, Levels: levels})
}

// StatusRequest is the "status" tool's input.
type StatusRequest struct {
	ProfileDir string `json:"profileDir"`
}

// StatusResponse is the "status" tool's output: dependency levels and
// the per-item merge recommendation, the same shape autopilot's L0
// report produces.
type StatusResponse struct {
	Levels          [][]string                     `json:"levels"`
	Recommendations []autopilot.ItemRecommendation `json:"recommendations"`
}

// HandleStatus is read-only, like HandlePlan.
func (s *Server) HandleStatus(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req StatusRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("mcp: status: decode params: %w", err)
	}

	p, prof, err := s.LoadPlan(ctx, req.ProfileDir)
	if err != nil {
		return nil, fmt.Errorf("mcp: status: load: %w", err)
	}

	eng, err := s.NewEngine(prof)
	if err != nil {
		return nil, fmt.Errorf("mcp: status: engine: %w", err)
	}
	levels, recs, err := eng.Report(p)
	if err != nil {
		return nil, fmt.Errorf("mcp: status: report: %w", err)
	}

	return json.Marshal(StatusResponse{Levels: levels, Recommendations: recs})
}

// AutopilotRequest is the "autopilot" tool's input, mirroring
// autopilot.Config plus the workspace/deliverables locations Engine.Run
// needs.
type AutopilotRequest struct {
	ProfileDir       string `json:"profileDir"`
	Workspace        string `json:"workspace"`
	DeliverablesRoot string `json:"deliverablesRoot"`
	MaxLevel         int    `json:"maxLevel"`
	DryRun           bool   `json:"dryRun"`
	OpenPR           bool   `json:"openPR"`
	CloseSuperseded  bool   `json:"closeSuperseded"`
	CommentTemplate  string `json:"commentTemplate,omitempty"`
}

// AutopilotResponse is the "autopilot" tool's output.
type AutopilotResponse struct {
	Result *autopilot.Result `json:"result"`
}

// HandleAutopilot is side-effecting whenever it can reach past L0 or
// isn't a dry run, and is rejected outright without ALLOW_MUTATIONS in
// that case — report-only and dry-run invocations are always allowed,
// same as how the teacher's isControlEndpoint only gates the subset of
// endpoints that actually change system state.
func (s *Server) HandleAutopilot(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req AutopilotRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("mcp: autopilot: decode params: %w", err)
	}

	mutates := !req.DryRun && req.MaxLevel > autopilot.LevelReportOnly
	if mutates && !s.Env.AllowMutations {
		s.Logger.Warn("mcp: rejected mutating autopilot call", "maxLevel", req.MaxLevel, "dryRun", req.DryRun)
		return nil, &MutationNotAllowedError{Tool: "autopilot"}
	}

	p, prof, err := s.LoadPlan(ctx, req.ProfileDir)
	if err != nil {
		return nil, fmt.Errorf("mcp: autopilot: load: %w", err)
	}

	cfg, err := autopilot.NewConfig(autopilot.Config{
		MaxLevel:        req.MaxLevel,
		DryRun:          req.DryRun,
		OpenPR:          req.OpenPR,
		CloseSuperseded: req.CloseSuperseded,
		CommentTemplate: req.CommentTemplate,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: autopilot: config: %w", err)
	}

	eng, err := s.NewEngine(prof)
	if err != nil {
		return nil, fmt.Errorf("mcp: autopilot: engine: %w", err)
	}
	eng.Config = cfg

	result, err := eng.Run(ctx, p, req.Workspace, req.DeliverablesRoot, s.Env.Now())
	if err != nil {
		return nil, fmt.Errorf("mcp: autopilot: run: %w", err)
	}

	return json.Marshal(AutopilotResponse{Result: result})
}
