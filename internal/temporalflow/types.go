// Package temporalflow wraps internal/autopilot's L0-L4 levels as Temporal
// activities behind a single durable AutopilotWorkflow, for callers that
// want a run to survive process restarts and to gate L4 behind an optional
// human-approval signal rather than running entirely in one process.
package temporalflow

import (
	"time"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/weave"
)

// AutopilotWorkflowRequest is the single input to AutopilotWorkflow. Config
// mirrors autopilot.Config's fields directly rather than embedding it so the
// workflow's input type has no unexported fields Temporal's JSON data
// converter would silently drop.
type AutopilotWorkflowRequest struct {
	Plan             *plan.Plan
	Workspace        string
	DeliverablesRoot string
	BranchPrefix     string
	MaxLevel         int
	DryRun           bool
	OpenPR           bool
	CloseSuperseded  bool
	CommentTemplate  string
	Now              time.Time
	RequireApproval  bool // when true, L4 waits for an "autopilot-approval" signal
}

// ReportRequest/ReportResponse back Activities.ReportActivity (L0).
type ReportRequest struct {
	Plan *plan.Plan
}

type ReportResponse struct {
	Levels          [][]string
	Recommendations []autopilot.ItemRecommendation
}

// DeliverablesRequest/DeliverablesResponse back
// Activities.WriteDeliverablesActivity (L1).
type DeliverablesRequest struct {
	Plan             *plan.Plan
	Levels           [][]string
	Recommendations  []autopilot.ItemRecommendation
	DeliverablesRoot string
	Now              time.Time
}

type DeliverablesResponse struct {
	Dir string
}

// AnnotateRequest backs Activities.AnnotateActivity (L2).
type AnnotateRequest struct {
	Recommendations []autopilot.ItemRecommendation
}

// WeaveRequest/WeaveResponse back Activities.WeaveActivity (L3).
type WeaveRequest struct {
	Plan      *plan.Plan
	Levels    [][]string
	Workspace string
	Now       time.Time
}

type WeaveResponse struct {
	Results           []weave.Result
	GateResults       []plan.GateResult
	IntegrationBranch string
}

// FinalizeRequest backs Activities.FinalizeActivity (L4).
type FinalizeRequest struct {
	Plan              *plan.Plan
	Workspace         string
	Target            string
	IntegrationBranch string
}

// CleanWorkingTreeRequest backs Activities.CheckWorkingTreeActivity,
// the L3 precondition Run also enforces in-process.
type CleanWorkingTreeRequest struct {
	Workspace string
}
