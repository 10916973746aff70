package temporalflow

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
	"github.com/antigravity-dev/lex-pr-runner/internal/gitcli"
)

// Activities holds the in-process autopilot.Engine each activity method
// delegates to. One Engine per worker process; Engine itself carries no
// per-run state beyond its Ledger, so it is safe to reuse across runs.
type Activities struct {
	Engine *autopilot.Engine
}

// ReportActivity runs L0: levelize the plan and derive a recommendation
// per item. Pure and side-effect-free, so it never needs a retry policy
// beyond Temporal's default.
func (a *Activities) ReportActivity(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	logger := activity.GetLogger(ctx)
	levels, recs, err := a.Engine.Report(req.Plan)
	if err != nil {
		return nil, fmt.Errorf("report activity: %w", err)
	}
	logger.Info("autopilot L0 report", "levels", len(levels), "items", len(recs))
	return &ReportResponse{Levels: levels, Recommendations: recs}, nil
}

// WriteDeliverablesActivity runs L1: write the weave-<ts>/ artifact
// directory and finalize its manifest.
func (a *Activities) WriteDeliverablesActivity(ctx context.Context, req DeliverablesRequest) (*DeliverablesResponse, error) {
	logger := activity.GetLogger(ctx)
	run, err := a.Engine.WriteDeliverables(req.Plan, req.Levels, req.Recommendations, req.DeliverablesRoot, req.Now)
	if err != nil {
		return nil, fmt.Errorf("deliverables activity: %w", err)
	}
	logger.Info("autopilot L1 deliverables written", "dir", run.Dir)
	return &DeliverablesResponse{Dir: run.Dir}, nil
}

// AnnotateActivity runs L2: post one status comment per item via the
// configured forge client.
func (a *Activities) AnnotateActivity(ctx context.Context, req AnnotateRequest) error {
	logger := activity.GetLogger(ctx)
	if err := a.Engine.Annotate(ctx, req.Recommendations); err != nil {
		return fmt.Errorf("annotate activity: %w", err)
	}
	logger.Info("autopilot L2 annotated", "items", len(req.Recommendations))
	return nil
}

// CheckWorkingTreeActivity enforces the L3 precondition: the workspace must
// be clean before a weave is attempted.
func (a *Activities) CheckWorkingTreeActivity(ctx context.Context, req CleanWorkingTreeRequest) (bool, error) {
	clean, err := gitcli.IsWorkingTreeClean(req.Workspace)
	if err != nil {
		return false, fmt.Errorf("check working tree activity: %w", err)
	}
	return clean, nil
}

// WeaveActivity runs L3: create the integration branch, weave each level,
// and run that level's gates. A merge conflict or gate failure returns an
// error — the workflow treats that as a non-retryable abort rather than
// retrying a weave that will conflict identically every time.
func (a *Activities) WeaveActivity(ctx context.Context, req WeaveRequest) (*WeaveResponse, error) {
	logger := activity.GetLogger(ctx)
	results, gateResults, branch, err := a.Engine.WeaveLevels(ctx, req.Workspace, req.Plan, req.Levels, req.Now)
	resp := &WeaveResponse{Results: results, GateResults: gateResults, IntegrationBranch: branch}
	if err != nil {
		return resp, fmt.Errorf("weave activity: %w", err)
	}
	logger.Info("autopilot L3 weave complete", "branch", branch, "items", len(results))
	return resp, nil
}

// FinalizeActivity runs L4: merge the integration branch into target and,
// when configured, close superseded source PRs.
func (a *Activities) FinalizeActivity(ctx context.Context, req FinalizeRequest) error {
	logger := activity.GetLogger(ctx)
	if err := a.Engine.Finalize(ctx, req.Workspace, req.Target, req.IntegrationBranch, req.Plan); err != nil {
		return fmt.Errorf("finalize activity: %w", err)
	}
	logger.Info("autopilot L4 finalized", "branch", req.IntegrationBranch, "target", req.Target)
	return nil
}
