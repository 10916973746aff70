package temporalflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
)

// AutopilotWorkflow drives the L0-L4 cumulative levels durably: each level
// runs as its own Activity with its own retry policy, so a worker crash
// mid-run resumes from the last completed level instead of restarting the
// whole autopilot pass. It mirrors autopilot.Engine.Run's short-circuiting
// (stop as soon as req.MaxLevel is reached, or a level soft-aborts) but
// additionally, when req.RequireApproval is set, blocks L4 on an
// "autopilot-approval" signal — nothing merges into target unattended.
func AutopilotWorkflow(ctx workflow.Context, req AutopilotWorkflowRequest) (*autopilot.Result, error) {
	logger := workflow.GetLogger(ctx)
	result := &autopilot.Result{}

	var a *Activities

	reportOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	}
	reportCtx := workflow.WithActivityOptions(ctx, reportOpts)

	var report ReportResponse
	if err := workflow.ExecuteActivity(reportCtx, a.ReportActivity, ReportRequest{Plan: req.Plan}).Get(ctx, &report); err != nil {
		return nil, fmt.Errorf("autopilot workflow: L0 report: %w", err)
	}
	result.Levels = report.Levels
	result.Recommendations = report.Recommendations
	result.LevelReached = autopilot.LevelReportOnly

	if req.MaxLevel < autopilot.LevelArtifacts {
		return result, nil
	}

	deliverablesOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 1 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	deliverablesCtx := workflow.WithActivityOptions(ctx, deliverablesOpts)

	var deliverables DeliverablesResponse
	if err := workflow.ExecuteActivity(deliverablesCtx, a.WriteDeliverablesActivity, DeliverablesRequest{
		Plan:             req.Plan,
		Levels:           report.Levels,
		Recommendations:  report.Recommendations,
		DeliverablesRoot: req.DeliverablesRoot,
		Now:              req.Now,
	}).Get(ctx, &deliverables); err != nil {
		return result, fmt.Errorf("autopilot workflow: L1 deliverables: %w", err)
	}
	result.DeliverablesDir = deliverables.Dir
	result.LevelReached = autopilot.LevelArtifacts

	if req.MaxLevel < autopilot.LevelAnnotate {
		return result, nil
	}

	annotateOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	annotateCtx := workflow.WithActivityOptions(ctx, annotateOpts)
	if err := workflow.ExecuteActivity(annotateCtx, a.AnnotateActivity, AnnotateRequest{Recommendations: report.Recommendations}).Get(ctx, nil); err != nil {
		result.Aborted = true
		result.AbortReason = err.Error()
		return result, nil
	}
	result.LevelReached = autopilot.LevelAnnotate

	if req.MaxLevel < autopilot.LevelWeave {
		return result, nil
	}

	checkOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	}
	checkCtx := workflow.WithActivityOptions(ctx, checkOpts)
	var clean bool
	if err := workflow.ExecuteActivity(checkCtx, a.CheckWorkingTreeActivity, CleanWorkingTreeRequest{Workspace: req.Workspace}).Get(ctx, &clean); err != nil {
		return result, fmt.Errorf("autopilot workflow: check working tree: %w", err)
	}
	if !clean {
		result.Aborted = true
		result.AbortReason = "L3 precondition failed: working tree is not clean; L1 artifacts remain available"
		return result, nil
	}

	weaveOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1}, // a conflict will recur identically; don't retry
	}
	weaveCtx := workflow.WithActivityOptions(ctx, weaveOpts)
	var weaveResp WeaveResponse
	weaveErr := workflow.ExecuteActivity(weaveCtx, a.WeaveActivity, WeaveRequest{
		Plan:      req.Plan,
		Levels:    report.Levels,
		Workspace: req.Workspace,
		Now:       req.Now,
	}).Get(ctx, &weaveResp)
	result.WeaveResults = weaveResp.Results
	result.GateResults = weaveResp.GateResults
	for _, r := range weaveResp.Results {
		if !r.Success {
			result.FailedOps = append(result.FailedOps, fmt.Sprintf("%s: %s", r.Item, r.Message))
		}
	}
	if weaveErr != nil {
		result.Aborted = true
		result.AbortReason = weaveErr.Error()
		return result, nil
	}
	result.LevelReached = autopilot.LevelWeave

	if req.MaxLevel < autopilot.LevelFinalize {
		return result, nil
	}

	if req.RequireApproval {
		logger.Info("autopilot L4 waiting for human approval", "branch", weaveResp.IntegrationBranch)
		signalChan := workflow.GetSignalChannel(ctx, "autopilot-approval")
		var approval string
		signalChan.Receive(ctx, &approval)
		if approval != "APPROVED" {
			result.Aborted = true
			result.AbortReason = "L4 finalize rejected by human approval gate"
			return result, nil
		}
	}

	finalizeOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	finalizeCtx := workflow.WithActivityOptions(ctx, finalizeOpts)
	if err := workflow.ExecuteActivity(finalizeCtx, a.FinalizeActivity, FinalizeRequest{
		Plan:              req.Plan,
		Workspace:         req.Workspace,
		Target:            req.Plan.Target,
		IntegrationBranch: weaveResp.IntegrationBranch,
	}).Get(ctx, nil); err != nil {
		result.Aborted = true
		result.AbortReason = err.Error()
		return result, nil
	}
	result.LevelReached = autopilot.LevelFinalize

	return result, nil
}
