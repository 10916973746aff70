package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/temporalflow"
)

// runDurable submits one AutopilotWorkflow execution to an
// already-running temporalflow worker (started separately, e.g. via
// temporalflow.StartWorker in a long-lived process) and blocks for its
// result. It does not itself host a worker: a CLI invocation submitting
// and executing in the same process would defeat the point of routing
// the irreversible L3/L4 levels through a durable, restart-safe
// workflow engine.
func runDurable(ctx context.Context, p *plan.Plan, workspace, deliverablesRoot, branchPrefix string, maxLevel int, dryRun, openPR, closeSuperseded bool, commentTemplate string, now time.Time, hostPort, taskQueue string) error {
	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		return fmt.Errorf("autopilot --durable: dial temporal at %s: %w", hostPort, err)
	}
	defer c.Close()

	req := temporalflow.AutopilotWorkflowRequest{
		Plan:             p,
		Workspace:        workspace,
		DeliverablesRoot: deliverablesRoot,
		BranchPrefix:     branchPrefix,
		MaxLevel:         maxLevel,
		DryRun:           dryRun,
		OpenPR:           openPR,
		CloseSuperseded:  closeSuperseded,
		CommentTemplate:  commentTemplate,
		Now:              now,
		RequireApproval:  maxLevel >= autopilot.LevelFinalize && closeSuperseded,
	}

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{TaskQueue: taskQueue}, temporalflow.AutopilotWorkflow, req)
	if err != nil {
		return fmt.Errorf("autopilot --durable: start workflow: %w", err)
	}

	var result autopilot.Result
	if err := run.Get(ctx, &result); err != nil {
		return fmt.Errorf("autopilot --durable: workflow execution failed: %w", err)
	}
	if result.Aborted {
		return fmt.Errorf("autopilot aborted at level %d: %s", result.LevelReached, result.AbortReason)
	}
	return json.NewEncoder(os.Stdout).Encode(result)
}
