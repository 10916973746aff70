package autopilot

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/lex-pr-runner/internal/gitcli"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/safety"
)

// finalize implements L4: merge integration into target, then close
// superseded source PRs when Config.CloseSuperseded is set. Dry run
// converts both into recorded no-ops.
func (e *Engine) finalize(ctx context.Context, workspace, target, integrationBranch string, p *plan.Plan) error {
	if err := e.Profile.CheckWrite(); err != nil {
		return err
	}

	mergeExecutor := &safety.DryRunExecutor{
		DryRun: e.Config.DryRun,
		Next: safety.ExecutorFunc(func(safety.Effect) error {
			_, err := gitcli.MergeTargetBranch(workspace, target, integrationBranch)
			return err
		}),
	}
	if err := mergeExecutor.Execute(safety.Effect{Kind: "merge", Description: fmt.Sprintf("%s -> %s", integrationBranch, target)}); err != nil {
		return fmt.Errorf("autopilot: finalize merge: %w", err)
	}

	if !e.Config.CloseSuperseded {
		return nil
	}
	if e.Forge == nil {
		return fmt.Errorf("autopilot: closeSuperseded requires a forge client")
	}

	closeExecutor := &safety.DryRunExecutor{
		DryRun: e.Config.DryRun,
		Next: safety.ExecutorFunc(func(eff safety.Effect) error {
			return e.Forge.ClosePR(ctx, eff.Description, "superseded by integration merge")
		}),
	}
	for _, item := range p.Items {
		if err := closeExecutor.Execute(safety.Effect{Kind: "close_pr", Description: item.Name}); err != nil {
			return fmt.Errorf("autopilot: close superseded PR %s: %w", item.Name, err)
		}
	}
	return nil
}
