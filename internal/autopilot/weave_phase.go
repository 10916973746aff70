package autopilot

import (
	"context"
	"fmt"
	"time"

	"github.com/antigravity-dev/lex-pr-runner/internal/gitcli"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/weave"
)

// weaveLevels implements L3: create the integration branch, then weave
// each level of the plan in order, running that level's gates once the
// weave succeeds, and stopping at the first level whose weave or gates
// fail (per spec.md §4.7: a conflict or gate failure halts the level
// and no later level is entered; the integration branch is preserved
// either way).
func (e *Engine) weaveLevels(ctx context.Context, workspace string, p *plan.Plan, levels [][]string, now time.Time) ([]weave.Result, []plan.GateResult, string, error) {
	if err := e.Profile.CheckWrite(); err != nil {
		return nil, nil, "", err
	}

	allNames := make([]string, 0, len(p.Items))
	for _, lvl := range levels {
		allNames = append(allNames, lvl...)
	}

	ts := now.UTC().Format("20060102T150405Z")
	integrationBranch := weave.NameIntegrationBranch(e.BranchPrefix, p.Target, allNames, ts)

	if e.Config.DryRun {
		recorded := make([]weave.Result, 0, len(allNames))
		for _, name := range allNames {
			pi := p.ItemByName(name)
			strategy := plan.StrategyRebaseWeave
			if pi != nil && pi.Strategy != "" {
				strategy = pi.Strategy
			}
			recorded = append(recorded, weave.Result{Item: name, Strategy: strategy, Success: true, Message: "dry-run: no-op"})
		}
		return recorded, nil, integrationBranch, nil
	}

	if err := gitcli.EnsureIntegrationBranch(workspace, integrationBranch, p.Target); err != nil {
		return nil, nil, integrationBranch, fmt.Errorf("autopilot: create integration branch: %w", err)
	}

	var allResults []weave.Result
	var allGateResults []plan.GateResult
	for _, names := range levels {
		items := make([]weave.Item, 0, len(names))
		for _, name := range names {
			pi := p.ItemByName(name)
			if pi == nil {
				continue
			}
			items = append(items, weave.Item{Name: pi.Name, Branch: pi.Branch, Strategy: pi.Strategy})
		}

		results := weave.Weave(workspace, items)
		allResults = append(allResults, results...)

		levelFailed := false
		for _, r := range results {
			if !r.Success {
				levelFailed = true
			}
		}
		if levelFailed {
			return allResults, allGateResults, integrationBranch, fmt.Errorf("autopilot: weave failed in level; integration branch %s preserved", integrationBranch)
		}

		if e.Gates != nil {
			gateResults := e.Gates.ExecuteLevel(ctx, p, names, workspace)
			allGateResults = append(allGateResults, gateResults...)
			for _, gr := range gateResults {
				if gr.Status != plan.StatusPass && gr.Status != plan.StatusSkip {
					return allResults, allGateResults, integrationBranch, fmt.Errorf("autopilot: gate %s failed for %s; integration branch %s preserved", gr.Gate, gr.Item, integrationBranch)
				}
			}
		}
	}

	return allResults, allGateResults, integrationBranch, nil
}
