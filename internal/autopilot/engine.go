package autopilot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/antigravity-dev/lex-pr-runner/internal/deliverables"
	"github.com/antigravity-dev/lex-pr-runner/internal/depgraph"
	"github.com/antigravity-dev/lex-pr-runner/internal/execstate"
	"github.com/antigravity-dev/lex-pr-runner/internal/gate"
	"github.com/antigravity-dev/lex-pr-runner/internal/gitcli"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/profile"
	"github.com/antigravity-dev/lex-pr-runner/internal/safety"
	"github.com/antigravity-dev/lex-pr-runner/internal/weave"
)

// ForgeClient is the narrow write surface L2/L4 need. Declared locally,
// the same way internal/loader declares ForgeQuerier, so this package
// never imports the concrete internal/forge client and stays
// testable with a fake.
type ForgeClient interface {
	PostComment(ctx context.Context, item, comment string) error
	PostStatus(ctx context.Context, item, status string) error
	ClosePR(ctx context.Context, item, comment string) error
}

// Engine runs one autopilot invocation against a resolved plan.
type Engine struct {
	Config       *Config
	Profile      *profile.Profile
	Gates        *gate.Engine
	Forge        ForgeClient
	Ledger       *safety.Ledger
	Logger       *slog.Logger
	BranchPrefix string
}

// NewEngine constructs an Engine. forge may be nil when maxLevel < 2
// (no annotate/finalize capability is reachable).
func NewEngine(cfg *Config, prof *profile.Profile, gates *gate.Engine, forge ForgeClient, branchPrefix string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Config:       cfg,
		Profile:      prof,
		Gates:        gates,
		Forge:        forge,
		Ledger:       &safety.Ledger{},
		Logger:       logger,
		BranchPrefix: branchPrefix,
	}
}

// Run executes every level up to Config.MaxLevel against p, in
// workspace (the Git working tree), writing deliverables under
// deliverablesRoot. now stamps the deliverables run and the
// integration-branch timestamp (callers pass profile.Env.Now() for
// reproducibility).
func (e *Engine) Run(ctx context.Context, p *plan.Plan, workspace, deliverablesRoot string, now time.Time) (*Result, error) {
	result := &Result{}

	levels, err := levelizePlan(p)
	if err != nil {
		return nil, fmt.Errorf("autopilot: levelize plan: %w", err)
	}
	result.Levels = levels
	result.Recommendations = buildRecommendations(p, levels)
	result.LevelReached = LevelReportOnly

	if e.Config.MaxLevel < LevelArtifacts {
		return result, nil
	}

	run, err := e.writeDeliverables(p, levels, result.Recommendations, deliverablesRoot, now)
	if err != nil {
		return result, fmt.Errorf("autopilot: write deliverables: %w", err)
	}
	result.DeliverablesDir = run.Dir
	result.LevelReached = LevelArtifacts

	if e.Config.MaxLevel < LevelAnnotate {
		return result, nil
	}

	if err := e.annotate(ctx, result.Recommendations); err != nil {
		result.Aborted = true
		result.AbortReason = err.Error()
		return result, nil
	}
	result.LevelReached = LevelAnnotate

	if e.Config.MaxLevel < LevelWeave {
		return result, nil
	}

	clean, err := gitcli.IsWorkingTreeClean(workspace)
	if err != nil {
		return result, fmt.Errorf("autopilot: check working tree: %w", err)
	}
	if !clean {
		result.Aborted = true
		result.AbortReason = "L3 precondition failed: working tree is not clean; L1 artifacts remain available"
		return result, nil
	}

	weaveResults, gateResults, integrationBranch, err := e.weaveLevels(ctx, workspace, p, levels, now)
	result.WeaveResults = weaveResults
	result.GateResults = gateResults
	for _, r := range weaveResults {
		e.Ledger.Record(r)
		if !r.Success {
			result.FailedOps = append(result.FailedOps, fmt.Sprintf("%s: %s", r.Item, r.Message))
		}
	}
	if err != nil {
		result.Aborted = true
		result.AbortReason = err.Error()
		return result, nil
	}
	result.LevelReached = LevelWeave

	if e.Config.MaxLevel < LevelFinalize {
		return result, nil
	}

	if err := e.finalize(ctx, workspace, p.Target, integrationBranch, p); err != nil {
		result.Aborted = true
		result.AbortReason = err.Error()
		return result, nil
	}
	result.LevelReached = LevelFinalize

	return result, nil
}

// Report runs L0 in isolation: levelize p and derive a recommendation per
// item. internal/temporalflow calls this from its own Activity so the
// durable workflow can drive levels one at a time instead of through Run.
func (e *Engine) Report(p *plan.Plan) ([][]string, []ItemRecommendation, error) {
	levels, err := levelizePlan(p)
	if err != nil {
		return nil, nil, fmt.Errorf("autopilot: levelize plan: %w", err)
	}
	return levels, buildRecommendations(p, levels), nil
}

// WriteDeliverables runs L1 in isolation; see Report.
func (e *Engine) WriteDeliverables(p *plan.Plan, levels [][]string, recs []ItemRecommendation, deliverablesRoot string, now time.Time) (*deliverables.Run, error) {
	return e.writeDeliverables(p, levels, recs, deliverablesRoot, now)
}

// Annotate runs L2 in isolation; see Report.
func (e *Engine) Annotate(ctx context.Context, recs []ItemRecommendation) error {
	return e.annotate(ctx, recs)
}

// WeaveLevels runs L3 in isolation; see Report. Callers must check
// gitcli.IsWorkingTreeClean(workspace) themselves first, same as Run does.
func (e *Engine) WeaveLevels(ctx context.Context, workspace string, p *plan.Plan, levels [][]string, now time.Time) ([]weave.Result, []plan.GateResult, string, error) {
	return e.weaveLevels(ctx, workspace, p, levels, now)
}

// Finalize runs L4 in isolation; see Report.
func (e *Engine) Finalize(ctx context.Context, workspace, target, integrationBranch string, p *plan.Plan) error {
	return e.finalize(ctx, workspace, target, integrationBranch, p)
}

func levelizePlan(p *plan.Plan) ([][]string, error) {
	nodes := make([]depgraph.Node, len(p.Items))
	for i, item := range p.Items {
		nodes[i] = item
	}
	return depgraph.Levelize(nodes)
}

func buildRecommendations(p *plan.Plan, levels [][]string) []ItemRecommendation {
	deps := make(map[string][]string, len(p.Items))
	for _, item := range p.Items {
		deps[item.Name] = item.Deps
	}
	st := execstate.New(deps)

	var recs []ItemRecommendation
	for levelIdx, names := range levels {
		for _, name := range names {
			elig := st.Eligibility(name)
			recs = append(recs, ItemRecommendation{
				Name:           name,
				Level:          levelIdx,
				Eligibility:    elig,
				Recommendation: recommendationFor(elig),
			})
		}
	}
	return recs
}

func recommendationFor(eligibility string) string {
	switch eligibility {
	case execstate.EligibilityEligible:
		return "ready to weave"
	case execstate.EligibilityBlocked:
		return "blocked on an unresolved dependency"
	case execstate.EligibilityFailed:
		return "failed a required gate"
	default:
		return "pending upstream completion"
	}
}
