package autopilot

import (
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/weave"
)

// ItemRecommendation is the L0 report-only output for one plan item:
// its level in the dependency graph and a plain-language recommendation
// derived from its eligibility state.
type ItemRecommendation struct {
	Name          string
	Level         int
	Eligibility   string
	Recommendation string
}

// Result accumulates everything one autopilot run produced, up to
// whatever level it actually reached (which may be lower than
// Config.MaxLevel if a precondition failed or a level aborted).
type Result struct {
	LevelReached    int
	Levels          [][]string
	Recommendations []ItemRecommendation
	DeliverablesDir string
	WeaveResults    []weave.Result
	GateResults     []plan.GateResult
	FailedOps       []string
	Aborted         bool
	AbortReason     string
}
