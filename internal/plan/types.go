// Package plan defines the schema-validated, content-addressable Plan
// record: the root structure that the dependency resolver, gate engine,
// and autopilot all operate over.
package plan

// Plan is the root record produced by the input loader and consumed by
// every downstream component.
type Plan struct {
	SchemaVersion string     `json:"schemaVersion"`
	Target        string     `json:"target"`
	Items         []PlanItem `json:"items"`
	Policy        *Policy    `json:"policy,omitempty"`
}

// PlanItem is one change-request unit, typically one pull request.
type PlanItem struct {
	Name     string   `json:"name"`
	Deps     []string `json:"deps,omitempty"`
	Gates    []Gate   `json:"gates,omitempty"`
	Branch   string   `json:"branch,omitempty"`
	SHA      string   `json:"sha,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
}

// NodeName and NodeDeps satisfy depgraph.Node so PlanItem can be levelized
// directly, without depgraph importing this package.
func (i PlanItem) NodeName() string   { return i.Name }
func (i PlanItem) NodeDeps() []string { return i.Deps }

// Strategy values recognized for PlanItem.Strategy.
const (
	StrategyRebaseWeave = "rebase-weave"
	StrategyMergeWeave  = "merge-weave"
	StrategySquashWeave = "squash-weave"
)

// Gate runtime values.
const (
	RuntimeLocal     = "local"
	RuntimeContainer = "container"
)

// Gate is an external check whose pass/fail determines eligibility.
type Gate struct {
	Name       string            `json:"name"`
	Run        string            `json:"run"`
	Runtime    string            `json:"runtime,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Cwd        string            `json:"cwd,omitempty"`
	Artifacts  []string          `json:"artifacts,omitempty"`
	TimeoutSec int               `json:"timeoutSec,omitempty"`
	Retries    int               `json:"retries,omitempty"`
}

// MergeRule values recognized for Policy.MergeRule.
const MergeRuleStrictRequired = "strict-required"

// Policy controls gate requirements and execution concurrency for a plan.
type Policy struct {
	RequiredGates []string       `json:"requiredGates,omitempty"`
	OptionalGates []string       `json:"optionalGates,omitempty"`
	MaxWorkers    int            `json:"maxWorkers,omitempty"`
	Retries       map[string]int `json:"retries,omitempty"`
	Overrides     map[string]bool `json:"overrides,omitempty"`
	BlockOn       []string       `json:"blockOn,omitempty"`
	MergeRule     string         `json:"mergeRule,omitempty"`
}

// EffectiveMaxWorkers returns policy.MaxWorkers, defaulting to 1 when the
// plan has no policy or MaxWorkers is unset.
func (p *Plan) EffectiveMaxWorkers() int {
	if p.Policy == nil || p.Policy.MaxWorkers <= 0 {
		return 1
	}
	return p.Policy.MaxWorkers
}

// RequiredGateSet returns the configured required-gate set, empty when no
// policy is present.
func (p *Plan) RequiredGateSet() map[string]struct{} {
	set := make(map[string]struct{})
	if p.Policy == nil {
		return set
	}
	for _, g := range p.Policy.RequiredGates {
		set[g] = struct{}{}
	}
	return set
}

// GateStatus values.
const (
	StatusPass = "pass"
	StatusFail = "fail"
	StatusSkip = "skip"
)

// GateResult records the outcome of one gate execution attempt.
type GateResult struct {
	Item       string            `json:"item"`
	Gate       string            `json:"gate"`
	Status     string            `json:"status"`
	DurationMS int64             `json:"duration_ms"`
	StartedAt  string            `json:"started_at"`
	StdoutPath string            `json:"stdout_path,omitempty"`
	StderrPath string            `json:"stderr_path,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	Artifacts  []string          `json:"artifacts,omitempty"`
}

// ItemByName returns a pointer into p.Items for the given name, or nil.
func (p *Plan) ItemByName(name string) *PlanItem {
	for i := range p.Items {
		if p.Items[i].Name == name {
			return &p.Items[i]
		}
	}
	return nil
}
