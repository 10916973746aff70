// Package loader resolves a profile directory's YAML input files
// (stack.yml, scope.yml, deps.yml, gates.yml, profile.yml) into a Plan,
// following the precedence rules in spec.md §4.4.
package loader

// StackFile is stack.yml: an explicit, already-ordered plan source.
type StackFile struct {
	Version int       `yaml:"version"`
	Target  string    `yaml:"target"`
	PRs     []StackPR `yaml:"prs"`
}

// StackPR is one entry of stack.yml's prs list.
type StackPR struct {
	ID       int      `yaml:"id"`
	Branch   string   `yaml:"branch"`
	SHA      string   `yaml:"sha,omitempty"`
	Needs    []int    `yaml:"needs,omitempty"`
	Strategy string   `yaml:"strategy,omitempty"`
}

// ScopeFile is scope.yml: a query-driven plan source.
type ScopeFile struct {
	Version     int               `yaml:"version"`
	Target      string            `yaml:"target"`
	Sources     []ScopeSource     `yaml:"sources,omitempty"`
	Selectors   ScopeSelectors    `yaml:"selectors,omitempty"`
	Defaults    ScopeDefaults     `yaml:"defaults,omitempty"`
	PinCommits  bool              `yaml:"pin_commits,omitempty"`
	Repo        string            `yaml:"repo,omitempty"`
}

// ScopeSource names one forge query that contributes items to the plan.
type ScopeSource struct {
	Query string `yaml:"query"`
}

// ScopeSelectors filters which PRs a query returns.
type ScopeSelectors struct {
	IncludeLabels []string `yaml:"include_labels,omitempty"`
	ExcludeLabels []string `yaml:"exclude_labels,omitempty"`
}

// ScopeDefaults supplies fallback values applied to every item scope.yml
// produces, before deps.yml overlays are merged in.
type ScopeDefaults struct {
	Strategy string `yaml:"strategy,omitempty"`
	Base     string `yaml:"base,omitempty"`
}

// DepsFile is deps.yml: a dependency/strategy overlay applied on top of
// scope.yml's query results.
type DepsFile struct {
	Version     int               `yaml:"version"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Strategies  map[string]string `yaml:"strategies,omitempty"`
}

// GatesFile is gates.yml: ordered gate definitions keyed by item name.
type GatesFile struct {
	Version int                `yaml:"version"`
	Items   map[string][]GateDef `yaml:"items"`
}

// GateDef mirrors plan.Gate's YAML shape (the loader converts to
// plan.Gate once an item's name is known).
type GateDef struct {
	Name       string            `yaml:"name"`
	Run        string            `yaml:"run"`
	Runtime    string            `yaml:"runtime,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
	Cwd        string            `yaml:"cwd,omitempty"`
	Artifacts  []string          `yaml:"artifacts,omitempty"`
	TimeoutSec int               `yaml:"timeoutSec,omitempty"`
	Retries    int               `yaml:"retries,omitempty"`
}

// ProfileFile is profile.yml: role/name metadata for the resolved
// profile directory. Absence implies role "example" (read-only).
type ProfileFile struct {
	Role string `yaml:"role"`
	Name string `yaml:"name"`
}
