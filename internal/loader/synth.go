package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
)

// ForgeQuerier is the narrow read surface the scope.yml path needs; the
// concrete hosted-forge client lives in internal/forge and is never
// imported here, keeping the loader forge-agnostic and easy to test with
// a fake.
type ForgeQuerier interface {
	QueryOpenPRs(ctx context.Context, query string, includeLabels, excludeLabels []string) ([]ForgePR, error)
}

// ForgePR is the minimal PR shape a forge query returns.
type ForgePR struct {
	Name   string
	Branch string
	SHA    string
	Body   string
}

// Load resolves profileDir's input files into a Plan following spec.md
// §4.4's precedence: stack.yml, else scope.yml+deps.yml, else a default
// empty plan. gates.yml is merged into every path's items by name; the
// returned Profile carries role context for read-only enforcement
// upstream. Warnings are non-fatal notices (e.g. forge query failure
// when scope.yml has no stack.yml fallback).
func Load(ctx context.Context, profileDir string, forge ForgeQuerier) (*plan.Plan, *ProfileFile, []string, error) {
	profile, err := loadProfile(profileDir)
	if err != nil {
		return nil, nil, nil, err
	}

	var gates GatesFile
	if _, err := loadFileIfPresent(filepath.Join(profileDir, "gates.yml"), &gates); err != nil {
		return nil, nil, nil, err
	}

	var stack StackFile
	found, err := loadFileIfPresent(filepath.Join(profileDir, "stack.yml"), &stack)
	if err != nil {
		return nil, nil, nil, err
	}
	if found {
		p, err := planFromStack(&stack)
		if err == nil {
			applyGates(p, &gates)
		}
		return p, profile, nil, err
	}

	var scope ScopeFile
	found, err = loadFileIfPresent(filepath.Join(profileDir, "scope.yml"), &scope)
	if err != nil {
		return nil, nil, nil, err
	}
	if found {
		var deps DepsFile
		if _, err := loadFileIfPresent(filepath.Join(profileDir, "deps.yml"), &deps); err != nil {
			return nil, nil, nil, err
		}
		p, warnings, err := planFromScope(ctx, &scope, &deps, forge)
		if err == nil {
			applyGates(p, &gates)
		}
		return p, profile, warnings, err
	}

	empty := &plan.Plan{SchemaVersion: "1.0.0", Target: "main", Items: []plan.PlanItem{}}
	applyGates(empty, &gates)
	return empty, profile, nil, nil
}

// loadProfile reads profile.yml, defaulting to role "example" (read-only)
// when absent per spec.md's profile precedence.
func loadProfile(profileDir string) (*ProfileFile, error) {
	profile := &ProfileFile{Role: "example"}
	if _, err := loadFileIfPresent(filepath.Join(profileDir, "profile.yml"), profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// applyGates merges gates.yml's per-item gate definitions into p's items,
// converting each GateDef to a plan.Gate.
func applyGates(p *plan.Plan, gates *GatesFile) {
	if len(gates.Items) == 0 {
		return
	}
	for i := range p.Items {
		defs, ok := gates.Items[p.Items[i].Name]
		if !ok {
			continue
		}
		converted := make([]plan.Gate, 0, len(defs))
		for _, d := range defs {
			converted = append(converted, plan.Gate{
				Name:       d.Name,
				Run:        d.Run,
				Runtime:    d.Runtime,
				Env:        d.Env,
				Cwd:        d.Cwd,
				Artifacts:  d.Artifacts,
				TimeoutSec: d.TimeoutSec,
				Retries:    d.Retries,
			})
		}
		p.Items[i].Gates = converted
	}
}

func planFromStack(stack *StackFile) (*plan.Plan, error) {
	byID := make(map[int]string, len(stack.PRs))
	for _, pr := range stack.PRs {
		byID[pr.ID] = fmt.Sprintf("PR-%d", pr.ID)
	}

	items := make([]plan.PlanItem, 0, len(stack.PRs))
	for _, pr := range stack.PRs {
		deps := make([]string, 0, len(pr.Needs))
		for _, need := range pr.Needs {
			name, ok := byID[need]
			if !ok {
				return nil, fmt.Errorf("stack.yml: PR %d needs unknown PR %d", pr.ID, need)
			}
			deps = append(deps, name)
		}
		strategy := pr.Strategy
		if strategy == "" {
			strategy = plan.StrategyRebaseWeave
		}
		items = append(items, plan.PlanItem{
			Name:     byID[pr.ID],
			Deps:     deps,
			Branch:   pr.Branch,
			SHA:      pr.SHA,
			Strategy: strategy,
		})
	}

	return &plan.Plan{SchemaVersion: "1.0.0", Target: stack.Target, Items: items}, nil
}

func planFromScope(ctx context.Context, scope *ScopeFile, deps *DepsFile, forge ForgeQuerier) (*plan.Plan, []string, error) {
	target := scope.Target
	if target == "" {
		target = "main"
	}
	base := &plan.Plan{SchemaVersion: "1.0.0", Target: target, Items: []plan.PlanItem{}}

	if forge == nil || len(scope.Sources) == 0 {
		return base, []string{"no forge client or no sources configured in scope.yml; returning empty plan"}, nil
	}

	var warnings []string
	itemsByName := make(map[string]*plan.PlanItem)
	var order []string

	for _, source := range scope.Sources {
		prs, err := forge.QueryOpenPRs(ctx, source.Query, scope.Selectors.IncludeLabels, scope.Selectors.ExcludeLabels)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("scope query %q failed: %v", source.Query, err))
			continue
		}
		for _, pr := range prs {
			if _, exists := itemsByName[pr.Name]; exists {
				continue
			}
			item := plan.PlanItem{Name: pr.Name, Branch: pr.Branch, Strategy: scope.Defaults.Strategy}
			if item.Strategy == "" {
				item.Strategy = plan.StrategyRebaseWeave
			}
			if scope.PinCommits {
				item.SHA = pr.SHA
			}
			itemsByName[pr.Name] = &item
			order = append(order, pr.Name)

			for _, depRef := range ParseDependencyRefs(pr.Body) {
				if depRef[0] != '#' {
					// A repo-qualified reference ("repo#N"/"owner/repo#N")
					// names a PR outside this plan's own source repo; it
					// can't be resolved to a same-plan item name, so it's
					// recorded as a warning instead of a graph edge.
					warnings = append(warnings, fmt.Sprintf("%s declares external dependency %q; not tracked in this plan", pr.Name, depRef))
					continue
				}
				depName := "PR-" + depRef[1:]
				item.Deps = append(item.Deps, depName)
			}
		}
	}

	if deps != nil {
		applyDepsOverlay(itemsByName, deps)
	}

	sort.Strings(order)
	items := make([]plan.PlanItem, 0, len(order))
	for _, name := range order {
		items = append(items, *itemsByName[name])
	}
	base.Items = items

	if len(warnings) > 0 && len(items) == 0 {
		warnings = append(warnings, "all scope queries failed; returning empty plan")
	}
	return base, warnings, nil
}

// applyDepsOverlay merges deps.yml's global depends_on list and
// per-item strategy overrides into the already-built item set.
func applyDepsOverlay(items map[string]*plan.PlanItem, deps *DepsFile) {
	for name, item := range items {
		for _, dep := range deps.DependsOn {
			if dep == name {
				continue
			}
			item.Deps = append(item.Deps, dep)
		}
		if strategy, ok := deps.Strategies[name]; ok {
			item.Strategy = strategy
		}
	}
}
