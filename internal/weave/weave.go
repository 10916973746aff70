// Package weave implements the merge-weave operator: it drives an
// integration branch through merge-weave, squash-weave, or rebase-weave
// strategies for each plan item, delegating every Git primitive to
// internal/gitcli and stopping a level's processing at the first conflict.
package weave

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/antigravity-dev/lex-pr-runner/internal/gitcli"
)

// Strategy names, matching plan.Strategy* constants.
const (
	StrategyMergeWeave  = "merge-weave"
	StrategySquashWeave = "squash-weave"
	StrategyRebaseWeave = "rebase-weave"
)

// Result records the outcome of weaving a single item into the
// integration branch.
type Result struct {
	Item       string
	Strategy   string
	Success    bool
	CommitSHA  string
	Conflicts  []string
	Message    string
	RollbackAt string // integration branch tip prior to this operation
}

// Item is the minimal shape Weave needs per plan item.
type Item struct {
	Name     string
	Branch   string // source branch to weave in
	Strategy string // defaults to StrategyRebaseWeave when empty
}

// NameIntegrationBranch builds the deterministic integration-branch name:
// prefix + an ISO-8601 compact timestamp + the leading 8 hex chars of
// sha256({target, item names in order}).
func NameIntegrationBranch(prefix, target string, itemNames []string, timestamp string) string {
	h := sha256.New()
	h.Write([]byte(target))
	for _, name := range itemNames {
		h.Write([]byte{0})
		h.Write([]byte(name))
	}
	sum := hex.EncodeToString(h.Sum(nil))[:8]
	return fmt.Sprintf("%s%s-%s", prefix, timestamp, sum)
}

// Weave integrates items, in order, into the integration branch (already
// checked out by the caller via gitcli.EnsureIntegrationBranch). It stops
// at the first conflicting item: subsequent items in results are never
// attempted, matching the "halt the level" contract in spec.md §4.7.
func Weave(workspace string, items []Item) []Result {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		tip, err := gitcli.LatestCommitSHA(workspace)
		if err != nil {
			results = append(results, Result{Item: item.Name, Success: false, Message: err.Error()})
			break
		}

		res := weaveOne(workspace, item, tip)
		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results
}

func weaveOne(workspace string, item Item, rollbackAt string) Result {
	strategy := strings.TrimSpace(item.Strategy)
	if strategy == "" {
		strategy = StrategyRebaseWeave
	}

	res := Result{Item: item.Name, Strategy: strategy, RollbackAt: rollbackAt}

	var (
		sha string
		err error
	)
	switch strategy {
	case StrategyMergeWeave:
		sha, err = gitcli.MergeInto(workspace, item.Branch)
	case StrategySquashWeave:
		sha, err = gitcli.SquashInto(workspace, item.Branch, item.Name)
	case StrategyRebaseWeave:
		integration, cerr := gitcli.CurrentBranch(workspace)
		if cerr != nil {
			res.Message = cerr.Error()
			return res
		}
		sha, err = gitcli.RebaseOnto(workspace, item.Branch, integration)
	default:
		res.Message = fmt.Sprintf("unknown weave strategy %q", strategy)
		return res
	}

	if err != nil {
		if conflictErr, ok := err.(*gitcli.ConflictError); ok {
			res.Conflicts = conflictErr.Paths
			res.Message = conflictErr.Error()
			return res
		}
		res.Message = err.Error()
		return res
	}

	res.Success = true
	res.CommitSHA = sha
	return res
}

// Rollback discards the effects of a weave operation by resetting the
// integration branch back to the recorded pre-op tip.
func Rollback(workspace string, result Result) error {
	if result.RollbackAt == "" {
		return fmt.Errorf("result for %s has no recorded rollback point", result.Item)
	}
	return gitcli.ResetToTip(workspace, result.RollbackAt)
}
