package gitcli

import (
	"fmt"
	"strings"
)

// MergeTargetBranch merges the integration branch into target at
// autopilot L4, after checking target out. It always creates a merge
// commit (--no-ff), even when a fast-forward is possible.
func MergeTargetBranch(workspace, target, integration string) (string, error) {
	if err := runErr(workspace, "checkout", "checkout", target); err != nil {
		return "", err
	}
	out, err := run(workspace, "merge", "--no-ff", "--no-edit", integration)
	if err != nil {
		return "", handleWeaveFailure(workspace, "finalize-merge", "merge --abort", out, err)
	}
	return LatestCommitSHA(workspace)
}

// RevertCommit reverts commitSHA on the checked out branch without
// pushing; callers push separately once the autopilot L4 decision to
// finalize is confirmed. Weave rollback points use ResetToTip, not this.
func RevertCommit(workspace, commitSHA string) error {
	commitSHA = strings.TrimSpace(commitSHA)
	if commitSHA == "" {
		return fmt.Errorf("commit SHA is required")
	}
	out, err := run(workspace, "revert", commitSHA, "--no-edit")
	if err != nil {
		return fmt.Errorf("failed to revert commit %s: %w (%s)", commitSHA, err, strings.TrimSpace(out))
	}
	return nil
}

// ResetToTip hard-resets the checked out branch back to tip, the
// mechanism behind a weave rollback point: the integration branch's
// pre-op tip is recorded before each weave step, and rollback restores it.
func ResetToTip(workspace, tip string) error {
	tip = strings.TrimSpace(tip)
	if tip == "" {
		return fmt.Errorf("tip commit SHA is required")
	}
	out, err := run(workspace, "reset", "--hard", tip)
	if err != nil {
		return fmt.Errorf("failed to reset to %s: %w (%s)", tip, err, strings.TrimSpace(out))
	}
	return nil
}

// ClosePR closes a superseded source PR via the gh CLI. Autopilot L4
// closes PRs through its ForgeClient instead and does not call this.
func ClosePR(workspace string, number int, comment string) error {
	args := []string{"pr", "close", fmt.Sprintf("%d", number)}
	if comment = strings.TrimSpace(comment); comment != "" {
		args = append(args, "--comment", comment)
	}
	out, err := runGH(workspace, args...)
	if err != nil {
		return fmt.Errorf("failed to close PR #%d: %w (%s)", number, err, strings.TrimSpace(out))
	}
	return nil
}
