package gitcli

import (
	"fmt"
	"strings"
)

// MergeInto performs a non-fast-forward merge of source into the checked
// out integration branch, producing one merge commit. On conflict the
// merge is aborted and a *ConflictError is returned with the conflicted
// paths; on success the new tip SHA is returned.
func MergeInto(workspace, source string) (string, error) {
	out, err := run(workspace, "merge", "--no-ff", "--no-edit", source)
	if err != nil {
		return "", handleWeaveFailure(workspace, "merge-weave", "merge --abort", out, err)
	}
	return LatestCommitSHA(workspace)
}

// SquashInto squash-merges source into the checked out integration branch
// and commits with a message naming item. Returns the new tip SHA.
func SquashInto(workspace, source, item string) (string, error) {
	out, err := run(workspace, "merge", "--squash", source)
	if err != nil {
		return "", handleWeaveFailure(workspace, "squash-weave", "reset --merge", out, err)
	}
	msg := fmt.Sprintf("squash-weave %s", item)
	if out, err := run(workspace, "commit", "-m", msg); err != nil {
		return "", fmt.Errorf("failed to commit squash-weave for %s: %w (%s)", item, err, strings.TrimSpace(out))
	}
	return LatestCommitSHA(workspace)
}

// RebaseOnto rebases source onto the checked out integration branch's tip,
// then fast-forwards the integration branch to the rebased result. Any
// rebase conflict aborts the rebase and returns a *ConflictError.
func RebaseOnto(workspace, source, integration string) (string, error) {
	if err := runErr(workspace, "checkout", "checkout", source); err != nil {
		return "", err
	}
	out, err := run(workspace, "rebase", integration)
	if err != nil {
		paths, pathErr := conflictedPaths(workspace)
		if abortOut, abortErr := run(workspace, "rebase", "--abort"); abortErr != nil {
			return "", fmt.Errorf("rebase-weave failed and abort also failed: %w (%s)", abortErr, strings.TrimSpace(abortOut))
		}
		if pathErr == nil && len(paths) > 0 {
			return "", &ConflictError{Op: "rebase-weave", Paths: paths}
		}
		return "", fmt.Errorf("rebase-weave failed: %w (%s)", err, strings.TrimSpace(out))
	}

	if err := runErr(workspace, "checkout", "checkout", integration); err != nil {
		return "", err
	}
	if out, err := run(workspace, "merge", "--ff-only", source); err != nil {
		return "", fmt.Errorf("rebase-weave fast-forward failed: %w (%s)", err, strings.TrimSpace(out))
	}
	return LatestCommitSHA(workspace)
}

// handleWeaveFailure inspects a failed merge/squash attempt for conflicted
// paths, aborting the in-progress operation before returning. If no
// conflicted paths are found the failure is reported as a plain error
// (the command failed for some other reason, e.g. bad ref).
func handleWeaveFailure(workspace, op, abortCmd, out string, cmdErr error) error {
	paths, pathErr := conflictedPaths(workspace)
	abortArgs := strings.Fields(abortCmd)
	if abortOut, abortErr := run(workspace, abortArgs...); abortErr != nil {
		return fmt.Errorf("%s failed and abort also failed: %w (%s)", op, abortErr, strings.TrimSpace(abortOut))
	}
	if pathErr == nil && len(paths) > 0 {
		return &ConflictError{Op: op, Paths: paths}
	}
	return fmt.Errorf("%s failed: %w (%s)", op, cmdErr, strings.TrimSpace(out))
}
