package gitcli

import (
	"fmt"
	"os/exec"
	"strings"
)

// BranchExists reports whether branch exists locally.
func BranchExists(workspace, branch string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", fmt.Sprintf("refs/heads/%s", branch))
	cmd.Dir = workspace
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if branch %s exists: %w", branch, err)
	}
	return true, nil
}

// EnsureIntegrationBranch creates branch from base if it does not already
// exist, then checks it out. If it exists it is checked out as-is (a
// resumed weave continues from its prior tip).
func EnsureIntegrationBranch(workspace, branch, base string) error {
	exists, err := BranchExists(workspace, branch)
	if err != nil {
		return err
	}
	if exists {
		return runErr(workspace, "checkout", "checkout", branch)
	}
	return runErr(workspace, "checkout -b", "checkout", "-b", branch, base)
}

// DeleteBranch force-deletes a local branch, used to discard a rolled-back
// integration branch.
func DeleteBranch(workspace, branch string) error {
	out, err := run(workspace, "branch", "-D", branch)
	if err != nil {
		return fmt.Errorf("failed to delete branch %s: %w (%s)", branch, err, strings.TrimSpace(out))
	}
	return nil
}

// CleanupIntegrationBranches deletes local branches with prefix other than
// the currently checked-out one, returning the names deleted. Deliverables
// retention (internal/deliverables) does not call it.
func CleanupIntegrationBranches(workspace, prefix string) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	current, err := CurrentBranch(workspace)
	if err != nil {
		return nil, err
	}
	out, err := run(workspace, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w (%s)", err, strings.TrimSpace(out))
	}
	var deleted []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		branch := strings.TrimSpace(line)
		if branch == "" || branch == current || !strings.HasPrefix(branch, prefix) {
			continue
		}
		if err := DeleteBranch(workspace, branch); err != nil {
			return deleted, err
		}
		deleted = append(deleted, branch)
	}
	return deleted, nil
}
