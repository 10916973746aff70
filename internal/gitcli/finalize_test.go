package gitcli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFakeBinary(t *testing.T, command, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, command)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write fake command %s: %v", command, err)
	}
	return dir
}

func TestMergeTargetBranch(t *testing.T) {
	repo := setupTestRepo(t)
	base, _ := CurrentBranch(repo)

	runGit(t, repo, "checkout", "-b", "integration")
	if err := os.WriteFile(filepath.Join(repo, "feature.txt"), []byte("feature\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGit(t, repo, "add", "feature.txt")
	runGit(t, repo, "commit", "-m", "integration commit")
	runGit(t, repo, "checkout", base)

	sha, err := MergeTargetBranch(repo, base, "integration")
	if err != nil {
		t.Fatalf("MergeTargetBranch failed: %v", err)
	}
	if len(sha) != 40 {
		t.Errorf("expected commit SHA, got %q", sha)
	}
	current, _ := CurrentBranch(repo)
	if current != base {
		t.Errorf("expected to end on %s, got %s", base, current)
	}
}

func TestClosePR(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "gh-args.log")
	binDir := writeFakeBinary(t, "gh", "#!/bin/sh\n"+
		"echo \"$@\" >> \"$GH_CLOSE_ARGS\"\n"+
		"exit 0\n")
	t.Setenv("GH_CLOSE_ARGS", logPath)
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))

	if err := ClosePR(t.TempDir(), 42, "superseded by weave"); err != nil {
		t.Fatalf("ClosePR failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	got := strings.TrimSpace(string(data))
	want := "pr close 42 --comment superseded by weave"
	if got != want {
		t.Fatalf("unexpected gh args: %q, want %q", got, want)
	}
}

func TestClosePR_Failure(t *testing.T) {
	binDir := writeFakeBinary(t, "gh", "#!/bin/sh\necho closed already >&2\nexit 1\n")
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))

	err := ClosePR(t.TempDir(), 7, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "failed to close PR #7") || !strings.Contains(err.Error(), "closed already") {
		t.Fatalf("unexpected error: %v", err)
	}
}
