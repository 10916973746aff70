package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writeFile(%s): %v", name, err)
	}
}

func TestLoadFileIfPresent_MissingReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	var out StackFile
	found, err := loadFileIfPresent(filepath.Join(dir, "stack.yml"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected found=false for missing file")
	}
}

func TestLoadFileIfPresent_StrictRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stack.yml", "version: 1\ntarget: main\nbogus_field: true\n")

	var out StackFile
	_, err := loadFileIfPresent(filepath.Join(dir, "stack.yml"), &out)
	if err == nil {
		t.Fatal("expected strict decode error for unknown field")
	}
	var loadErr *LoadError
	if !asLoadError(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T: %v", err, err)
	}
	if loadErr.Path != filepath.Join(dir, "stack.yml") {
		t.Errorf("LoadError.Path = %q", loadErr.Path)
	}
}

func TestLoadFileIfPresent_ParsesKnownFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stack.yml", "version: 1\ntarget: main\nprs:\n  - id: 1\n    branch: feature-a\n")

	var out StackFile
	found, err := loadFileIfPresent(filepath.Join(dir, "stack.yml"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if out.Target != "main" || len(out.PRs) != 1 || out.PRs[0].Branch != "feature-a" {
		t.Errorf("unexpected decode result: %+v", out)
	}
}

func asLoadError(err error, target **LoadError) bool {
	le, ok := err.(*LoadError)
	if !ok {
		return false
	}
	*target = le
	return true
}
