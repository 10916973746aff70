// Package deliverables manages the timestamped, manifest-backed output
// directory an autopilot run at L>=1 writes into (spec.md §4.9): one
// "weave-<ts>/" directory per run, a manifest.json describing every
// artifact written into it, and a "latest" pointer kept atomically
// up to date. Retention cleanup trims old directories per policy.
package deliverables

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest is the deliverables manifest.json schema from spec.md §3.
type Manifest struct {
	SchemaVersion     string            `json:"schemaVersion"`
	PlanHash          string            `json:"planHash"`
	LevelExecuted     int               `json:"levelExecuted"`
	RunnerVersion     string            `json:"runnerVersion"`
	CreatedAt         string            `json:"createdAt"`
	Artifacts         []ArtifactEntry   `json:"artifacts"`
	ExecutionContext  map[string]string `json:"executionContext,omitempty"`
}

// ArtifactEntry describes one file registered into the manifest.
type ArtifactEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Run is one open deliverables directory being written into. Callers
// create it via NewRun, register every artifact they write with
// RegisterArtifact, then call Finalize to flush manifest.json and swap
// the "latest" pointer.
type Run struct {
	Dir           string
	PlanHash      string
	RunnerVersion string
	manifest      Manifest
}

// NewRun creates "<deliverablesRoot>/weave-<ts>/" and returns a Run
// tracking it. ts must already be formatted by the caller so timestamp
// generation stays outside this package (callers inject wall-clock or a
// deterministic override per profile.Env.Now()).
func NewRun(deliverablesRoot, ts, planHash, runnerVersion string, createdAt time.Time) (*Run, error) {
	dir := filepath.Join(deliverablesRoot, "weave-"+ts)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("deliverables: create run dir: %w", err)
	}

	return &Run{
		Dir:           dir,
		PlanHash:      planHash,
		RunnerVersion: runnerVersion,
		manifest: Manifest{
			SchemaVersion: "1.0.0",
			PlanHash:      planHash,
			RunnerVersion: runnerVersion,
			CreatedAt:     createdAt.UTC().Format(time.RFC3339),
			Artifacts:     []ArtifactEntry{},
		},
	}, nil
}

// SetLevelExecuted records the highest autopilot level this run reached.
func (r *Run) SetLevelExecuted(level int) { r.manifest.LevelExecuted = level }

// SetExecutionContext attaches free-form execution context (e.g. git
// SHA, profile role) to the manifest.
func (r *Run) SetExecutionContext(ctx map[string]string) { r.manifest.ExecutionContext = ctx }

// RegisterArtifact writes content to "<run.Dir>/<relPath>", hashes it,
// and appends a manifest entry. relPath must be relative; artifactType
// is a caller-defined label (e.g. "report", "log", "plan").
func (r *Run) RegisterArtifact(relPath, artifactType string, content []byte) error {
	fullPath := filepath.Join(r.Dir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("deliverables: create artifact parent dir: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("deliverables: write artifact %s: %w", relPath, err)
	}

	sum := sha256.Sum256(content)
	r.manifest.Artifacts = append(r.manifest.Artifacts, ArtifactEntry{
		Name: relPath,
		Type: artifactType,
		Hash: hex.EncodeToString(sum[:]),
		Size: int64(len(content)),
	})
	return nil
}

// RegisterExistingFile hashes a file already written at path (relative
// to run.Dir, e.g. one written directly by the gate engine) and
// appends a manifest entry for it without rewriting the content.
func (r *Run) RegisterExistingFile(relPath, artifactType string) error {
	data, err := os.ReadFile(filepath.Join(r.Dir, relPath))
	if err != nil {
		return fmt.Errorf("deliverables: read existing artifact %s: %w", relPath, err)
	}
	sum := sha256.Sum256(data)
	r.manifest.Artifacts = append(r.manifest.Artifacts, ArtifactEntry{
		Name: relPath,
		Type: artifactType,
		Hash: hex.EncodeToString(sum[:]),
		Size: int64(len(data)),
	})
	return nil
}

// Finalize writes manifest.json (via write-to-temp-then-rename so
// readers never observe a partial file) and atomically repoints
// "<deliverablesRoot>/latest" at this run's directory.
func (r *Run) Finalize() error {
	data, err := json.MarshalIndent(r.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("deliverables: marshal manifest: %w", err)
	}

	manifestPath := filepath.Join(r.Dir, "manifest.json")
	tmpPath := manifestPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("deliverables: write manifest: %w", err)
	}
	if err := os.Rename(tmpPath, manifestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("deliverables: finalize manifest: %w", err)
	}

	return updateLatest(filepath.Dir(r.Dir), r.Dir)
}

// updateLatest repoints "<root>/latest" at target via a temp-symlink-
// then-rename so concurrent readers of "latest" always observe either
// the prior or the new target, never a missing or half-written link.
func updateLatest(root, target string) error {
	latestPath := filepath.Join(root, "latest")
	tmpLink := latestPath + ".tmp"
	os.Remove(tmpLink)

	relTarget, err := filepath.Rel(root, target)
	if err != nil {
		relTarget = target
	}
	if err := os.Symlink(relTarget, tmpLink); err != nil {
		return fmt.Errorf("deliverables: create latest symlink: %w", err)
	}
	if err := os.Rename(tmpLink, latestPath); err != nil {
		os.Remove(tmpLink)
		return fmt.Errorf("deliverables: swap latest pointer: %w", err)
	}
	return nil
}
