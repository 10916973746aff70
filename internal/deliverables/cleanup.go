package deliverables

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionPolicy bounds how many deliverables directories are kept and
// for how long, per spec.md §4.9.
type RetentionPolicy struct {
	MaxCount   int           // 0 = unlimited
	MaxAge     time.Duration // 0 = unlimited
	KeepLatest bool          // always retain the single newest directory
}

// CleanupResult summarizes what Cleanup removed.
type CleanupResult struct {
	Removed    []string
	FreedBytes int64
}

// Cleanup deletes deliverables directories under root exceeding
// policy.MaxCount (keeping the newest first) and/or older than
// policy.MaxAge, evaluated against now. When policy.KeepLatest is true,
// the single newest directory survives even if it violates MaxAge.
func Cleanup(root string, policy RetentionPolicy, now time.Time) (CleanupResult, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("deliverables: read %s: %w", root, err)
	}

	type dir struct {
		name string
		ts   string
	}
	var dirs []dir
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "weave-") {
			continue
		}
		dirs = append(dirs, dir{name: e.Name(), ts: strings.TrimPrefix(e.Name(), "weave-")})
	}

	// Newest first: timestamps are lexicographically sortable (ISO-8601-
	// derived), so a reverse string sort orders newest to oldest without
	// parsing.
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].ts > dirs[j].ts })

	var result CleanupResult
	for i, d := range dirs {
		keep := false
		if policy.KeepLatest && i == 0 {
			keep = true
		}
		if !keep && policy.MaxCount > 0 && i < policy.MaxCount {
			keep = true
		}
		if !keep && policy.MaxAge > 0 {
			age, err := dirAge(root, d.name, now)
			if err == nil && age <= policy.MaxAge {
				keep = true
			}
		}
		if !keep && policy.MaxCount == 0 && policy.MaxAge == 0 {
			keep = true
		}
		if keep {
			continue
		}

		path := filepath.Join(root, d.name)
		size, _ := dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			return result, fmt.Errorf("deliverables: remove %s: %w", path, err)
		}
		result.Removed = append(result.Removed, d.name)
		result.FreedBytes += size
	}

	return result, nil
}

func dirAge(root, name string, now time.Time) (time.Duration, error) {
	info, err := os.Stat(filepath.Join(root, name))
	if err != nil {
		return 0, err
	}
	return now.Sub(info.ModTime()), nil
}

func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
