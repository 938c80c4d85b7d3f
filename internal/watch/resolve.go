package watch

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/park9140/kilroy-run-pane/internal/runstate"
)

// FindDirectory resolves a run id to its on-disk directory, searching each
// configured root in order. The winning directory is memoized for the
// process lifetime. Unresolvable ids return runstate.ErrNotFound.
func (r *Registry) FindDirectory(runID string) (string, error) {
	if !validRunID(runID) {
		return "", runstate.ErrNotFound
	}

	r.mu.Lock()
	if dir, ok := r.dirs[runID]; ok {
		r.mu.Unlock()
		return dir, nil
	}
	r.mu.Unlock()

	for _, root := range r.cfg.Roots {
		dir := filepath.Join(root, runID)
		if !runstate.HasRunMarker(dir) {
			continue
		}
		r.metrics.LookupResolved("hit")
		r.mu.Lock()
		r.dirs[runID] = dir
		r.mu.Unlock()
		return dir, nil
	}
	r.metrics.LookupResolved("miss")
	return "", runstate.ErrNotFound
}

// ListRuns returns all run ids across the configured roots, de-duplicated,
// newest first. Run ids sort lexicographically by creation time, so newest
// first is a reverse sort.
func (r *Registry) ListRuns() []string {
	seen := map[string]bool{}
	var ids []string
	for _, root := range r.cfg.Roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || seen[entry.Name()] {
				continue
			}
			if !runstate.HasRunMarker(filepath.Join(root, entry.Name())) {
				continue
			}
			seen[entry.Name()] = true
			ids = append(ids, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids
}

// validRunID rejects ids that would escape the runs roots.
func validRunID(runID string) bool {
	if runID == "" || runID == "." || runID == ".." {
		return false
	}
	return filepath.Base(runID) == runID
}
