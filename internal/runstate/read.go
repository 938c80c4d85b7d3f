package runstate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound reports that a directory holds no recognizable run. Absence is
// ordinary control flow for callers, not a failure.
var ErrNotFound = errors.New("run not found")

// File names of the two on-disk formats.
const (
	sessionFileName  = "session.json"
	manifestFileName = "manifest.json"
	checkpointName   = "checkpoint.json"
	finalOutcomeName = "final.json"
	progressLogName  = "progress.ndjson"
	pidFileName      = "run.pid"
	nodesDirName     = "nodes"
	nodeStatusName   = "status.json"
	defaultGraphName = "graph.dot"
)

// tryRead reads an optional file. Missing or unreadable files are not
// errors; the caller simply proceeds without that piece of state.
func tryRead(path string) ([]byte, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return b, true
}

// tryReadJSON decodes an optional JSON file into v.
func tryReadJSON(path string, v any) bool {
	b, ok := tryRead(path)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// HasRunMarker reports whether dir looks like a run directory in either
// format. Used when resolving run ids against configured roots.
func HasRunMarker(dir string) bool {
	for _, name := range []string{sessionFileName, manifestFileName, checkpointName, progressLogName, finalOutcomeName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// ReadState reconstructs a run's state from dir. The session format is
// probed first; a directory matching neither format returns ErrNotFound.
func ReadState(dir string) (*RunState, error) {
	if _, ok := tryRead(filepath.Join(dir, sessionFileName)); ok {
		st := ReadSessionState(dir)
		st.LastChecked = time.Now().UTC()
		return st, nil
	}
	if HasRunMarker(dir) {
		st := ReadLogsRootState(dir)
		st.LastChecked = time.Now().UTC()
		return st, nil
	}
	return nil, ErrNotFound
}
