package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/park9140/kilroy-run-pane/internal/logger"
)

func TestSkipWatchFile(t *testing.T) {
	skipped := []string{
		"/runs/r1/progress.ndjson",
		"/runs/r1/archive.tgz",
		"/runs/r1/artifact.gz",
		"/runs/r1/blob.zst",
		"/runs/r1/run.out",
		"/runs/r1/checkpoint.json.tmp.1700000000",
	}
	for _, path := range skipped {
		if !skipWatchFile(path) {
			t.Errorf("%s should be excluded from the watch", path)
		}
	}
	watched := []string{
		"/runs/r1/session.json",
		"/runs/r1/checkpoint.json",
		"/runs/r1/final.json",
		"/runs/r1/nodes/build/status.json",
	}
	for _, path := range watched {
		if skipWatchFile(path) {
			t.Errorf("%s should stay watched", path)
		}
	}
}

func TestDirWatcher_CoalescesBurstsIntoOneChange(t *testing.T) {
	dir := t.TempDir()
	fires := make(chan struct{}, 16)
	w, err := newDirWatcher(dir, 50*time.Millisecond, func() { fires <- struct{}{} }, logger.Discard())
	if err != nil {
		t.Fatalf("newDirWatcher: %v", err)
	}
	defer w.close()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, "checkpoint.json"), []byte(`{"n":1}`), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-fires:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for debounced change")
	}

	// The burst should have collapsed into a single callback.
	select {
	case <-fires:
		t.Fatal("burst produced more than one change callback")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDirWatcher_IgnoresExcludedFiles(t *testing.T) {
	dir := t.TempDir()
	fires := make(chan struct{}, 16)
	w, err := newDirWatcher(dir, 30*time.Millisecond, func() { fires <- struct{}{} }, logger.Discard())
	if err != nil {
		t.Fatalf("newDirWatcher: %v", err)
	}
	defer w.close()

	if err := os.WriteFile(filepath.Join(dir, "progress.ndjson"), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fires:
		t.Fatal("append-only log write must not trigger a change")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDirWatcher_PicksUpNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	fires := make(chan struct{}, 16)
	w, err := newDirWatcher(dir, 30*time.Millisecond, func() { fires <- struct{}{} }, logger.Discard())
	if err != nil {
		t.Fatalf("newDirWatcher: %v", err)
	}
	defer w.close()

	sub := filepath.Join(dir, "restart-1")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Drain the event for the directory creation itself.
	select {
	case <-fires:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for mkdir change")
	}

	if err := os.WriteFile(filepath.Join(sub, "final.json"), []byte(`{"status":"success"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fires:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change inside new subdirectory")
	}
}
