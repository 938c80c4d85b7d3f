package runstate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSession(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "session.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write session.json: %v", err)
	}
}

func stubContainerAlive(t *testing.T, alive bool, gotID *string) {
	t.Helper()
	orig := containerAlive
	containerAlive = func(_ context.Context, id string) bool {
		if gotID != nil {
			*gotID = id
		}
		return alive
	}
	t.Cleanup(func() { containerAlive = orig })
}

func stubProcessAlive(t *testing.T, alive bool) {
	t.Helper()
	orig := processAlive
	processAlive = func(int) bool { return alive }
	t.Cleanup(func() { processAlive = orig })
}

func TestReadSessionState_ExecutingWithDeadContainerIsStalled(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, `{"run_id":"r1","status":"executing","container_id":"abc"}`)
	var gotID string
	stubContainerAlive(t, false, &gotID)

	st := ReadSessionState(dir)
	if st.ComputedStatus != ComputedStalled {
		t.Fatalf("computed=%q want stalled", st.ComputedStatus)
	}
	if st.Status != StatusExecuting {
		t.Fatalf("status=%q want executing", st.Status)
	}
	if gotID != "abc" {
		t.Fatalf("probed container %q want abc", gotID)
	}
}

func TestReadSessionState_ExecutingWithLiveContainer(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, `{"run_id":"r1","status":"executing","container_id":"abc","current_node":"build"}`)
	stubContainerAlive(t, true, nil)

	st := ReadSessionState(dir)
	if st.ComputedStatus != ComputedExecuting || !st.Alive {
		t.Fatalf("computed=%q alive=%v want executing/true", st.ComputedStatus, st.Alive)
	}
	if st.CurrentNode != "build" {
		t.Fatalf("current_node=%q", st.CurrentNode)
	}
}

func TestReadSessionState_TerminalStatusesSkipProbe(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, `{"run_id":"r1","status":"completed","container_id":"abc","completed_nodes":["plan","build"]}`)
	probed := false
	orig := containerAlive
	containerAlive = func(context.Context, string) bool { probed = true; return true }
	t.Cleanup(func() { containerAlive = orig })

	st := ReadSessionState(dir)
	if probed {
		t.Fatal("terminal run must not probe the container")
	}
	if st.ComputedStatus != ComputedCompleted || st.Alive {
		t.Fatalf("computed=%q alive=%v", st.ComputedStatus, st.Alive)
	}
	if len(st.CompletedNodes) != 2 {
		t.Fatalf("completed_nodes=%v", st.CompletedNodes)
	}
}

func TestReadSessionState_StatusMapping(t *testing.T) {
	cases := []struct {
		raw  string
		want ComputedStatus
	}{
		{"completed", ComputedCompleted},
		{"failed", ComputedFailed},
		{"stopped", ComputedFailed},
		{"interrupted", ComputedInterrupted},
		{"something_else", ComputedUnknown},
	}
	for _, tc := range cases {
		dir := t.TempDir()
		writeSession(t, dir, `{"run_id":"r1","status":"`+tc.raw+`"}`)
		st := ReadSessionState(dir)
		if st.ComputedStatus != tc.want {
			t.Errorf("status %q: computed=%q want %q", tc.raw, st.ComputedStatus, tc.want)
		}
	}
}

func TestReadSessionState_MalformedFileDegrades(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, `{not json`)
	st := ReadSessionState(dir)
	if st.Status != StatusUnknown {
		t.Fatalf("status=%q want unknown", st.Status)
	}
}

func TestReadState_PrefersSessionFormat(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, `{"run_id":"r1","status":"completed"}`)
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"run_id":"r1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := ReadState(dir)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if st.Format != FormatSession {
		t.Fatalf("format=%q want session", st.Format)
	}
}

func TestReadState_UnrecognizedDirIsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadState(dir)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestHasRunMarker(t *testing.T) {
	dir := t.TempDir()
	if HasRunMarker(dir) {
		t.Fatal("empty dir must have no marker")
	}
	writeProgress(t, dir, "")
	if !HasRunMarker(dir) {
		t.Fatal("progress log is a marker")
	}
}
