package runstate

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/park9140/kilroy-run-pane/internal/probe"
)

// Probe seams, overridable in tests.
var (
	processAlive   = probe.ProcessAlive
	containerAlive = probe.ContainerAlive
)

// sessionDoc is the single status file written by the containerized session
// runner. It carries the whole run record in one document.
type sessionDoc struct {
	RunID          string   `json:"run_id"`
	Status         string   `json:"status"`
	ContainerID    string   `json:"container_id"`
	CurrentNode    string   `json:"current_node"`
	FailureReason  string   `json:"failure_reason"`
	StartedAt      string   `json:"started_at"`
	FinishedAt     string   `json:"finished_at"`
	UpdatedAt      string   `json:"updated_at"`
	CompletedNodes []string `json:"completed_nodes"`
}

// ReadSessionState builds a snapshot from a session.json run directory. The
// container is probed only while the recorded status is executing; once a
// run is terminal there is nothing live to check.
func ReadSessionState(dir string) *RunState {
	st := &RunState{Format: FormatSession}
	st.Status = StatusUnknown

	var doc sessionDoc
	if !tryReadJSON(filepath.Join(dir, sessionFileName), &doc) {
		st.ComputedStatus = ComputedUnknown
		return st
	}

	st.ID = doc.RunID
	st.Status = sessionStatus(doc.Status)
	st.CurrentNode = doc.CurrentNode
	st.FailureReason = doc.FailureReason
	st.CompletedNodes = doc.CompletedNodes
	st.StartedAt = parseEventTime(doc.StartedAt)
	st.FinishedAt = parseEventTime(doc.FinishedAt)
	st.HeartbeatAt = parseEventTime(doc.UpdatedAt)

	if st.Status == StatusExecuting {
		st.Alive = containerAlive(context.Background(), doc.ContainerID)
	}
	st.ComputedStatus = ComputeStatus(st.Status, st.Alive)
	return st
}

func sessionStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusExecuting):
		return StatusExecuting
	case string(StatusCompleted):
		return StatusCompleted
	case string(StatusFailed):
		return StatusFailed
	case string(StatusStopped):
		return StatusStopped
	case string(StatusInterrupted):
		return StatusInterrupted
	default:
		return StatusUnknown
	}
}
