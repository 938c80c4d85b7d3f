package runstate

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// heartbeatTailBytes bounds how much of the progress log is scanned for the
// most recent event timestamp.
const heartbeatTailBytes = 4 * 1024

type manifestDoc struct {
	RunID     string `json:"run_id"`
	GraphName string `json:"graph_name"`
	GraphPath string `json:"graph_path"`
	StartedAt string `json:"started_at"`
}

type checkpointDoc struct {
	Timestamp      string         `json:"timestamp"`
	CurrentNode    string         `json:"current_node"`
	CompletedNodes []string       `json:"completed_nodes"`
	NodeRetries    map[string]int `json:"node_retries"`
}

type finalOutcomeDoc struct {
	Status        string `json:"status"`
	RunID         string `json:"run_id"`
	FailureReason string `json:"failure_reason"`
}

// ReadLogsRootState builds a snapshot from a multi-file attractor logs root.
// Every file is read best-effort: whatever is missing or malformed is left
// out of the snapshot rather than failing the read.
func ReadLogsRootState(root string) *RunState {
	st := &RunState{Format: FormatLogsRoot}
	st.Status = StatusUnknown

	chain := WalkRestartChain(root)
	latest := chain[len(chain)-1]
	st.RestartCount = len(chain) - 1

	var manifest manifestDoc
	if tryReadJSON(filepath.Join(root, manifestFileName), &manifest) {
		st.ID = manifest.RunID
		st.GraphName = manifest.GraphName
		st.StartedAt = parseEventTime(manifest.StartedAt)
	}

	// Checkpoint and final outcome live in the latest restart directory once
	// a restart has happened; fall back to the original root.
	var checkpoint *checkpointDoc
	for _, dir := range []string{latest, root} {
		var doc checkpointDoc
		if tryReadJSON(filepath.Join(dir, checkpointName), &doc) {
			checkpoint = &doc
			break
		}
	}
	var final *finalOutcomeDoc
	for _, dir := range []string{latest, root} {
		var doc finalOutcomeDoc
		if tryReadJSON(filepath.Join(dir, finalOutcomeName), &doc) {
			final = &doc
			break
		}
	}

	if checkpoint != nil {
		st.CurrentNode = checkpoint.CurrentNode
		st.CompletedNodes = checkpoint.CompletedNodes
	}
	if final != nil {
		if st.ID == "" {
			st.ID = final.RunID
		}
		if reason := strings.TrimSpace(final.FailureReason); reason != "" {
			st.FailureReason = reason
		}
	}

	// Replay every log root in chain order; each root's attempts carry its
	// position in the chain.
	for i, dir := range chain {
		f, err := os.Open(filepath.Join(dir, progressLogName))
		if err != nil {
			continue
		}
		stages, cycle := ReplayLog(f)
		_ = f.Close()
		for j := range stages {
			stages[j].RestartIndex = i
		}
		st.History = append(st.History, stages...)
		if cycle != nil && (st.Cycle == nil || cycle.Count > st.Cycle.Count) {
			st.Cycle = cycle
		}
	}

	st.HeartbeatAt = tailHeartbeat(filepath.Join(latest, progressLogName))
	st.Stages = mergeStageInfos(chain, checkpoint)

	if st.Cycle != nil {
		if target := graphRetryTarget(root, manifest.GraphPath); target != "" {
			st.Cycle.RetryTarget = target
		}
	}

	terminal := false
	if final != nil {
		switch strings.ToLower(strings.TrimSpace(final.Status)) {
		case "success":
			st.Status = StatusCompleted
			terminal = true
		case "fail":
			st.Status = StatusFailed
			terminal = true
		}
	}
	// The PID is only meaningful while the run could still be going: no
	// terminal outcome yet, and a checkpoint showing it got underway.
	if !terminal && checkpoint != nil {
		if pid, ok := readPIDFile(latest, root); ok {
			st.Alive = processAlive(pid)
		}
		if st.Alive {
			st.Status = StatusExecuting
		} else {
			st.Status = StatusInterrupted
		}
	}
	st.ComputedStatus = ComputeStatus(st.Status, st.Alive)
	return st
}

func readPIDFile(dirs ...string) (int, bool) {
	for _, dir := range dirs {
		b, ok := tryRead(filepath.Join(dir, pidFileName))
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
		if err != nil || pid <= 0 {
			continue
		}
		return pid, true
	}
	return 0, false
}

// tailHeartbeat scans the last chunk of the progress log backward for the
// most recent line carrying a timestamp.
func tailHeartbeat(path string) time.Time {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}
	}
	defer func() { _ = f.Close() }()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return time.Time{}
	}
	offset := size - heartbeatTailBytes
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return time.Time{}
	}

	lines := strings.Split(string(buf), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		ev, ok := parseEvent(lines[i])
		if !ok || ev.TS.IsZero() {
			continue
		}
		return ev.TS
	}
	return time.Time{}
}

// mergeStageInfos reads per-node status artifacts across the restart chain.
// Later directories override earlier ones for the same node; nodes listed as
// completed in the checkpoint but lacking an artifact are synthesized as
// pass.
func mergeStageInfos(chain []string, checkpoint *checkpointDoc) []StageInfo {
	byNode := map[string]StageInfo{}
	var order []string

	for _, dir := range chain {
		entries, err := os.ReadDir(filepath.Join(dir, nodesDirName))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			var info StageInfo
			if !tryReadJSON(filepath.Join(dir, nodesDirName, entry.Name(), nodeStatusName), &info) {
				continue
			}
			if info.NodeID == "" {
				info.NodeID = entry.Name()
			}
			if _, seen := byNode[info.NodeID]; !seen {
				order = append(order, info.NodeID)
			}
			byNode[info.NodeID] = info
		}
	}

	if checkpoint != nil {
		for _, node := range checkpoint.CompletedNodes {
			if _, seen := byNode[node]; seen {
				continue
			}
			byNode[node] = StageInfo{NodeID: node, Status: string(StagePass)}
			order = append(order, node)
		}
	}

	if len(order) == 0 {
		return nil
	}
	infos := make([]StageInfo, 0, len(order))
	for _, node := range order {
		infos = append(infos, byNode[node])
	}
	return infos
}

var retryTargetRe = regexp.MustCompile(`retry_target\s*=\s*"?([A-Za-z0-9_.-]+)"?`)

// graphRetryTarget scans the run's graph description for a declared
// retry_target attribute. The graph file is referenced by the manifest;
// graph.dot is the conventional name when the manifest is silent.
func graphRetryTarget(root, graphPath string) string {
	if graphPath == "" {
		graphPath = defaultGraphName
	}
	if !filepath.IsAbs(graphPath) {
		graphPath = filepath.Join(root, graphPath)
	}
	b, ok := tryRead(graphPath)
	if !ok {
		return ""
	}
	m := retryTargetRe.FindSubmatch(b)
	if m == nil {
		return ""
	}
	return string(m[1])
}
