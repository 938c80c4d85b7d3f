package runstate

import (
	"bufio"
	"io"
)

// ReplayLog replays one append-only progress log into an ordered execution
// history, including fan-out branch sub-stages and an optional failure-cycle
// summary. Running stages are appended as soon as their start event is seen,
// so callers can surface in-progress work; stages with no matching end event
// stay in the output with status running.
func ReplayLog(r io.Reader) ([]VisitedStage, *CycleInfo) {
	var history []VisitedStage
	var cycle *CycleInfo

	// In-flight attempts by composite key, holding indexes into history.
	inflight := map[string]int{}
	// The most recent main-line stage. A branch's fan-out parent is resolved
	// lazily from it at the branch's first event and then pinned, so later
	// main-line progress cannot orphan the branch's end events.
	lastMain := ""
	branchParent := map[string]string{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for sc.Scan() {
		ev, ok := parseEvent(sc.Text())
		if !ok {
			continue
		}
		switch ev.Kind {
		case eventAttemptStart:
			stage := VisitedStage{
				NodeID:    ev.NodeID,
				Attempt:   ev.Attempt,
				Status:    StageRunning,
				StartedAt: ev.TS,
				BranchKey: ev.BranchKey,
				StagePath: ev.StagePath,
			}
			if ev.BranchKey != "" {
				stage.ParallelParent = resolveBranchParent(branchParent, ev.BranchKey, lastMain)
			} else {
				lastMain = ev.NodeID
			}
			history = append(history, stage)
			inflight[attemptKey(stage.ParallelParent, ev.BranchKey, ev.NodeID, ev.Attempt)] = len(history) - 1

		case eventAttemptEnd:
			parent := ""
			if ev.BranchKey != "" {
				parent = resolveBranchParent(branchParent, ev.BranchKey, lastMain)
			}
			key := attemptKey(parent, ev.BranchKey, ev.NodeID, ev.Attempt)
			idx, found := inflight[key]
			if !found {
				// End with no matching start: truncated or corrupted log.
				continue
			}
			stage := &history[idx]
			stage.Status = classifyOutcome(ev.Status)
			stage.FinishedAt = ev.TS
			if !stage.StartedAt.IsZero() && !ev.TS.IsZero() {
				if secs := int(ev.TS.Sub(stage.StartedAt).Seconds()); secs > 0 {
					stage.DurationSecs = secs
				}
			}
			if ev.FailureReason != "" {
				stage.FailureReason = ev.FailureReason
			}
			delete(inflight, key)

		case eventFailureCycle:
			if cycle == nil || ev.Count > cycle.Count {
				cycle = &CycleInfo{
					NodeID:    ev.NodeID,
					Signature: ev.Signature,
					Count:     ev.Count,
					Limit:     ev.Limit,
					Breaker:   ev.Limit > 0 && ev.Count >= ev.Limit,
				}
			}
		}
	}
	return history, cycle
}

// resolveBranchParent pins a branch to the main-line stage current at its
// first event.
func resolveBranchParent(branchParent map[string]string, branchKey, lastMain string) string {
	if parent, ok := branchParent[branchKey]; ok {
		return parent
	}
	branchParent[branchKey] = lastMain
	return lastMain
}

// classifyOutcome maps a terminal status label to pass/fail. Only an
// explicit fail marker counts as a failure; any other label means the stage
// completed and chose a branch.
func classifyOutcome(status string) StageStatus {
	if status == "fail" {
		return StageFail
	}
	return StagePass
}
