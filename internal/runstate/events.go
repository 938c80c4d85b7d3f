package runstate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// eventKind is a closed set of progress-log event kinds. Anything the
// replayer does not understand maps to eventIgnored so future engine
// versions can add events without breaking older viewers.
type eventKind int

const (
	eventIgnored eventKind = iota
	eventAttemptStart
	eventAttemptEnd
	eventFailureCycle
	eventLoopRestart
)

// logEvent is one decoded line of progress.ndjson.
type logEvent struct {
	Kind          eventKind
	NodeID        string
	Attempt       int
	TS            time.Time
	Status        string
	FailureReason string

	// Branch fields; set only on fan-out sub-stage events.
	BranchKey string
	StagePath string

	// Failure-cycle fields.
	Signature string
	Count     int
	Limit     int

	// Restart pointer.
	NextLogsRoot string
}

// parseEvent decodes one log line. Blank or malformed lines return ok=false
// and are skipped; a single bad line never aborts a replay.
func parseEvent(line string) (logEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return logEvent{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return logEvent{}, false
	}

	ev := logEvent{
		NodeID:        eventString(raw["node_id"]),
		Attempt:       eventInt(raw["attempt"]),
		TS:            parseEventTime(raw["ts"]),
		Status:        eventString(raw["status"]),
		FailureReason: eventString(raw["failure_reason"]),
		BranchKey:     eventString(raw["branch"]),
		StagePath:     eventString(raw["stage"]),
		Signature:     eventString(raw["signature"]),
		Count:         eventInt(raw["count"]),
		Limit:         eventInt(raw["limit"]),
		NextLogsRoot:  eventString(raw["next_logs_root"]),
	}

	switch eventString(raw["event"]) {
	case "stage_attempt_start":
		ev.Kind = eventAttemptStart
	case "stage_attempt_end":
		ev.Kind = eventAttemptEnd
	case "failure_cycle":
		ev.Kind = eventFailureCycle
	case "loop_restart":
		ev.Kind = eventLoopRestart
	default:
		ev.Kind = eventIgnored
	}
	return ev, true
}

// attemptKey is the in-flight identity of a stage attempt. Branch attempts
// nest under the fan-out node that spawned them.
func attemptKey(fanOut, branch, nodeID string, attempt int) string {
	if branch == "" {
		return nodeID + ":" + strconv.Itoa(attempt)
	}
	return fanOut + "/" + branch + "/" + nodeID + ":" + strconv.Itoa(attempt)
}

func eventString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func eventInt(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func parseEventTime(v any) time.Time {
	raw := eventString(v)
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	return time.Time{}
}
