// Package runstate reconstructs the state of a pipeline run purely from the
// files the pipeline process writes to disk. It never talks to the process
// itself and never mutates anything under a run directory.
package runstate

import "time"

// Status is the run status as recorded on disk.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusExecuting   Status = "executing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusStopped     Status = "stopped"
	StatusInterrupted Status = "interrupted"
)

// ComputedStatus is the liveness-aware status shown to consumers. It is
// always derived from (Status, alive) and never stored independently.
type ComputedStatus string

const (
	ComputedUnknown     ComputedStatus = "unknown"
	ComputedExecuting   ComputedStatus = "executing"
	ComputedStalled     ComputedStatus = "stalled"
	ComputedCompleted   ComputedStatus = "completed"
	ComputedFailed      ComputedStatus = "failed"
	ComputedInterrupted ComputedStatus = "interrupted"
)

// ComputeStatus derives the liveness-aware status. A run recorded as
// executing whose process/container is gone shows as stalled.
func ComputeStatus(status Status, alive bool) ComputedStatus {
	switch status {
	case StatusCompleted:
		return ComputedCompleted
	case StatusFailed, StatusStopped:
		return ComputedFailed
	case StatusInterrupted:
		return ComputedInterrupted
	case StatusExecuting:
		if alive {
			return ComputedExecuting
		}
		return ComputedStalled
	default:
		return ComputedUnknown
	}
}

// StageStatus classifies one execution attempt of one graph node.
type StageStatus string

const (
	StageRunning StageStatus = "running"
	StagePass    StageStatus = "pass"
	StageFail    StageStatus = "fail"
)

// RunRecord is normalized run metadata, independent of source format.
type RunRecord struct {
	ID             string    `json:"run_id"`
	Status         Status    `json:"status"`
	CurrentNode    string    `json:"current_node,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	HeartbeatAt    time.Time `json:"heartbeat_at,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	CompletedNodes []string  `json:"completed_nodes,omitempty"`
}

// VisitedStage is one execution attempt of one graph node, in replay order.
// Branch attempts carry the fan-out parent and branch key; attempts from a
// restarted log root carry that root's position in the restart chain.
type VisitedStage struct {
	NodeID         string      `json:"node_id"`
	Attempt        int         `json:"attempt"`
	Status         StageStatus `json:"status"`
	StartedAt      time.Time   `json:"started_at,omitempty"`
	FinishedAt     time.Time   `json:"finished_at,omitempty"`
	DurationSecs   int         `json:"duration_secs"`
	FailureReason  string      `json:"failure_reason,omitempty"`
	ParallelParent string      `json:"parallel_parent,omitempty"`
	BranchKey      string      `json:"branch_key,omitempty"`
	StagePath      string      `json:"stage_path,omitempty"`
	RestartIndex   int         `json:"restart_index"`
}

// CycleInfo describes a detected deterministic failure cycle. The highest
// observed count for a signature is authoritative; Breaker reports whether
// the configured limit was reached.
type CycleInfo struct {
	NodeID      string `json:"node_id"`
	RetryTarget string `json:"retry_target,omitempty"`
	Signature   string `json:"signature"`
	Count       int    `json:"count"`
	Limit       int    `json:"limit"`
	Breaker     bool   `json:"breaker"`
}

// StageInfo is the latest per-node status summary read from a node's status
// artifact (logs-root format only).
type StageInfo struct {
	NodeID        string         `json:"node_id"`
	Status        string         `json:"status"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

// Source format tags carried on RunState.
const (
	FormatSession  = "session"
	FormatLogsRoot = "logsroot"
)

// RunState is the full snapshot returned to consumers. Rebuilt on every
// re-read; a smaller snapshot is always preferred over an error.
type RunState struct {
	RunRecord

	ComputedStatus ComputedStatus `json:"computed_status"`
	Alive          bool           `json:"alive"`
	GraphName      string         `json:"graph_name,omitempty"`
	Stages         []StageInfo    `json:"stages,omitempty"`
	History        []VisitedStage `json:"history,omitempty"`
	Cycle          *CycleInfo     `json:"cycle,omitempty"`
	RestartCount   int            `json:"restart_count"`
	Format         string         `json:"format"`
	LastChecked    time.Time      `json:"last_checked"`
}
