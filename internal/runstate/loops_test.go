package runstate

import (
	"reflect"
	"testing"
)

func mainStage(node string) VisitedStage {
	return VisitedStage{NodeID: node, Attempt: 1, Status: StagePass}
}

func TestLoopNodes_NilCycle(t *testing.T) {
	if nodes := LoopNodes([]VisitedStage{mainStage("plan")}, nil); nodes != nil {
		t.Fatalf("nodes=%v want nil", nodes)
	}
}

func TestLoopNodes_DeclaredRetryTargetWins(t *testing.T) {
	history := []VisitedStage{
		mainStage("plan"),
		mainStage("build"),
		mainStage("verify"),
		mainStage("plan"),
		mainStage("build"),
	}
	cycle := &CycleInfo{NodeID: "verify", RetryTarget: "plan"}
	nodes := LoopNodes(history, cycle)
	want := []string{"plan", "build", "verify"}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("nodes=%v want %v", nodes, want)
	}
}

func TestLoopNodes_FallsBackWhenTargetVisitedOnce(t *testing.T) {
	history := []VisitedStage{
		mainStage("plan"),
		mainStage("build"),
		mainStage("build"),
		mainStage("verify"),
	}
	cycle := &CycleInfo{NodeID: "verify", RetryTarget: "plan"}
	nodes := LoopNodes(history, cycle)
	// plan was visited once, so the repeat heuristic applies: only build
	// repeats before the failing node.
	want := []string{"build"}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("nodes=%v want %v", nodes, want)
	}
}

func TestLoopNodes_HeuristicIgnoresBranchStages(t *testing.T) {
	history := []VisitedStage{
		mainStage("plan"),
		{NodeID: "child", Attempt: 1, Status: StagePass, ParallelParent: "plan", BranchKey: "b1"},
		{NodeID: "child", Attempt: 1, Status: StagePass, ParallelParent: "plan", BranchKey: "b2"},
		mainStage("plan"),
		mainStage("verify"),
	}
	cycle := &CycleInfo{NodeID: "verify"}
	nodes := LoopNodes(history, cycle)
	want := []string{"plan"}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("nodes=%v want %v", nodes, want)
	}
}
