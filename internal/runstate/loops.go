package runstate

// LoopNodes identifies the set of nodes participating in a detected failure
// cycle. A retry target declared in the graph wins: the loop is everything
// between the last two consecutive visits to that target. Without a declared
// target (or with fewer than two visits to it), the fallback heuristic takes
// any node visited at least twice before the failing node (approximate, not
// a guaranteed loop boundary).
func LoopNodes(history []VisitedStage, cycle *CycleInfo) []string {
	if cycle == nil {
		return nil
	}
	if cycle.RetryTarget != "" {
		if nodes := loopBetweenVisits(history, cycle.RetryTarget); nodes != nil {
			return nodes
		}
	}
	return loopByRepeatHeuristic(history, cycle.NodeID)
}

// loopBetweenVisits returns the distinct main-line nodes between the last
// two consecutive visits to target, starting with target itself.
func loopBetweenVisits(history []VisitedStage, target string) []string {
	last, prev := -1, -1
	for i, stage := range history {
		if stage.ParallelParent != "" || stage.NodeID != target {
			continue
		}
		prev = last
		last = i
	}
	if prev < 0 {
		return nil
	}

	var nodes []string
	seen := map[string]bool{}
	for i := prev; i < last; i++ {
		stage := history[i]
		if stage.ParallelParent != "" || seen[stage.NodeID] {
			continue
		}
		seen[stage.NodeID] = true
		nodes = append(nodes, stage.NodeID)
	}
	return nodes
}

func loopByRepeatHeuristic(history []VisitedStage, failingNode string) []string {
	boundary := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ParallelParent == "" && history[i].NodeID == failingNode {
			boundary = i
			break
		}
	}

	counts := map[string]int{}
	var order []string
	for _, stage := range history[:boundary] {
		if stage.ParallelParent != "" {
			continue
		}
		if counts[stage.NodeID] == 0 {
			order = append(order, stage.NodeID)
		}
		counts[stage.NodeID]++
	}

	var nodes []string
	for _, node := range order {
		if counts[node] >= 2 {
			nodes = append(nodes, node)
		}
	}
	return nodes
}
