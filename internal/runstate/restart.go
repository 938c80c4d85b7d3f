package runstate

import (
	"bufio"
	"os"
	"path/filepath"
)

// maxRestartHops bounds the restart-chain walk against corrupted logs that
// chain forever. It is a safety ceiling, not a product limit.
const maxRestartHops = 50

// WalkRestartChain follows restart pointers starting at root and returns the
// ordered list of log-root directories contributing to one logical run:
// [root, restart-1, restart-2, ...]. The walk stops when no further pointer
// is found, a pointer revisits a directory already in the chain, or the hop
// ceiling is reached.
func WalkRestartChain(root string) []string {
	chain := []string{root}
	seen := map[string]bool{root: true}

	current := root
	for len(chain) < maxRestartHops {
		next := restartPointer(current)
		if next == "" {
			break
		}
		if !filepath.IsAbs(next) {
			// Restart directories are recorded relative to the root that
			// spawned them.
			next = filepath.Join(current, next)
		}
		next = filepath.Clean(next)
		if seen[next] {
			break
		}
		chain = append(chain, next)
		seen[next] = true
		current = next
	}
	return chain
}

// restartPointer scans a directory's progress log for the last restart event
// and returns the successor log root it names, or "".
func restartPointer(dir string) string {
	f, err := os.Open(filepath.Join(dir, progressLogName))
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	pointer := ""
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for sc.Scan() {
		ev, ok := parseEvent(sc.Text())
		if !ok || ev.Kind != eventLoopRestart {
			continue
		}
		if ev.NextLogsRoot != "" {
			pointer = ev.NextLogsRoot
		}
	}
	return pointer
}
