// Package probe answers whether the process or container backing a run is
// still alive. Probes are fail-safe: any inspection error means "not alive",
// never an error the caller has to handle.
package probe

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DockerBinary is the binary invoked for container inspection. Overridable
// for podman setups and for tests.
var DockerBinary = "docker"

// containerProbeTimeout bounds one docker inspect call.
const containerProbeTimeout = 3 * time.Second

// ProcessAlive reports whether a process exists and is not a zombie.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if processZombie(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}

// ContainerAlive reports whether a container is currently running.
func ContainerAlive(ctx context.Context, containerID string) bool {
	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, containerProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, DockerBinary,
		"inspect", "-f", "{{.State.Running}}", containerID).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

func processZombie(pid int) bool {
	state, err := readProcState(pid)
	if err != nil {
		return false
	}
	return state == 'Z' || state == 'X'
}

func readProcState(pid int) (byte, error) {
	b, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, err
	}
	line := string(b)
	// The comm field is parenthesized and may contain spaces; the state
	// byte follows the closing paren.
	closeIdx := strings.LastIndexByte(line, ')')
	if closeIdx < 0 || closeIdx+2 >= len(line) {
		return 0, errors.New("malformed stat record")
	}
	return line[closeIdx+2], nil
}
