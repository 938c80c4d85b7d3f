package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds viewer settings. Runs are never written to; these settings
// only control where run directories are looked up and how aggressively
// state is refreshed.
type Config struct {
	// Roots are directories containing one subdirectory per run id.
	Roots []string `yaml:"roots"`

	// DebounceMS coalesces filesystem change notifications before a re-read.
	DebounceMS int `yaml:"debounce_ms"`

	// PollSeconds re-reads an executing run even without a filesystem event,
	// to catch process/container death that produces no file write.
	PollSeconds int `yaml:"poll_seconds"`

	// DockerBinary overrides the binary used for container liveness probes.
	DockerBinary string `yaml:"docker_binary"`

	LogLevel string `yaml:"log_level"`
}

const (
	defaultDebounceMS  = 200
	defaultPollSeconds = 10
)

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Roots:        []string{defaultRunsRoot()},
		DebounceMS:   defaultDebounceMS,
		PollSeconds:  defaultPollSeconds,
		DockerBinary: "docker",
		LogLevel:     "info",
	}
}

// defaultRunsRoot mirrors where detached pipeline runs land:
// $XDG_STATE_HOME/kilroy/attractor/runs (or ~/.local/state/...).
func defaultRunsRoot() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "runs")
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "kilroy", "attractor", "runs")
}

// Debounce returns the watch debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	if c.DebounceMS <= 0 {
		return defaultDebounceMS * time.Millisecond
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// PollInterval returns the executing-run poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return defaultPollSeconds * time.Second
	}
	return time.Duration(c.PollSeconds) * time.Second
}

// Validate checks the config for values that would make the watcher useless.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("config: at least one runs root is required")
	}
	for _, root := range c.Roots {
		if root == "" {
			return fmt.Errorf("config: empty runs root")
		}
	}
	if c.DebounceMS < 0 {
		return fmt.Errorf("config: debounce_ms must be >= 0")
	}
	if c.PollSeconds < 0 {
		return fmt.Errorf("config: poll_seconds must be >= 0")
	}
	return nil
}
