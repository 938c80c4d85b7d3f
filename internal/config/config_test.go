package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Debounce() != 200*time.Millisecond {
		t.Fatalf("debounce=%v", cfg.Debounce())
	}
	if cfg.PollInterval() != 10*time.Second {
		t.Fatalf("poll=%v", cfg.PollInterval())
	}
	if cfg.DockerBinary != "docker" {
		t.Fatalf("docker_binary=%q", cfg.DockerBinary)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RUNPANE_TEST_ROOT", "/srv/runs")
	dir := t.TempDir()
	path := filepath.Join(dir, "runpane.yaml")
	body := `roots:
  - ${RUNPANE_TEST_ROOT}
  - /var/lib/runs
debounce_ms: 50
poll_seconds: 2
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Roots) != 2 || cfg.Roots[0] != "/srv/runs" {
		t.Fatalf("roots=%v", cfg.Roots)
	}
	if cfg.Debounce() != 50*time.Millisecond {
		t.Fatalf("debounce=%v", cfg.Debounce())
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Fatalf("poll=%v", cfg.PollInterval())
	}
}

func TestLoad_BrokenYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runpane.yaml")
	if err := os.WriteFile(path, []byte("roots: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_RejectsEmptyRoots(t *testing.T) {
	cfg := Default()
	cfg.Roots = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for no roots")
	}
	cfg.Roots = []string{""}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty root")
	}
}

func TestLoadOrDefault_MissingFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if len(cfg.Roots) == 0 {
		t.Fatal("expected default roots")
	}
}
