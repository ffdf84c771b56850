package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ccbench/internal/config"
	"ccbench/internal/testsupport"
)

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ccbench.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand()
	full := append([]string{"--config", configPath}, args...)
	root.SetArgs(full)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitCreatesSample(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, configPath, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	out, err = runCLI(t, configPath, "config", "init", "--path", target)
	if err == nil {
		t.Fatalf("expected error on existing config, got output:\n%s", out)
	}
}

func TestGenerateRequiresModelFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	if _, err := runCLI(t, configPath, "generate"); err == nil {
		t.Fatal("expected missing --model_name_or_path to fail")
	}
}

func TestFilterCommandWritesKeptLines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	lines := []string{
		`{"video": "a.mp4", "question": "q1"}`,
		`{"video": "", "question": "q2"}`,
		`{"video": "tvqa/clip_3.mp4", "question": "q3"}`,
	}
	if err := os.WriteFile(cfg.Filter.Input, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	out, err := runCLI(t, configPath, "filter")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	requireContains(t, out, "kept 2 of 3 examples")

	data, err := os.ReadFile(cfg.Filter.Output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	kept := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept lines, got %d", len(kept))
	}
	if !strings.Contains(kept[1], "tvqa") {
		t.Fatalf("expected tvqa line kept in order, got %q", kept[1])
	}
}

func TestRunsCommandReportsFilterRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	input := `{"video": "a.mp4"}` + "\n"
	if err := os.WriteFile(cfg.Filter.Input, []byte(input), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if _, err := runCLI(t, configPath, "filter"); err != nil {
		t.Fatalf("filter: %v", err)
	}

	out, err := runCLI(t, configPath, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "Filter")
	requireContains(t, out, "kept 1/1")
}
