package testsupport

import (
	"path/filepath"
	"testing"

	"ccbench/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "results")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Dataset.Path = filepath.Join(base, "split.jsonl")
	cfg.Filter.Input = filepath.Join(base, "mvbench.jsonl")
	cfg.Filter.Output = filepath.Join(base, "mvbench_video_existed.jsonl")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers overrides the generation worker count on the test config.
func WithWorkers(workers int) ConfigOption {
	return func(c *config.Config) {
		c.Generation.NumWorkers = workers
	}
}

// WithInferenceURL points the test config at a stub engine endpoint.
func WithInferenceURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Inference.BaseURL = url
	}
}
