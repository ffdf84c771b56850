package testsupport

import (
	"testing"

	"ccbench/internal/config"
	"ccbench/internal/ledger"
	"ccbench/internal/results"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := ledger.Open(cfg.Paths.LogDir)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenResults opens a results.Store over a shard directory for tests.
func MustOpenResults(t testing.TB, dir string) *results.Store {
	t.Helper()

	store, err := results.Open(dir)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	return store
}
