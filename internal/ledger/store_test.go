package ledger_test

import (
	"context"
	"testing"

	"ccbench/internal/ledger"
	"ccbench/internal/testsupport"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	return testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
}

func TestOpenAppliesMigrations(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.StartRun(ctx, ledger.KindGenerate, "LiveCC-7B-Instruct", "livesports3k_cc_test", 8)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected run id to be assigned")
	}

	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Fatalf("unexpected runs: %#v", runs)
	}
	if runs[0].FinishedAt != nil {
		t.Fatal("unfinished run should have nil FinishedAt")
	}
}

func TestFinishRunUpdatesCounts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.StartRun(ctx, ledger.KindGenerate, "model", "split", 4)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := store.FinishRun(ctx, id, 100, 90, 8, 2, true); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := store.Runs(ctx, 1)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	run := runs[0]
	if run.Total != 100 || run.Completed != 90 || run.Skipped != 8 || run.Failed != 2 {
		t.Fatalf("unexpected counts: %#v", run)
	}
	if !run.Merged || run.FinishedAt == nil {
		t.Fatalf("expected merged finished run: %#v", run)
	}
}

func TestFinishRunUnknownID(t *testing.T) {
	store := openStore(t)
	if err := store.FinishRun(context.Background(), "missing", 0, 0, 0, 0, false); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestRecordAndReadDrops(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.StartRun(ctx, ledger.KindFilter, "", "mvbench", 8)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	want := []ledger.Drop{
		{LineIdx: 3, Reason: "missing video field"},
		{LineIdx: 17, Reason: "invalid json"},
	}
	if err := store.RecordDrops(ctx, id, want); err != nil {
		t.Fatalf("RecordDrops failed: %v", err)
	}

	got, err := store.Drops(ctx, id)
	if err != nil {
		t.Fatalf("Drops failed: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected drops: %#v", got)
	}
}

func TestRunsOrderedNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.StartRun(ctx, ledger.KindGenerate, "m1", "d", 1)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	second, err := store.StartRun(ctx, ledger.KindFilter, "", "d", 1)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("unexpected ordering: %#v", runs)
	}
}
