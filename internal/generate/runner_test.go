package generate_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"ccbench/internal/dataset"
	"ccbench/internal/generate"
	"ccbench/internal/inference"
	"ccbench/internal/logging"
	"ccbench/internal/results"
	"ccbench/internal/testsupport"
)

type stubEngine struct {
	mu     sync.Mutex
	calls  map[string][]int
	failAt map[int]error
}

func newStubEngine() *stubEngine {
	return &stubEngine{calls: map[string][]int{}, failAt: map[int]error{}}
}

func (s *stubEngine) GenerateLive(ctx context.Context, req inference.Request) ([]inference.Fragment, error) {
	idx := int(req.VideoStart) // tests encode the example index in the bounds
	s.mu.Lock()
	s.calls[req.Device] = append(s.calls[req.Device], idx)
	s.mu.Unlock()
	if err := s.failAt[idx]; err != nil {
		return nil, err
	}
	return []inference.Fragment{
		{Start: req.VideoStart, End: req.VideoEnd, Text: fmt.Sprintf("caption %d ...", idx)},
	}, nil
}

func buildSplit(t *testing.T, n int) *dataset.Split {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b,
			`{"video":"videos/%d.mp4","video_id":"vid%d","event_id":"ev%d","begin":%d,"end":%d,"event_title":"t","preasr_text":"p"}`+"\n",
			i, i, i, i, i+1)
	}
	path := filepath.Join(t.TempDir(), "split.jsonl")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write split: %v", err)
	}
	split, err := dataset.Load(path)
	if err != nil {
		t.Fatalf("load split: %v", err)
	}
	return split
}

func openStore(t *testing.T) *results.Store {
	t.Helper()
	return testsupport.MustOpenResults(t, filepath.Join(t.TempDir(), "model"))
}

func TestRunCoversEveryIndex(t *testing.T) {
	split := buildSplit(t, 10)
	store := openStore(t)
	engine := newStubEngine()

	var progressed atomic.Int64
	outcome, err := generate.Run(context.Background(), split, store, logging.NewNop(), generate.Options{
		NumWorkers:        3,
		RepetitionPenalty: 1.15,
		MaxNewTokens:      32,
		DevicePrefix:      "cuda",
		ClientFor:         func(string) generate.Generator { return engine },
		OnExample:         func() { progressed.Add(1) },
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Completed != 10 || outcome.Skipped != 0 || outcome.Failed != 0 {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if progressed.Load() != 10 {
		t.Fatalf("expected 10 progress callbacks, got %d", progressed.Load())
	}

	for i := 0; i < 10; i++ {
		if !store.Exists(i) {
			t.Fatalf("missing result for index %d", i)
		}
		record, err := store.Read(i)
		if err != nil {
			t.Fatalf("read result %d: %v", i, err)
		}
		if record.VideoID != fmt.Sprintf("vid%d", i) {
			t.Fatalf("index %d holds record %#v", i, record)
		}
		if record.Pred != fmt.Sprintf("caption %d...", i) {
			t.Fatalf("index %d has pred %q", i, record.Pred)
		}
	}

	// Each device processed only its own stride.
	for device, idxs := range engine.calls {
		var d int
		if _, err := fmt.Sscanf(device, "cuda:%d", &d); err != nil {
			t.Fatalf("unexpected device name %q", device)
		}
		for _, idx := range idxs {
			if idx%3 != d {
				t.Fatalf("device %s processed foreign index %d", device, idx)
			}
		}
	}
}

func TestRunSkipsExistingResults(t *testing.T) {
	split := buildSplit(t, 6)
	store := openStore(t)
	engine := newStubEngine()

	seeded := results.Record{VideoID: "seeded", EventID: "x", Pred: "prior..."}
	if err := store.Write(2, seeded); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	outcome, err := generate.Run(context.Background(), split, store, logging.NewNop(), generate.Options{
		NumWorkers:   2,
		DevicePrefix: "cuda",
		ClientFor:    func(string) generate.Generator { return engine },
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Completed != 5 || outcome.Skipped != 1 {
		t.Fatalf("unexpected outcome %#v", outcome)
	}

	record, err := store.Read(2)
	if err != nil {
		t.Fatalf("read seeded record: %v", err)
	}
	if record != seeded {
		t.Fatalf("seeded record was overwritten: %#v", record)
	}
	for _, idxs := range engine.calls {
		for _, idx := range idxs {
			if idx == 2 {
				t.Fatal("engine was called for an already-materialized index")
			}
		}
	}
}

func TestRunFailureHaltsOnlyThatWorker(t *testing.T) {
	split := buildSplit(t, 8)
	store := openStore(t)
	engine := newStubEngine()
	engine.failAt[1] = fmt.Errorf("engine crashed")

	outcome, err := generate.Run(context.Background(), split, store, logging.NewNop(), generate.Options{
		NumWorkers:   2,
		DevicePrefix: "cuda",
		ClientFor:    func(string) generate.Generator { return engine },
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Failed != 1 || len(outcome.Errors) != 1 {
		t.Fatalf("expected one worker failure, got %#v", outcome)
	}
	if outcome.Errors[0].Index != 1 {
		t.Fatalf("expected failure at index 1, got %#v", outcome.Errors[0])
	}

	// Device 0's shard (even indices) is untouched by the failure.
	for _, idx := range []int{0, 2, 4, 6} {
		if !store.Exists(idx) {
			t.Fatalf("even index %d should have completed", idx)
		}
	}
	// Device 1 halted at its first example; the rest of its shard is absent
	// and recoverable by a rerun.
	for _, idx := range []int{1, 3, 5, 7} {
		if store.Exists(idx) {
			t.Fatalf("odd index %d should be absent after worker failure", idx)
		}
	}
}

func TestRunRequiresClientFactory(t *testing.T) {
	split := buildSplit(t, 1)
	store := openStore(t)
	if _, err := generate.Run(context.Background(), split, store, logging.NewNop(), generate.Options{NumWorkers: 1}); err == nil {
		t.Fatal("expected configuration error without client factory")
	}
}
