package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ccbench/internal/dataset"
	"ccbench/internal/inference"
	"ccbench/internal/logging"
	"ccbench/internal/results"
	"ccbench/internal/services"
)

// Generator is the slice of the engine client the runner needs.
type Generator interface {
	GenerateLive(ctx context.Context, req inference.Request) ([]inference.Fragment, error)
}

// Options configures a distributed generation run.
type Options struct {
	NumWorkers        int
	RepetitionPenalty float64
	MaxNewTokens      int
	SimpleContext     bool
	DevicePrefix      string

	// ClientFor returns the engine client bound to one device. Each worker
	// owns its client exclusively for the duration of the run.
	ClientFor func(device string) Generator

	// OnExample, when set, is invoked once per finished example (completed
	// or skipped). It must be safe for concurrent use.
	OnExample func()
}

// WorkerError records the failure that halted one worker's shard.
type WorkerError struct {
	Device string
	Index  int
	Err    error
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("worker %s: example %d: %v", e.Device, e.Index, e.Err)
}

// Outcome aggregates per-worker results for one run.
type Outcome struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
	Errors    []WorkerError
}

// Run fans the dataset out across one worker per device. Worker d processes
// exactly the indices of Shard(n, workers, d); shards are disjoint, so the
// workers share nothing but the read-only split and the append-only shard
// directory. A failing example halts only its own worker; the remaining
// shards keep going and the failure is reported in the outcome.
func Run(ctx context.Context, split *dataset.Split, store *results.Store, logger *slog.Logger, opts Options) (Outcome, error) {
	if opts.NumWorkers < 1 {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "generate", "run", "num_workers must be at least 1", nil)
	}
	if opts.ClientFor == nil {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "generate", "run", "engine client factory required", nil)
	}
	logger = logging.WithComponent(logger, "generate")

	n := split.Len()
	outcome := Outcome{Total: n}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	wg.Add(opts.NumWorkers)
	for device := 0; device < opts.NumWorkers; device++ {
		go func(device int) {
			defer wg.Done()
			deviceName := fmt.Sprintf("%s:%d", opts.DevicePrefix, device)
			client := opts.ClientFor(deviceName)
			workerLogger := logger.With(logging.String(logging.FieldDevice, deviceName))

			completed, skipped, werr := runWorker(ctx, split, store, client, workerLogger, deviceName, device, opts)

			mu.Lock()
			outcome.Completed += completed
			outcome.Skipped += skipped
			if werr != nil {
				outcome.Failed++
				outcome.Errors = append(outcome.Errors, *werr)
			}
			mu.Unlock()
		}(device)
	}
	wg.Wait()

	return outcome, nil
}

func runWorker(
	ctx context.Context,
	split *dataset.Split,
	store *results.Store,
	client Generator,
	logger *slog.Logger,
	deviceName string,
	device int,
	opts Options,
) (completed, skipped int, werr *WorkerError) {
	idxs := Shard(split.Len(), opts.NumWorkers, device)
	logger.Debug("shard assigned", logging.Int("examples", len(idxs)))

	for _, idx := range idxs {
		if err := ctx.Err(); err != nil {
			werr = &WorkerError{Device: deviceName, Index: idx, Err: err}
			return
		}

		if store.Exists(idx) {
			skipped++
			if opts.OnExample != nil {
				opts.OnExample()
			}
			continue
		}

		if err := processExample(ctx, split, store, client, deviceName, idx, opts); err != nil {
			logger.Error("example failed; abandoning shard",
				logging.Int(logging.FieldExampleIdx, idx),
				logging.Error(err),
			)
			werr = &WorkerError{Device: deviceName, Index: idx, Err: err}
			return
		}
		completed++
		if opts.OnExample != nil {
			opts.OnExample()
		}
	}
	return
}

func processExample(
	ctx context.Context,
	split *dataset.Split,
	store *results.Store,
	client Generator,
	deviceName string,
	idx int,
	opts Options,
) error {
	record, err := split.Record(idx)
	if err != nil {
		return err
	}

	prompt := BuildPrompt(record.EventTitle, record.PreASRText, opts.SimpleContext)
	fragments, err := client.GenerateLive(ctx, inference.Request{
		Query:             prompt,
		Video:             record.Video,
		VideoStart:        record.Begin,
		VideoEnd:          record.End,
		MaxNewTokens:      opts.MaxNewTokens,
		RepetitionPenalty: opts.RepetitionPenalty,
		Device:            deviceName,
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "generate", "infer", fmt.Sprintf("example %d", idx), err)
	}

	return store.Write(idx, results.Record{
		VideoID: record.VideoID,
		EventID: record.EventID,
		Begin:   record.Begin,
		End:     record.End,
		Pred:    JoinFragments(fragments),
	})
}
