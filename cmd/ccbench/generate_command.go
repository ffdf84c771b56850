package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ccbench/internal/dataset"
	"ccbench/internal/generate"
	"ccbench/internal/inference"
	"ccbench/internal/ledger"
	"ccbench/internal/logging"
	"ccbench/internal/results"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		modelNameOrPath   string
		notInstructModel  bool
		numWorkers        int
		repetitionPenalty float64
		outputDir         string
		noMerge           bool
		force             bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run distributed commentary generation over the benchmark split",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			logger = logging.WithComponent(logger, "generate")

			if !cmd.Flags().Changed("num_workers") {
				numWorkers = cfg.Generation.NumWorkers
			}
			if !cmd.Flags().Changed("repetition_penalty") {
				repetitionPenalty = cfg.Generation.RepetitionPenalty
			}
			if outputDir == "" {
				outputDir = cfg.Paths.OutputDir
			}

			if cfg.Dataset.SnapshotURL != "" {
				fetchClient := &http.Client{Timeout: time.Duration(cfg.Dataset.FetchTimeout) * time.Second}
				if err := dataset.Fetch(cmd.Context(), fetchClient, cfg.Dataset.SnapshotURL, cfg.Dataset.Path); err != nil {
					return err
				}
			}
			split, err := dataset.Load(cfg.Dataset.Path)
			if err != nil {
				return err
			}

			shardDir := results.ShardDir(outputDir, modelNameOrPath)
			lock := flock.New(shardDir + ".lock")
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire output lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another run is already writing %s", shardDir)
			}
			defer func() {
				_ = lock.Unlock()
			}()

			store, err := results.Open(shardDir)
			if err != nil {
				return err
			}

			ledgerStore, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledgerStore.Close()

			runID, err := ledgerStore.StartRun(cmd.Context(), ledger.KindGenerate, modelNameOrPath, cfg.Dataset.Path, numWorkers)
			if err != nil {
				return err
			}
			logger = logger.With(logging.String(logging.FieldRunID, runID))
			logger.Info("generation starting",
				logging.String("model", modelNameOrPath),
				logging.Int("examples", split.Len()),
				logging.Int("workers", numWorkers),
			)

			bar := progressbar.NewOptions(split.Len(),
				progressbar.OptionSetDescription("generating"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			outcome, err := generate.Run(cmd.Context(), split, store, logger, generate.Options{
				NumWorkers:        numWorkers,
				RepetitionPenalty: repetitionPenalty,
				MaxNewTokens:      cfg.Inference.MaxNewTokens,
				SimpleContext:     notInstructModel,
				DevicePrefix:      cfg.Generation.DevicePrefix,
				ClientFor: func(device string) generate.Generator {
					return inference.NewClient(inference.Config{
						BaseURL:        cfg.Inference.BaseURL,
						APIKey:         cfg.Inference.APIKey,
						TimeoutSeconds: cfg.Inference.TimeoutSeconds,
					}, inference.WithRetryMaxAttempts(cfg.Inference.RetryAttempts))
				},
				OnExample: func() {
					_ = bar.Add(1)
				},
			})
			if err != nil {
				return err
			}
			_ = bar.Finish()

			merged := false
			if !noMerge {
				summary, err := store.Merge(split.Len(), force)
				if err != nil {
					return err
				}
				merged = summary.Removed
				reportMerge(cmd, logger, summary)
			}

			if finishErr := ledgerStore.FinishRun(cmd.Context(), runID, outcome.Total,
				outcome.Completed, outcome.Skipped, outcome.Failed, merged); finishErr != nil {
				logger.Warn("record run outcome failed", logging.Error(finishErr))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "completed %d, skipped %d, failed workers %d (of %d examples)\n",
				outcome.Completed, outcome.Skipped, outcome.Failed, outcome.Total)
			if outcome.Failed > 0 {
				for _, workerErr := range outcome.Errors {
					logger.Error("worker abandoned shard",
						logging.String(logging.FieldDevice, workerErr.Device),
						logging.Int(logging.FieldExampleIdx, workerErr.Index),
						logging.Error(workerErr.Err),
					)
				}
				return errors.New("one or more workers failed; rerun to resume their shards")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelNameOrPath, "model_name_or_path", "", "Model path, e.g. chenjoya/LiveCC-7B-Instruct")
	cmd.Flags().BoolVar(&notInstructModel, "not_instruct_model", false, "Disable instruct model mode")
	cmd.Flags().IntVar(&numWorkers, "num_workers", 8, "Number of parallel workers/devices to use")
	cmd.Flags().Float64Var(&repetitionPenalty, "repetition_penalty", 1.15, "Repetition penalty for generation")
	cmd.Flags().StringVar(&outputDir, "output_dir", "", "Directory to write generated JSON outputs")
	cmd.Flags().BoolVar(&noMerge, "no_merge", false, "Skip the JSONL merge after generation")
	cmd.Flags().BoolVar(&force, "force", false, "Remove the shard directory even when examples are missing")
	_ = cmd.MarkFlagRequired("model_name_or_path")

	return cmd
}

func reportMerge(cmd *cobra.Command, logger *slog.Logger, summary results.MergeSummary) {
	out := cmd.OutOrStdout()
	if summary.Complete() {
		fmt.Fprintf(out, "merged %d results into %s\n", summary.Produced, summary.MergedPath)
		return
	}
	fmt.Fprintf(out, "merged %d of %d results into %s (%d missing)\n",
		summary.Produced, summary.Expected, summary.MergedPath, len(summary.Missing))
	if !summary.Removed {
		fmt.Fprintln(out, "shard directory kept; rerun generate to fill the gaps")
	}
	logger.Warn("merge incomplete",
		logging.Int("expected", summary.Expected),
		logging.Int("produced", summary.Produced),
		logging.Bool("removed", summary.Removed),
	)
}
