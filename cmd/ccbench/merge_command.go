package main

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"ccbench/internal/dataset"
	"ccbench/internal/logging"
	"ccbench/internal/results"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var (
		expected int
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "merge <shard-dir>",
		Short: "Merge per-example JSON outputs into a single JSONL file",
		Long: `Merge collects the per-example JSON files inside a shard directory
into <shard-dir>.jsonl ordered by example index. The directory is removed
only when every expected example is present, or when --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			logger = logging.WithComponent(logger, "merge")

			if !cmd.Flags().Changed("expected") {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				split, err := dataset.Load(cfg.Dataset.Path)
				if err != nil {
					return fmt.Errorf("load dataset to size merge (pass --expected to skip): %w", err)
				}
				expected = split.Len()
			}

			shardDir := args[0]
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
			summary, err := store.Merge(expected, force)
			if err != nil {
				return err
			}
			reportMerge(cmd, logger, summary)
			if !summary.Complete() && !force {
				return fmt.Errorf("%d of %d examples missing", len(summary.Missing), summary.Expected)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&expected, "expected", 0, "Expected number of examples (defaults to the dataset size)")
	cmd.Flags().BoolVar(&force, "force", false, "Remove the shard directory even when examples are missing")

	return cmd
}
