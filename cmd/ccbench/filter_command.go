package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccbench/internal/filter"
	"ccbench/internal/ledger"
	"ccbench/internal/logging"
)

func newFilterCommand(ctx *commandContext) *cobra.Command {
	var (
		input      string
		output     string
		numWorkers int
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter a benchmark JSONL down to examples whose videos exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			logger = logging.WithComponent(logger, "filter")

			if input == "" {
				input = cfg.Filter.Input
			}
			if output == "" {
				output = cfg.Filter.Output
			}
			if !cmd.Flags().Changed("num_workers") {
				numWorkers = cfg.Filter.NumWorkers
			}

			ledgerStore, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledgerStore.Close()

			runID, err := ledgerStore.StartRun(cmd.Context(), ledger.KindFilter, "", input, numWorkers)
			if err != nil {
				return err
			}
			logger = logger.With(logging.String(logging.FieldRunID, runID))

			summary, err := filter.Run(cmd.Context(), logger, filter.Options{
				InputPath:  input,
				OutputPath: output,
				NumWorkers: numWorkers,
			})
			if err != nil {
				return err
			}

			drops := make([]ledger.Drop, 0, len(summary.Drops))
			for _, decision := range summary.Drops {
				drops = append(drops, ledger.Drop{
					LineIdx: decision.Index,
					Reason:  decision.Reason,
				})
			}
			if recordErr := ledgerStore.RecordDrops(cmd.Context(), runID, drops); recordErr != nil {
				logger.Warn("record drops failed", logging.Error(recordErr))
			}
			if finishErr := ledgerStore.FinishRun(cmd.Context(), runID, summary.Input,
				summary.Kept, 0, summary.Dropped, false); finishErr != nil {
				logger.Warn("record run outcome failed", logging.Error(finishErr))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d examples, wrote %s\n",
				summary.Kept, summary.Input, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Input benchmark JSONL")
	cmd.Flags().StringVar(&output, "output", "", "Filtered JSONL to write")
	cmd.Flags().IntVar(&numWorkers, "num_workers", 8, "Number of parallel check workers")

	return cmd
}
