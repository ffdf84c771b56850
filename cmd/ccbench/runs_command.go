package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ccbench/internal/ledger"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent generation and filter runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			titler := cases.Title(language.English)
			printer := message.NewPrinter(language.English)
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortRunID(run.ID),
					titler.String(run.Kind),
					runSubject(run),
					strconv.Itoa(run.Workers),
					runOutcome(printer, run),
					runDuration(run),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Kind", "Subject", "Workers", "Outcome", "Duration", "Started"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				isTerminal(out),
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runSubject(run ledger.Run) string {
	if run.Kind == ledger.KindGenerate && run.Model != "" {
		return filepath.Base(run.Model)
	}
	return filepath.Base(run.Dataset)
}

func runOutcome(printer *message.Printer, run ledger.Run) string {
	if run.FinishedAt == nil {
		return "running"
	}
	switch run.Kind {
	case ledger.KindFilter:
		return printer.Sprintf("kept %d/%d", run.Completed, run.Total)
	default:
		outcome := printer.Sprintf("%d done, %d skipped", run.Completed, run.Skipped)
		if run.Failed > 0 {
			outcome += printer.Sprintf(", %d failed", run.Failed)
		}
		if run.Merged {
			outcome += ", merged"
		}
		return outcome
	}
}

func runDuration(run ledger.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}
