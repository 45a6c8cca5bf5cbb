package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studioops/uuidshift/pkg/backfill"
	"github.com/studioops/uuidshift/pkg/state"
	"github.com/studioops/uuidshift/pkg/transition"
	"github.com/studioops/uuidshift/pkg/validate"
)

func newBackfillCmd(a *tool) *cobra.Command {
	var (
		batchSize int
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "backfill [table...]",
		Short: "Populate shadow columns from existing hex values",
		Long: `Decode every existing hex value and write the result into the shadow
column, in batches, resumable at any point. Rows written by the application
after the shadow stage already carry shadow values and are skipped.

With --dry-run, rows are decoded and counted but nothing is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := backfill.NewEngine(a.db, a.logger)
			v := validate.NewValidator(a.db, a.logger)
			opts := backfill.Options{BatchSize: batchSize, DryRun: dryRun}

			return a.forEachTable(cmd.Context(), args, func(table string, fields []transition.Field) error {
				if err := a.gate(table, state.StageBackfilled); err != nil {
					return err
				}
				var malformed int
				for _, f := range fields {
					rep, err := engine.Run(cmd.Context(), f, opts)
					if err != nil {
						return err
					}
					printBackfillReport(rep)
					malformed += len(rep.BadRows)
				}
				if malformed > 0 {
					return fmt.Errorf("%d malformed values must be repaired before the stage can complete", malformed)
				}
				if dryRun {
					return nil
				}
				// Early warning only; validate remains the authoritative gate.
				for _, f := range fields {
					rep, err := v.Run(cmd.Context(), f)
					if err != nil {
						return err
					}
					if !rep.Clean() {
						a.logger.Warn("backfill: spot check found inconsistencies",
							"table", f.Table,
							"column", f.Column,
							"nulls", rep.NullCount,
							"mismatches", rep.MismatchCount,
							"duplicates", rep.DuplicateCount,
							"orphanedFKs", rep.OrphanedFKCount,
						)
					}
				}
				return a.tracker.Advance(table, state.StageBackfilled)
			})
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", backfill.DefaultBatchSize, "Rows per batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decode and count without writing")

	return cmd
}

func printBackfillReport(rep *backfill.Report) {
	if rep.DryRun {
		fmt.Printf("%s.%s: %d candidate rows\n", rep.Table, rep.Column, rep.Total)
	} else {
		fmt.Printf("%s.%s: backfilled %d of %d rows", rep.Table, rep.Column, rep.Updated, rep.Total)
		if rep.Skipped > 0 {
			fmt.Printf(", skipped %d", rep.Skipped)
		}
		fmt.Println()
	}
	for _, s := range rep.SampleValues {
		fmt.Printf("  sample: %s\n", s)
	}
	for _, b := range rep.BadRows {
		fmt.Printf("  malformed: %q: %v\n", b.Value, b.Err)
	}
}
