package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studioops/uuidshift/pkg/cutover"
	"github.com/studioops/uuidshift/pkg/state"
	"github.com/studioops/uuidshift/pkg/transition"
)

func newCleanupCmd(a *tool) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "cleanup [table...]",
		Short: "Drop the backup hex columns (irreversible)",
		Long: `Drop the backup columns left behind by cutover. After this the hex
values are gone and revert is no longer possible; the migration is final.
Requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("cleanup drops the backup columns permanently; re-run with --yes to confirm")
			}
			orch, err := cutover.NewOrchestrator(a.db, a.logger)
			if err != nil {
				return err
			}
			return a.forEachTable(cmd.Context(), args, func(table string, fields []transition.Field) error {
				if err := a.gate(table, state.StageCleanedUp); err != nil {
					return err
				}
				if err := orch.Execute(cmd.Context(), orch.CleanupPlan(fields)); err != nil {
					return err
				}
				if err := a.tracker.Advance(table, state.StageCleanedUp); err != nil {
					return err
				}
				fmt.Printf("%s: backup columns dropped\n", table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the irreversible drop")

	return cmd
}
