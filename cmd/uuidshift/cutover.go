package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studioops/uuidshift/pkg/cutover"
	"github.com/studioops/uuidshift/pkg/state"
	"github.com/studioops/uuidshift/pkg/transition"
	"github.com/studioops/uuidshift/pkg/validate"
)

func newCutoverCmd(a *tool) *cobra.Command {
	return &cobra.Command{
		Use:   "cutover [table...]",
		Short: "Promote shadow columns to the columns of record",
		Long: `Swap each shadow column over the original column name, keeping the old
hex column under a backup name. Constraints bound to the legacy column are
dropped before the swap and rebound after it, unvalidated first so large
tables are never locked for a full scan.

Validation is re-run immediately before the swap; writes that landed since
the validate stage are checked too. The swap is reversible with the revert
command until cleanup runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := cutover.NewOrchestrator(a.db, a.logger)
			if err != nil {
				return err
			}
			v := validate.NewValidator(a.db, a.logger)

			return a.forEachTable(cmd.Context(), args, func(table string, fields []transition.Field) error {
				if err := a.gate(table, state.StageCutOver); err != nil {
					return err
				}
				for _, f := range fields {
					rep, err := v.Run(cmd.Context(), f)
					if err != nil {
						return err
					}
					if !rep.Clean() {
						return &validate.IntegrityError{Table: table, Report: rep}
					}
				}
				if err := orch.Execute(cmd.Context(), orch.CutoverPlan(fields)); err != nil {
					return err
				}
				if err := a.tracker.Advance(table, state.StageCutOver); err != nil {
					return err
				}
				fmt.Printf("%s: cut over\n", table)
				return nil
			})
		},
	}
}

func newRevertCmd(a *tool) *cobra.Command {
	return &cobra.Command{
		Use:   "revert [table...]",
		Short: "Reverse a cutover while the backup columns still exist",
		Long: `Swap the original hex columns back under their old names and demote the
UUID columns to shadows again. Only valid after cutover and before cleanup;
once cleanup has dropped the backup columns there is nothing to revert to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := cutover.NewOrchestrator(a.db, a.logger)
			if err != nil {
				return err
			}
			return a.forEachTable(cmd.Context(), args, func(table string, fields []transition.Field) error {
				if err := a.gate(table, state.StageBackfilled); err != nil {
					return err
				}
				reverse, err := orch.CutoverPlan(fields).Invert()
				if err != nil {
					return err
				}
				if err := orch.Execute(cmd.Context(), reverse); err != nil {
					return err
				}
				if err := a.tracker.Advance(table, state.StageBackfilled); err != nil {
					return err
				}
				fmt.Printf("%s: reverted to backfilled\n", table)
				return nil
			})
		},
	}
}
