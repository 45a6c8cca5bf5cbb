package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studioops/uuidshift/pkg/cutover"
	"github.com/studioops/uuidshift/pkg/state"
	"github.com/studioops/uuidshift/pkg/transition"
)

func newShadowCmd(a *tool) *cobra.Command {
	return &cobra.Command{
		Use:   "shadow [table...]",
		Short: "Add nullable shadow UUID columns",
		Long: `Add a nullable shadow UUID column next to each configured hex column.
Primary-key shadows also get a unique index. This is the only schema change
the application sees before cutover; reads and writes of the original
columns are unaffected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := cutover.NewOrchestrator(a.db, a.logger)
			if err != nil {
				return err
			}
			return a.forEachTable(cmd.Context(), args, func(table string, fields []transition.Field) error {
				if err := a.gate(table, state.StageShadowAdded); err != nil {
					return err
				}
				if err := orch.Execute(cmd.Context(), orch.ShadowPlan(fields)); err != nil {
					return err
				}
				if err := a.tracker.Advance(table, state.StageShadowAdded); err != nil {
					return err
				}
				fmt.Printf("%s: shadow columns added (%d fields)\n", table, len(fields))
				return nil
			})
		},
	}
}
