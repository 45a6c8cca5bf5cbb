package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studioops/uuidshift/pkg/state"
	"github.com/studioops/uuidshift/pkg/transition"
	"github.com/studioops/uuidshift/pkg/validate"
)

func newValidateCmd(a *tool) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [table...]",
		Short: "Certify shadow columns as complete and consistent",
		Long: `Check every shadow column for nulls, decode mismatches, duplicate
primary-key values, and orphaned foreign-key references. The table only
advances when all four counts are zero; any nonzero count fails the run
and leaves the stage unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := validate.NewValidator(a.db, a.logger)
			return a.forEachTable(cmd.Context(), args, func(table string, fields []transition.Field) error {
				if err := a.gate(table, state.StageValidated); err != nil {
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
					fmt.Printf("%s.%s: clean\n", f.Table, f.Column)
				}
				return a.tracker.Advance(table, state.StageValidated)
			})
		},
	}
}
