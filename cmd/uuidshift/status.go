package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/studioops/uuidshift/pkg/state"
)

func newStatusCmd(a *tool) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the migration stage of every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.tracker.List()
			if err != nil {
				return err
			}
			byTable := make(map[string]state.Record, len(records))
			for _, r := range records {
				byTable[r.Table] = r
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tSTAGE\tUPDATED\tBY")
			for _, table := range a.cfg.TableNames() {
				r, ok := byTable[table]
				if !ok {
					fmt.Fprintf(w, "%s\tnot started\t-\t-\n", table)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					table, r.Stage, r.UpdatedAt.Format("2006-01-02 15:04:05"), r.UpdatedBy)
			}
			return w.Flush()
		},
	}
}
