package main

import (
	"context"
	"fmt"

	"github.com/studioops/uuidshift/pkg/state"
	"github.com/studioops/uuidshift/pkg/transition"
)

// forEachTable runs fn once per selected table, holding that table's
// operation lock for the duration. An empty selection means every configured
// table. A failure on one table stops the run; earlier tables keep whatever
// stage they reached.
func (a *tool) forEachTable(ctx context.Context, tables []string, fn func(table string, fields []transition.Field) error) error {
	if len(tables) == 0 {
		tables = a.cfg.TableNames()
	} else {
		for _, table := range tables {
			if len(a.cfg.FieldsFor(table)) == 0 {
				return fmt.Errorf("table %s is not in the field config", table)
			}
		}
	}
	for _, table := range tables {
		table := table
		err := a.locker.WithLock(ctx, table, func() error {
			return fn(table, a.cfg.FieldsFor(table))
		})
		if err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
	}
	return nil
}

// gate verifies that table may move to the target stage before any work is
// done on it, so a wrong invocation order fails before touching the schema.
func (a *tool) gate(table string, to state.Stage) error {
	cur, err := a.tracker.CurrentStage(table)
	if err != nil {
		return err
	}
	return state.CheckTransition(table, cur, to)
}
