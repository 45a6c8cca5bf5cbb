package cutover

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/studioops/uuidshift/pkg/transition"
)

// SchemaError reports a DDL statement that failed or produced an unexpected
// post-state. It is fatal: the orchestrator halts and the schema needs
// manual inspection. Destructive schema changes are never retried
// automatically.
type SchemaError struct {
	Op    string
	State string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("cutover: op %q failed: %v (observed schema state: %s)", e.Op, e.Err, e.State)
	}
	return fmt.Sprintf("cutover: op %q failed: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Orchestrator builds and executes schema plans for one database connection.
// It does not re-check validation reports: certifying readiness and
// performing the swap are deliberately decoupled so each is auditable on its
// own, and stage gating lives with the caller.
type Orchestrator struct {
	db      *gorm.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator, picking the Dialect from the
// connection. A nil logger falls back to slog.Default().
func NewOrchestrator(db *gorm.DB, logger *slog.Logger) (*Orchestrator, error) {
	dialect, err := DialectFor(db.Dialector.Name())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{db: db, dialect: dialect, logger: logger}, nil
}

// Dialect returns the dialect plans are built for.
func (o *Orchestrator) Dialect() Dialect { return o.dialect }

// ShadowPlan adds the shadow column for each field, with a unique index on
// primary-key shadows.
func (o *Orchestrator) ShadowPlan(fields []transition.Field) Plan {
	var plan Plan
	for _, f := range fields {
		plan.Ops = append(plan.Ops, AddColumn{Table: f.Table, Column: f.ShadowColumn()})
		if f.PrimaryKey {
			plan.Ops = append(plan.Ops, CreateUniqueIndex{
				Table:  f.Table,
				Column: f.ShadowColumn(),
				Name:   fmt.Sprintf("%s_%s_key", f.Table, f.ShadowColumn()),
			})
		}
	}
	return plan
}

// CutoverPlan promotes each field's shadow column to the column of record:
// drop the constraint bound to the legacy column, rename legacy to its
// backup name, rename the shadow over the original name, then rebind the
// constraint. Foreign keys are re-added without immediate validation and
// validated in a separate statement, so large tables are never locked for
// the scan.
func (o *Orchestrator) CutoverPlan(fields []transition.Field) Plan {
	var plan Plan
	for _, f := range sortFields(fields) {
		constraints := o.dialect.SupportsConstraintDDL()
		switch {
		case f.PrimaryKey && constraints:
			plan.Ops = append(plan.Ops,
				DropPrimaryKey{Table: f.Table, Column: f.Column},
				RenameColumn{Table: f.Table, From: f.Column, To: f.BackupColumn()},
				RenameColumn{Table: f.Table, From: f.ShadowColumn(), To: f.Column},
				AddPrimaryKey{Table: f.Table, Column: f.Column},
			)
		case f.References != nil && constraints:
			fk := ForeignKeyDef{
				Name:      f.FKConstraint(),
				Table:     f.Table,
				Column:    f.Column,
				RefTable:  f.References.Table,
				RefColumn: f.References.Column,
			}
			plan.Ops = append(plan.Ops,
				DropConstraint{FK: fk},
				RenameColumn{Table: f.Table, From: f.Column, To: f.BackupColumn()},
				RenameColumn{Table: f.Table, From: f.ShadowColumn(), To: f.Column},
				AddConstraint{FK: fk, Validated: false},
				ValidateConstraint{Table: f.Table, Name: fk.Name},
			)
		default:
			// Dialects without constraint DDL still get the column swap.
			plan.Ops = append(plan.Ops,
				RenameColumn{Table: f.Table, From: f.Column, To: f.BackupColumn()},
				RenameColumn{Table: f.Table, From: f.ShadowColumn(), To: f.Column},
			)
		}
	}
	return plan
}

// CleanupPlan drops the demoted backup columns. Irreversible.
func (o *Orchestrator) CleanupPlan(fields []transition.Field) Plan {
	var plan Plan
	for _, f := range fields {
		plan.Ops = append(plan.Ops, DropColumn{Table: f.Table, Column: f.BackupColumn()})
	}
	return plan
}

// Execute runs a plan. On stores with transactional DDL the whole plan is
// one schema-level transaction; elsewhere ops run one by one and a failure
// is reported together with the actually observed schema state, since the
// store may have left the plan half-applied.
func (o *Orchestrator) Execute(ctx context.Context, plan Plan) error {
	if len(plan.Ops) == 0 {
		return nil
	}
	if o.dialect.TransactionalDDL() {
		return o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return o.run(ctx, tx, plan, false)
		})
	}
	return o.run(ctx, o.db, plan, true)
}

func (o *Orchestrator) run(ctx context.Context, tx *gorm.DB, plan Plan, describeOnFailure bool) error {
	for _, op := range plan.Ops {
		sql, err := op.SQL(o.dialect)
		if err != nil {
			return &SchemaError{Op: op.String(), Err: err}
		}
		o.logger.Info("cutover: executing", "op", op.String(), "dialect", o.dialect.Name())
		if err := tx.WithContext(ctx).Exec(sql).Error; err != nil {
			se := &SchemaError{Op: op.String(), Err: err}
			if describeOnFailure {
				se.State = o.describeState(plan)
			}
			return se
		}
	}
	return nil
}

// describeState reports which side of every rename in the plan currently
// exists, so an operator can tell how much of a non-transactional plan
// applied. An inconsistent picture means manual repair; the orchestrator
// never guesses.
func (o *Orchestrator) describeState(plan Plan) string {
	m := o.db.Migrator()
	out := ""
	for _, op := range plan.Ops {
		r, ok := op.(RenameColumn)
		if !ok {
			continue
		}
		if out != "" {
			out += "; "
		}
		out += fmt.Sprintf("%s: %s exists=%v, %s exists=%v",
			r.Table, r.From, m.HasColumn(r.Table, r.From), r.To, m.HasColumn(r.Table, r.To))
	}
	return out
}

// sortFields orders primary-key fields first so a table's own key swaps
// before any of its foreign-key columns.
func sortFields(fields []transition.Field) []transition.Field {
	out := make([]transition.Field, 0, len(fields))
	for _, f := range fields {
		if f.PrimaryKey {
			out = append(out, f)
		}
	}
	for _, f := range fields {
		if !f.PrimaryKey {
			out = append(out, f)
		}
	}
	return out
}
