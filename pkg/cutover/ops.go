// Package cutover sequences the atomic schema swap that promotes a shadow
// UUID column to be the column of record, and its exact reversal.
//
// The swap is expressed as a sequence of tagged schema ops rather than
// hand-written SQL blocks, so the reverse sequence is generated by structural
// inversion (invert each op, reverse the order) and can be tested for exact
// symmetry.
package cutover

import (
	"fmt"
	"strings"
)

// ForeignKeyDef carries everything needed to drop and re-create a foreign-key
// constraint, so that dropping one remains invertible.
type ForeignKeyDef struct {
	Name      string
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

// Op is a single schema change. Invert returns the structural inverse, or
// nil for ops with no reverse action (ValidateConstraint) and ops that
// destroy data (DropColumn).
type Op interface {
	// SQL renders the op for a dialect.
	SQL(d Dialect) (string, error)
	Invert() Op
	String() string
}

// RenameColumn renames a column in place; a metadata-only operation on every
// supported store.
type RenameColumn struct {
	Table string
	From  string
	To    string
}

func (op RenameColumn) SQL(d Dialect) (string, error) { return d.RenameColumnSQL(op) }
func (op RenameColumn) Invert() Op                    { return RenameColumn{Table: op.Table, From: op.To, To: op.From} }
func (op RenameColumn) String() string {
	return fmt.Sprintf("rename %s.%s -> %s", op.Table, op.From, op.To)
}

// AddColumn adds a nullable UUID column.
type AddColumn struct {
	Table  string
	Column string
}

func (op AddColumn) SQL(d Dialect) (string, error) { return d.AddColumnSQL(op) }
func (op AddColumn) Invert() Op                    { return DropColumn{Table: op.Table, Column: op.Column} }
func (op AddColumn) String() string {
	return fmt.Sprintf("add column %s.%s", op.Table, op.Column)
}

// DropColumn removes a column. Irreversible: the column's data is gone, so
// Invert returns nil and any plan containing it refuses inversion.
type DropColumn struct {
	Table  string
	Column string
}

func (op DropColumn) SQL(d Dialect) (string, error) { return d.DropColumnSQL(op) }
func (op DropColumn) Invert() Op                    { return nil }
func (op DropColumn) String() string {
	return fmt.Sprintf("drop column %s.%s", op.Table, op.Column)
}

// CreateUniqueIndex backs the uniqueness requirement of a primary-key shadow
// column during the transition window.
type CreateUniqueIndex struct {
	Table  string
	Column string
	Name   string
}

func (op CreateUniqueIndex) SQL(d Dialect) (string, error) { return d.CreateUniqueIndexSQL(op) }
func (op CreateUniqueIndex) Invert() Op {
	return DropIndex{Table: op.Table, Column: op.Column, Name: op.Name}
}
func (op CreateUniqueIndex) String() string {
	return fmt.Sprintf("create unique index %s on %s(%s)", op.Name, op.Table, op.Column)
}

// DropIndex removes an index created by CreateUniqueIndex.
type DropIndex struct {
	Table  string
	Column string
	Name   string
}

func (op DropIndex) SQL(d Dialect) (string, error) { return d.DropIndexSQL(op) }
func (op DropIndex) Invert() Op {
	return CreateUniqueIndex{Table: op.Table, Column: op.Column, Name: op.Name}
}
func (op DropIndex) String() string {
	return fmt.Sprintf("drop index %s on %s", op.Name, op.Table)
}

// DropPrimaryKey drops a table's primary-key constraint. Column is the
// column the constraint is expected back on, so inversion is structural.
type DropPrimaryKey struct {
	Table  string
	Column string
}

func (op DropPrimaryKey) SQL(d Dialect) (string, error) { return d.DropPrimaryKeySQL(op) }
func (op DropPrimaryKey) Invert() Op                    { return AddPrimaryKey{Table: op.Table, Column: op.Column} }
func (op DropPrimaryKey) String() string {
	return fmt.Sprintf("drop primary key on %s", op.Table)
}

// AddPrimaryKey adds a primary-key constraint on a column.
type AddPrimaryKey struct {
	Table  string
	Column string
}

func (op AddPrimaryKey) SQL(d Dialect) (string, error) { return d.AddPrimaryKeySQL(op) }
func (op AddPrimaryKey) Invert() Op                    { return DropPrimaryKey{Table: op.Table, Column: op.Column} }
func (op AddPrimaryKey) String() string {
	return fmt.Sprintf("add primary key on %s(%s)", op.Table, op.Column)
}

// DropConstraint drops a foreign-key constraint. The full definition rides
// along so the inverse can re-create it.
type DropConstraint struct {
	FK ForeignKeyDef
}

func (op DropConstraint) SQL(d Dialect) (string, error) { return d.DropConstraintSQL(op) }
func (op DropConstraint) Invert() Op                    { return AddConstraint{FK: op.FK, Validated: true} }
func (op DropConstraint) String() string {
	return fmt.Sprintf("drop constraint %s on %s", op.FK.Name, op.FK.Table)
}

// AddConstraint adds a foreign-key constraint. Validated=false adds it
// without immediate validation (postgres NOT VALID) to avoid locking large
// tables; pair it with a ValidateConstraint op.
type AddConstraint struct {
	FK        ForeignKeyDef
	Validated bool
}

func (op AddConstraint) SQL(d Dialect) (string, error) { return d.AddConstraintSQL(op) }
func (op AddConstraint) Invert() Op                    { return DropConstraint{FK: op.FK} }
func (op AddConstraint) String() string {
	return fmt.Sprintf("add constraint %s on %s (validated=%v)", op.FK.Name, op.FK.Table, op.Validated)
}

// ValidateConstraint scans the table to validate a constraint added with
// Validated=false. Uses only a share-update lock on postgres. It has no
// reverse action: Invert returns nil and inversion drops it.
type ValidateConstraint struct {
	Table string
	Name  string
}

func (op ValidateConstraint) SQL(d Dialect) (string, error) { return d.ValidateConstraintSQL(op) }
func (op ValidateConstraint) Invert() Op                    { return nil }
func (op ValidateConstraint) String() string {
	return fmt.Sprintf("validate constraint %s on %s", op.Name, op.Table)
}

// Plan is an ordered sequence of schema ops executed as one cutover step.
type Plan struct {
	Ops []Op
}

// ErrIrreversible is returned when a plan containing a destructive op is
// inverted.
var ErrIrreversible = fmt.Errorf("cutover: plan contains an irreversible op")

// Invert produces the exact reverse plan: each op inverted, in reverse
// order. Ops with no reverse action (ValidateConstraint) are dropped;
// destructive ops make the whole plan irreversible.
func (p Plan) Invert() (Plan, error) {
	var out Plan
	for i := len(p.Ops) - 1; i >= 0; i-- {
		op := p.Ops[i]
		inv := op.Invert()
		if inv == nil {
			if _, ok := op.(ValidateConstraint); ok {
				continue
			}
			return Plan{}, fmt.Errorf("%w: %s", ErrIrreversible, op)
		}
		out.Ops = append(out.Ops, inv)
	}
	return out, nil
}

// String renders the plan one op per line, for logs and --dry-run output.
func (p Plan) String() string {
	lines := make([]string, len(p.Ops))
	for i, op := range p.Ops {
		lines[i] = op.String()
	}
	return strings.Join(lines, "\n")
}
