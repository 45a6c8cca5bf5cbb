package cutover

import (
	"fmt"
)

// ErrUnsupportedDDL is returned by dialects that cannot express an op.
var ErrUnsupportedDDL = fmt.Errorf("cutover: DDL not supported by this dialect")

// Dialect renders schema ops as SQL for one database flavor and declares the
// store's DDL guarantees.
type Dialect interface {
	Name() string

	// TransactionalDDL reports whether the store can roll back DDL, in which
	// case a whole plan executes inside one transaction.
	TransactionalDDL() bool

	// SupportsConstraintDDL reports whether primary/foreign-key constraints
	// can be added and dropped on an existing table.
	SupportsConstraintDDL() bool

	RenameColumnSQL(RenameColumn) (string, error)
	AddColumnSQL(AddColumn) (string, error)
	DropColumnSQL(DropColumn) (string, error)
	CreateUniqueIndexSQL(CreateUniqueIndex) (string, error)
	DropIndexSQL(DropIndex) (string, error)
	DropPrimaryKeySQL(DropPrimaryKey) (string, error)
	AddPrimaryKeySQL(AddPrimaryKey) (string, error)
	DropConstraintSQL(DropConstraint) (string, error)
	AddConstraintSQL(AddConstraint) (string, error)
	ValidateConstraintSQL(ValidateConstraint) (string, error)
}

// DialectFor returns the Dialect for a gorm dialector name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgres":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("cutover: unsupported dialect %q", name)
	}
}

// postgresDialect has transactional DDL and cheap metadata-only renames, the
// store the protocol was designed for.
type postgresDialect struct{}

func (postgresDialect) Name() string                { return "postgres" }
func (postgresDialect) TransactionalDDL() bool      { return true }
func (postgresDialect) SupportsConstraintDDL() bool { return true }

func (postgresDialect) RenameColumnSQL(op RenameColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", op.Table, op.From, op.To), nil
}

func (postgresDialect) AddColumnSQL(op AddColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s uuid", op.Table, op.Column), nil
}

func (postgresDialect) DropColumnSQL(op DropColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", op.Table, op.Column), nil
}

func (postgresDialect) CreateUniqueIndexSQL(op CreateUniqueIndex) (string, error) {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", op.Name, op.Table, op.Column), nil
}

func (postgresDialect) DropIndexSQL(op DropIndex) (string, error) {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", op.Name), nil
}

func (postgresDialect) DropPrimaryKeySQL(op DropPrimaryKey) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s_pkey CASCADE", op.Table, op.Table), nil
}

func (postgresDialect) AddPrimaryKeySQL(op AddPrimaryKey) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", op.Table, op.Column), nil
}

func (postgresDialect) DropConstraintSQL(op DropConstraint) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", op.FK.Table, op.FK.Name), nil
}

func (postgresDialect) AddConstraintSQL(op AddConstraint) (string, error) {
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		op.FK.Table, op.FK.Name, op.FK.Column, op.FK.RefTable, op.FK.RefColumn)
	if !op.Validated {
		sql += " NOT VALID"
	}
	return sql, nil
}

func (postgresDialect) ValidateConstraintSQL(op ValidateConstraint) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s VALIDATE CONSTRAINT %s", op.Table, op.Name), nil
}

// mysqlDialect lacks transactional DDL and NOT VALID; constraints are always
// validated on add, and a failed plan needs post-hoc schema verification.
type mysqlDialect struct{}

func (mysqlDialect) Name() string                { return "mysql" }
func (mysqlDialect) TransactionalDDL() bool      { return false }
func (mysqlDialect) SupportsConstraintDDL() bool { return true }

func (mysqlDialect) RenameColumnSQL(op RenameColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", op.Table, op.From, op.To), nil
}

func (mysqlDialect) AddColumnSQL(op AddColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s char(36) NULL", op.Table, op.Column), nil
}

func (mysqlDialect) DropColumnSQL(op DropColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", op.Table, op.Column), nil
}

func (mysqlDialect) CreateUniqueIndexSQL(op CreateUniqueIndex) (string, error) {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", op.Name, op.Table, op.Column), nil
}

func (mysqlDialect) DropIndexSQL(op DropIndex) (string, error) {
	return fmt.Sprintf("DROP INDEX %s ON %s", op.Name, op.Table), nil
}

func (mysqlDialect) DropPrimaryKeySQL(op DropPrimaryKey) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", op.Table), nil
}

func (mysqlDialect) AddPrimaryKeySQL(op AddPrimaryKey) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", op.Table, op.Column), nil
}

func (mysqlDialect) DropConstraintSQL(op DropConstraint) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", op.FK.Table, op.FK.Name), nil
}

func (mysqlDialect) AddConstraintSQL(op AddConstraint) (string, error) {
	// MySQL validates on add; the Validated flag has no cheap equivalent.
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		op.FK.Table, op.FK.Name, op.FK.Column, op.FK.RefTable, op.FK.RefColumn), nil
}

func (mysqlDialect) ValidateConstraintSQL(ValidateConstraint) (string, error) {
	return "", ErrUnsupportedDDL
}

// sqliteDialect covers local development and tests. Constraint DDL on an
// existing table is not expressible, so plans built for it carry rename and
// column ops only.
type sqliteDialect struct{}

func (sqliteDialect) Name() string                { return "sqlite" }
func (sqliteDialect) TransactionalDDL() bool      { return true }
func (sqliteDialect) SupportsConstraintDDL() bool { return false }

func (sqliteDialect) RenameColumnSQL(op RenameColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", op.Table, op.From, op.To), nil
}

func (sqliteDialect) AddColumnSQL(op AddColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s text", op.Table, op.Column), nil
}

func (sqliteDialect) DropColumnSQL(op DropColumn) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", op.Table, op.Column), nil
}

func (sqliteDialect) CreateUniqueIndexSQL(op CreateUniqueIndex) (string, error) {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", op.Name, op.Table, op.Column), nil
}

func (sqliteDialect) DropIndexSQL(op DropIndex) (string, error) {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", op.Name), nil
}

func (sqliteDialect) DropPrimaryKeySQL(DropPrimaryKey) (string, error) {
	return "", ErrUnsupportedDDL
}

func (sqliteDialect) AddPrimaryKeySQL(AddPrimaryKey) (string, error) {
	return "", ErrUnsupportedDDL
}

func (sqliteDialect) DropConstraintSQL(DropConstraint) (string, error) {
	return "", ErrUnsupportedDDL
}

func (sqliteDialect) AddConstraintSQL(AddConstraint) (string, error) {
	return "", ErrUnsupportedDDL
}

func (sqliteDialect) ValidateConstraintSQL(ValidateConstraint) (string, error) {
	return "", ErrUnsupportedDDL
}
