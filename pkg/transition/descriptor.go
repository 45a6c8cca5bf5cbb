// Package transition declares the column pairs taking part in a shadow-column
// key migration and keeps them in sync on every ORM write.
//
// A Field pairs a legacy CHAR(32) hex column with a shadow UUID column whose
// name is derived by appending ShadowSuffix. Once the shadow column exists,
// the Plugin guarantees that every insert or update flowing through gorm also
// assigns the codec-derived shadow value inside the same statement, so the
// shadow is never stale relative to post-transition writes.
package transition

import (
	"fmt"
)

const (
	// ShadowSuffix is appended to a legacy column name to derive the shadow
	// column name.
	ShadowSuffix = "_uuid"

	// BackupSuffix is appended to a legacy column name when cutover demotes
	// it. The backup column survives until cleanup.
	BackupSuffix = "_old"
)

// Reference identifies the parent column a foreign-key field points at.
type Reference struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// Field describes one transitioned column.
type Field struct {
	// Table is the table owning the column.
	Table string `yaml:"table"`

	// Column is the legacy CHAR(32) column name.
	Column string `yaml:"column"`

	// PrimaryKey marks the table's primary-key column. The shadow column
	// gets a unique index, the validator checks for duplicates, and cutover
	// swaps the primary-key constraint.
	PrimaryKey bool `yaml:"primaryKey,omitempty"`

	// References is set for foreign-key columns and names the parent
	// table/column of the relation.
	References *Reference `yaml:"references,omitempty"`

	// ConstraintName is the foreign-key constraint bound to the legacy
	// column. Empty means the postgres default naming convention.
	ConstraintName string `yaml:"constraintName,omitempty"`
}

// ShadowColumn returns the derived shadow column name.
func (f Field) ShadowColumn() string {
	return f.Column + ShadowSuffix
}

// BackupColumn returns the name the legacy column is renamed to at cutover.
func (f Field) BackupColumn() string {
	return f.Column + BackupSuffix
}

// FKConstraint returns the foreign-key constraint name, deriving the postgres
// default when none was configured. Only meaningful when References is set.
func (f Field) FKConstraint() string {
	if f.ConstraintName != "" {
		return f.ConstraintName
	}
	return fmt.Sprintf("%s_%s_fkey", f.Table, f.Column)
}

// Validate checks that the descriptor is internally consistent.
func (f Field) Validate() error {
	if f.Table == "" {
		return fmt.Errorf("transition field: table is required")
	}
	if f.Column == "" {
		return fmt.Errorf("transition field %s: column is required", f.Table)
	}
	if f.PrimaryKey && f.References != nil {
		return fmt.Errorf("transition field %s.%s: cannot be both primary key and foreign key", f.Table, f.Column)
	}
	if !f.PrimaryKey && f.References == nil {
		return fmt.Errorf("transition field %s.%s: non-primary-key fields must declare references", f.Table, f.Column)
	}
	if f.References != nil && (f.References.Table == "" || f.References.Column == "") {
		return fmt.Errorf("transition field %s.%s: references needs both table and column", f.Table, f.Column)
	}
	return nil
}
