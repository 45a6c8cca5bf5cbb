// Package validate certifies that a table's shadow column is a complete and
// correct mirror of its legacy column before cutover is allowed. All checks
// are read-only.
package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studioops/uuidshift/pkg/codec"
	"github.com/studioops/uuidshift/pkg/transition"
)

// scanBatchSize bounds how many rows the mismatch check holds in memory.
const scanBatchSize = 1000

// Report is an immutable snapshot of one validation run.
type Report struct {
	Table           string
	Column          string
	NullCount       int64
	MismatchCount   int64
	DuplicateCount  int64
	OrphanedFKCount int64
}

// Clean reports whether every count is zero. Cutover requires a clean report;
// this is a hard precondition, not a warning.
func (r *Report) Clean() bool {
	return r.NullCount == 0 && r.MismatchCount == 0 &&
		r.DuplicateCount == 0 && r.OrphanedFKCount == 0
}

// IntegrityError is returned when a caller tries to act on a table whose
// validation report has nonzero counts. It blocks cutover and is never
// auto-resolved.
type IntegrityError struct {
	Table  string
	Report *Report
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf(
		"validate: table %s failed integrity checks (null=%d mismatch=%d duplicate=%d orphanedFK=%d)",
		e.Table, e.Report.NullCount, e.Report.MismatchCount,
		e.Report.DuplicateCount, e.Report.OrphanedFKCount)
}

// Validator runs integrity checks against one database connection.
type Validator struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewValidator creates a Validator. A nil logger falls back to slog.Default().
func NewValidator(db *gorm.DB, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{db: db, logger: logger}
}

// Run validates one transitioned column and returns its report. It never
// mutates data.
func (v *Validator) Run(ctx context.Context, field transition.Field) (*Report, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	report := &Report{Table: field.Table, Column: field.Column}

	var err error
	if report.NullCount, err = v.countNulls(ctx, field); err != nil {
		return nil, err
	}
	if report.MismatchCount, err = v.countMismatches(ctx, field); err != nil {
		return nil, err
	}
	if field.PrimaryKey {
		if report.DuplicateCount, err = v.countDuplicates(ctx, field); err != nil {
			return nil, err
		}
	}
	if field.References != nil {
		if report.OrphanedFKCount, err = v.countOrphans(ctx, field); err != nil {
			return nil, err
		}
	}

	v.logger.Info("validate: report",
		"table", field.Table,
		"column", field.Column,
		"nulls", report.NullCount,
		"mismatches", report.MismatchCount,
		"duplicates", report.DuplicateCount,
		"orphanedFKs", report.OrphanedFKCount,
	)
	return report, nil
}

// countNulls counts rows whose shadow is missing although the legacy column
// has a value. Post-backfill this must be zero.
func (v *Validator) countNulls(ctx context.Context, field transition.Field) (int64, error) {
	var n int64
	err := v.db.WithContext(ctx).Table(field.Table).
		Where(fmt.Sprintf("%s IS NOT NULL AND %s IS NULL", field.Column, field.ShadowColumn())).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("validate: null check on %s: %w", field.Table, err)
	}
	return n, nil
}

// countMismatches scans rows in batches and compares shadow values against
// the codec-derived value in Go, which keeps the check dialect neutral. A
// nonzero count is a data corruption signal.
func (v *Validator) countMismatches(ctx context.Context, field transition.Field) (int64, error) {
	type pair struct {
		Legacy string
		Shadow string
	}

	var mismatches int64
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var pairs []pair
		err := v.db.WithContext(ctx).Table(field.Table).
			Select(fmt.Sprintf("%s AS legacy, %s AS shadow", field.Column, field.ShadowColumn())).
			Where(fmt.Sprintf("%s IS NOT NULL AND %s IS NOT NULL", field.Column, field.ShadowColumn())).
			Order(field.Column).
			Offset(offset).
			Limit(scanBatchSize).
			Scan(&pairs).Error
		if err != nil {
			return 0, fmt.Errorf("validate: mismatch scan on %s: %w", field.Table, err)
		}
		if len(pairs) == 0 {
			return mismatches, nil
		}
		for _, p := range pairs {
			want, err := codec.Decode(p.Legacy)
			if err != nil {
				mismatches++
				continue
			}
			got, err := uuid.Parse(p.Shadow)
			if err != nil || got != want {
				mismatches++
			}
		}
		offset += len(pairs)
	}
}

// countDuplicates counts shadow values that occur more than once. Only
// primary-key columns require uniqueness.
func (v *Validator) countDuplicates(ctx context.Context, field transition.Field) (int64, error) {
	shadow := field.ShadowColumn()
	var n int64
	err := v.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT %s FROM %s WHERE %s IS NOT NULL GROUP BY %s HAVING COUNT(*) > 1) AS dups`,
		shadow, field.Table, shadow, shadow,
	)).Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("validate: duplicate check on %s: %w", field.Table, err)
	}
	return n, nil
}

// countOrphans counts shadow foreign keys that do not resolve to an existing
// parent shadow primary key.
func (v *Validator) countOrphans(ctx context.Context, field transition.Field) (int64, error) {
	parentShadow := field.References.Column + transition.ShadowSuffix
	var n int64
	err := v.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s AS c LEFT JOIN %s AS p ON c.%s = p.%s WHERE c.%s IS NOT NULL AND p.%s IS NULL`,
		field.Table, field.References.Table,
		field.ShadowColumn(), parentShadow,
		field.ShadowColumn(), parentShadow,
	)).Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("validate: orphan check on %s: %w", field.Table, err)
	}
	return n, nil
}
