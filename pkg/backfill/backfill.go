// Package backfill populates shadow UUID columns for rows that predate the
// shadow column's introduction. It scans in batches, each batch its own short
// transaction, explicitly so concurrent application writes are never blocked
// for longer than one batch.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/studioops/uuidshift/pkg/codec"
	"github.com/studioops/uuidshift/pkg/transition"
)

const (
	// DefaultBatchSize matches the original operator tooling default.
	DefaultBatchSize = 1000

	// defaultMaxRetries bounds per-batch retries of transient store errors.
	defaultMaxRetries = 3

	// dryRunSampleSize is how many candidate values a dry run reports.
	dryRunSampleSize = 5
)

// Options tunes a backfill run.
type Options struct {
	// BatchSize is the number of distinct key values per transaction.
	// Defaults to DefaultBatchSize.
	BatchSize int

	// DryRun selects and decodes but issues no writes.
	DryRun bool

	// Progress, when set, is invoked after every batch.
	Progress func(Progress)
}

// Progress is an incremental snapshot of a running backfill.
type Progress struct {
	Processed  int64
	Remaining  int64
	RowsPerSec float64
}

// BadRow enumerates a row-level decode failure. The batch carrying it was
// rolled back; the run continues past it.
type BadRow struct {
	Value string
	Err   error
}

// Report summarizes a backfill run.
type Report struct {
	Table   string
	Column  string
	Total   int64 // candidate rows when the run started
	Updated int64
	Skipped int64 // rows left untouched because their batch was aborted
	BadRows []BadRow
	DryRun  bool

	// SampleValues holds up to five candidate legacy values (dry run only).
	SampleValues []string
}

// Engine runs backfills against one database connection.
type Engine struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewEngine creates a backfill Engine. A nil logger falls back to
// slog.Default().
func NewEngine(db *gorm.DB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, logger: logger}
}

// Run backfills one transitioned column. It only ever targets rows whose
// shadow column is still null, so an interrupted run can simply be re-run:
// committed batches keep their progress and a second complete run touches
// zero rows.
func (e *Engine) Run(ctx context.Context, field transition.Field, opts Options) (*Report, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	report := &Report{Table: field.Table, Column: field.Column, DryRun: opts.DryRun}

	total, err := e.countCandidates(ctx, field)
	if err != nil {
		return nil, err
	}
	report.Total = total
	if total == 0 {
		e.logger.Info("backfill: nothing to do", "table", field.Table, "column", field.Column)
		return report, nil
	}

	e.logger.Info("backfill: starting",
		"table", field.Table,
		"column", field.Column,
		"shadow", field.ShadowColumn(),
		"rows", total,
		"batchSize", opts.BatchSize,
		"dryRun", opts.DryRun,
	)

	if opts.DryRun {
		if err := e.dryRun(ctx, field, opts, report); err != nil {
			return nil, err
		}
		return report, nil
	}

	if err := e.run(ctx, field, opts, report); err != nil {
		return report, err
	}

	e.logger.Info("backfill: done",
		"table", field.Table,
		"updated", report.Updated,
		"badRows", len(report.BadRows),
	)
	return report, nil
}

func (e *Engine) countCandidates(ctx context.Context, field transition.Field) (int64, error) {
	var total int64
	err := e.db.WithContext(ctx).Table(field.Table).
		Where(fmt.Sprintf("%s IS NULL AND %s IS NOT NULL", field.ShadowColumn(), field.Column)).
		Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("backfill: count candidates on %s: %w", field.Table, err)
	}
	return total, nil
}

// nextBatch selects the next batch of distinct legacy key values, in stable
// key order, skipping values already known to be malformed.
func (e *Engine) nextBatch(ctx context.Context, field transition.Field, bad map[string]bool, limit int) ([]string, error) {
	q := e.db.WithContext(ctx).Table(field.Table).
		Distinct(field.Column).
		Where(fmt.Sprintf("%s IS NULL AND %s IS NOT NULL", field.ShadowColumn(), field.Column)).
		Order(field.Column).
		Limit(limit)
	if len(bad) > 0 {
		known := make([]string, 0, len(bad))
		for v := range bad {
			known = append(known, v)
		}
		q = q.Where(fmt.Sprintf("%s NOT IN ?", field.Column), known)
	}
	var values []string
	if err := q.Pluck(field.Column, &values).Error; err != nil {
		return nil, fmt.Errorf("backfill: select batch on %s: %w", field.Table, err)
	}
	return values, nil
}

func (e *Engine) run(ctx context.Context, field transition.Field, opts Options, report *Report) error {
	bad := make(map[string]bool)
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		values, err := e.nextBatch(ctx, field, bad, opts.BatchSize)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			break
		}

		updated, badRow, err := e.commitBatch(ctx, field, values)
		if err != nil {
			return err
		}
		if badRow != nil {
			// The whole batch was rolled back; remember the bad value and
			// rescan, so the batch's healthy rows are retried without it.
			bad[badRow.Value] = true
			report.BadRows = append(report.BadRows, *badRow)
			e.logger.Warn("backfill: malformed legacy key, batch rolled back",
				"table", field.Table, "value", badRow.Value)
			continue
		}

		report.Updated += updated
		elapsed := time.Since(start).Seconds()
		p := Progress{
			Processed: report.Updated,
			Remaining: report.Total - report.Updated,
		}
		if elapsed > 0 {
			p.RowsPerSec = float64(report.Updated) / elapsed
		}
		e.logger.Info("backfill: progress",
			"table", field.Table,
			"processed", p.Processed,
			"remaining", p.Remaining,
			"rowsPerSec", int64(p.RowsPerSec),
		)
		if opts.Progress != nil {
			opts.Progress(p)
		}
	}

	// Rows sharing a malformed key value stay null.
	if len(report.BadRows) > 0 {
		skipped, err := e.countCandidates(ctx, field)
		if err != nil {
			return err
		}
		report.Skipped = skipped
	}
	return nil
}

// commitBatch decodes and updates one batch inside a single transaction.
// A decode failure rolls the batch back and is returned as a BadRow rather
// than an error. Transient store errors are retried a bounded number of
// times before surfacing.
func (e *Engine) commitBatch(ctx context.Context, field transition.Field, values []string) (int64, *BadRow, error) {
	var updated int64
	var bad *BadRow

	attempt := func() error {
		updated = 0
		bad = nil
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, legacy := range values {
				u, err := codec.Decode(legacy)
				if err != nil {
					bad = &BadRow{Value: legacy, Err: err}
					return err // roll back the whole batch
				}
				res := tx.Table(field.Table).
					Where(fmt.Sprintf("%s = ? AND %s IS NULL", field.Column, field.ShadowColumn()), legacy).
					Update(field.ShadowColumn(), u.String())
				if res.Error != nil {
					return fmt.Errorf("backfill: update %s.%s: %w", field.Table, field.ShadowColumn(), res.Error)
				}
				updated += res.RowsAffected
			}
			return nil
		})
	}

	var lastErr error
	for i := 0; i < defaultMaxRetries; i++ {
		err := attempt()
		if err == nil {
			return updated, nil, nil
		}
		var fe *codec.FormatError
		if errors.As(err, &fe) {
			return 0, bad, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
		}
	}
	return 0, nil, fmt.Errorf("backfill: batch on %s failed after %d attempts: %w", field.Table, defaultMaxRetries, lastErr)
}

// dryRun walks the same selection and decode steps without writing.
func (e *Engine) dryRun(ctx context.Context, field transition.Field, opts Options, report *Report) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var values []string
		err := e.db.WithContext(ctx).Table(field.Table).
			Distinct(field.Column).
			Where(fmt.Sprintf("%s IS NULL AND %s IS NOT NULL", field.ShadowColumn(), field.Column)).
			Order(field.Column).
			Offset(offset).
			Limit(opts.BatchSize).
			Pluck(field.Column, &values).Error
		if err != nil {
			return fmt.Errorf("backfill: dry-run select on %s: %w", field.Table, err)
		}
		if len(values) == 0 {
			return nil
		}
		for _, legacy := range values {
			if len(report.SampleValues) < dryRunSampleSize {
				report.SampleValues = append(report.SampleValues, legacy)
			}
			if _, err := codec.Decode(legacy); err != nil {
				report.BadRows = append(report.BadRows, BadRow{Value: legacy, Err: err})
			}
		}
		offset += len(values)
	}
}
