package state

import (
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one table's persisted migration stage. It lives in the same
// relational store as the migrated data, so a crashed operator process can
// resume from the last recorded stage.
type Record struct {
	Table     string    `gorm:"primaryKey;column:table_name"`
	Stage     Stage     `gorm:"column:stage"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	UpdatedBy string    `gorm:"column:updated_by"`
}

func (Record) TableName() string { return "uuid_migration_states" }

// Tracker reads and advances per-table migration stages.
type Tracker struct {
	db *gorm.DB
}

// NewTracker creates a Tracker on the given connection.
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// AutoMigrate creates or updates the stage table.
func (t *Tracker) AutoMigrate() error {
	if err := t.db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("auto-migrate migration states: %w", err)
	}
	return nil
}

// CurrentStage returns the recorded stage for a table, or StageNone when the
// table has not started the migration.
func (t *Tracker) CurrentStage(table string) (Stage, error) {
	var rec Record
	err := t.db.Where("table_name = ?", table).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return StageNone, nil
		}
		return StageNone, fmt.Errorf("read stage for %s: %w", table, err)
	}
	return rec.Stage, nil
}

// Advance moves a table to the requested stage, rejecting any non-monotonic
// transition with *StageViolationError before writing anything. The check and
// the write happen in one transaction so concurrent operators cannot race
// each other past a stage.
func (t *Tracker) Advance(table string, to Stage) error {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	return t.db.Transaction(func(tx *gorm.DB) error {
		var rec Record
		from := StageNone
		q := tx.Where("table_name = ?", table)
		// SQLite has no FOR UPDATE; its writer lock covers the transaction.
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.First(&rec).Error
		switch {
		case err == nil:
			from = rec.Stage
		case err == gorm.ErrRecordNotFound:
			// first transition for this table
		default:
			return fmt.Errorf("read stage for %s: %w", table, err)
		}

		if err := CheckTransition(table, from, to); err != nil {
			return err
		}

		rec = Record{
			Table:     table,
			Stage:     to,
			UpdatedAt: time.Now().UTC(),
			UpdatedBy: hostname,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "table_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"stage", "updated_at", "updated_by"}),
		}).Create(&rec).Error; err != nil {
			return fmt.Errorf("record stage %s for %s: %w", to, table, err)
		}
		return nil
	})
}

// List returns all tracked tables ordered by name.
func (t *Tracker) List() ([]Record, error) {
	var recs []Record
	if err := t.db.Order("table_name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list migration states: %w", err)
	}
	return recs, nil
}
