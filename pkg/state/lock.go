package state

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

// OperationLocker serializes migration operations per table, so that two
// operators cannot, for example, run a backfill and a cutover against the
// same table at the same time.
type OperationLocker interface {
	// WithLock executes fn while holding the lock for table. It blocks until
	// the lock is acquired, then releases it after fn returns.
	WithLock(ctx context.Context, table string, fn func() error) error
}

// NewOperationLocker creates an OperationLocker appropriate for the database
// dialect. PostgreSQL uses advisory locks; other databases use a table-based
// fallback. The lock table is created immediately for the fallback strategy.
func NewOperationLocker(db *gorm.DB) OperationLocker {
	if db == nil {
		return &noopLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &pgAdvisoryLock{db: db}
	}
	lock := &fallbackLock{db: db}
	// Create the lock table immediately so that concurrent callers never
	// hit "no such table" errors on their first WithLock call.
	_ = db.AutoMigrate(&operationLockRecord{})
	return lock
}

// noopLock is used when no database is configured.
type noopLock struct{}

func (n *noopLock) WithLock(_ context.Context, _ string, fn func() error) error {
	return fn()
}

// pgAdvisoryLock uses PostgreSQL advisory locks, one lock ID per table.
type pgAdvisoryLock struct {
	db *gorm.DB
}

func (l *pgAdvisoryLock) lockID(table string) int64 {
	return int64(crc32.ChecksumIEEE([]byte("uuidshift:" + table)))
}

func (l *pgAdvisoryLock) WithLock(ctx context.Context, table string, fn func() error) error {
	id := l.lockID(table)
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", id).Error; err != nil {
		return fmt.Errorf("failed to acquire advisory lock for %s: %w", table, err)
	}

	// Always release the lock.
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", id).Error
	}()

	return fn()
}

// operationLockRecord is the table-based lock row for non-PostgreSQL
// databases.
type operationLockRecord struct {
	Table    string    `gorm:"primaryKey;column:table_name"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (operationLockRecord) TableName() string { return "uuid_migration_locks" }

// fallbackLock uses a database table for locking on non-PostgreSQL databases
// (SQLite, MySQL). It uses INSERT-or-fail semantics to ensure only one holder
// per table at a time, with stale lock cleanup for crash recovery.
type fallbackLock struct {
	db *gorm.DB
}

func (l *fallbackLock) WithLock(ctx context.Context, table string, fn func() error) error {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	lockRow := operationLockRecord{
		Table:    table,
		LockedBy: hostname,
	}

	const maxRetries = 30
	const retryInterval = 1 * time.Second
	const staleLockAge = 5 * time.Minute

	acquired := false
	for i := 0; i < maxRetries; i++ {
		// Delete stale locks (older than staleLockAge) to handle crash recovery.
		l.db.WithContext(ctx).
			Where("table_name = ? AND locked_at < ?", table, time.Now().Add(-staleLockAge)).
			Delete(&operationLockRecord{})

		// Update lockRow timestamp for each attempt.
		lockRow.LockedAt = time.Now()

		// Try to insert (fails if row already exists).
		result := l.db.WithContext(ctx).Create(&lockRow)
		if result.Error == nil {
			acquired = true
			break
		}

		if i == maxRetries-1 {
			return fmt.Errorf("failed to acquire lock for %s after %d retries: %w", table, maxRetries, result.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	if !acquired {
		return fmt.Errorf("failed to acquire lock for %s", table)
	}

	// Always release the lock.
	defer func() {
		l.db.Where("table_name = ?", table).Delete(&operationLockRecord{})
	}()

	return fn()
}
