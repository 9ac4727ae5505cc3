package db

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

// MigrationLocker serializes schema migrations across server replicas so
// only one process runs AutoMigrate at a time.
type MigrationLocker interface {
	// WithLock runs fn while holding the migration lock, blocking until
	// the lock is acquired.
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker picks a lock strategy for the dialect. PostgreSQL
// gets an advisory lock; mysql and sqlite fall back to a lock table with
// insert-or-fail semantics.
func NewMigrationLocker(db *gorm.DB) MigrationLocker {
	if db == nil {
		return noopLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &advisoryLock{
			db:  db,
			key: int64(crc32.ChecksumIEEE([]byte("metastore-migration"))),
		}
	}
	lock := &tableLock{db: db}
	// Create the lock table up front so concurrent first callers never
	// race on "no such table".
	_ = db.AutoMigrate(&migrationLockRow{})
	return lock
}

type noopLock struct{}

func (noopLock) WithLock(_ context.Context, fn func() error) error { return fn() }

type advisoryLock struct {
	db  *gorm.DB
	key int64
}

func (l *advisoryLock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", l.key).Error; err != nil {
		return fmt.Errorf("failed to acquire migration advisory lock: %w", err)
	}
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", l.key).Error
	}()
	return fn()
}

type migrationLockRow struct {
	ID       string    `gorm:"primaryKey"`
	LockedAt time.Time `gorm:"not null"`
	LockedBy string    `gorm:"size:255"`
}

func (migrationLockRow) TableName() string { return "migration_lock" }

// tableLock holds the lock as a single row. Rows older than the stale
// age are swept before each attempt so a crashed holder cannot wedge
// migrations forever.
type tableLock struct {
	db *gorm.DB
}

const (
	lockRetries   = 30
	lockRetryWait = time.Second
	lockStaleAge  = 5 * time.Minute
)

func (l *tableLock) WithLock(ctx context.Context, fn func() error) error {
	holder, _ := os.Hostname()
	if holder == "" {
		holder = "unknown"
	}

	row := migrationLockRow{ID: "migration", LockedBy: holder}

	var acquired bool
	for attempt := 0; attempt < lockRetries; attempt++ {
		l.db.WithContext(ctx).
			Where("id = ? AND locked_at < ?", row.ID, time.Now().Add(-lockStaleAge)).
			Delete(&migrationLockRow{})

		row.LockedAt = time.Now()
		if err := l.db.WithContext(ctx).Create(&row).Error; err == nil {
			acquired = true
			break
		} else if attempt == lockRetries-1 {
			return fmt.Errorf("failed to acquire migration lock after %d attempts: %w", lockRetries, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}
	if !acquired {
		return fmt.Errorf("failed to acquire migration lock")
	}

	defer func() {
		l.db.Where("id = ?", row.ID).Delete(&migrationLockRow{})
	}()
	return fn()
}
