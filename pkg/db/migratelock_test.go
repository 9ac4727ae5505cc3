package db

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newLockTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestMigrationLocker_RunsAndReleases(t *testing.T) {
	db := newLockTestDB(t)
	locker := NewMigrationLocker(db)

	ran := false
	require.NoError(t, locker.WithLock(context.Background(), func() error {
		ran = true

		var count int64
		require.NoError(t, db.Model(&migrationLockRow{}).Count(&count).Error)
		assert.Equal(t, int64(1), count, "lock row held during fn")
		return nil
	}))
	assert.True(t, ran)

	var count int64
	require.NoError(t, db.Model(&migrationLockRow{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "lock released after fn")
}

func TestMigrationLocker_ReleasesOnError(t *testing.T) {
	db := newLockTestDB(t)
	locker := NewMigrationLocker(db)

	boom := errors.New("migrate failed")
	err := locker.WithLock(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// A failed migration must not leave the lock held.
	require.NoError(t, locker.WithLock(context.Background(), func() error { return nil }))
}

func TestMigrationLocker_NilDatabase(t *testing.T) {
	locker := NewMigrationLocker(nil)
	ran := false
	require.NoError(t, locker.WithLock(context.Background(), func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}
