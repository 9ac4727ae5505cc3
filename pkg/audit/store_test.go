package audit

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *EventStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := NewEventStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func appendEvent(t *testing.T, store *EventStore, actor, outcome string, createdAt time.Time) *EventRecord {
	t.Helper()
	event := &EventRecord{
		ID:           uuid.New().String(),
		Actor:        actor,
		ResourceType: "secret",
		Action:       "create",
		Outcome:      outcome,
		StatusCode:   201,
		CreatedAt:    createdAt,
	}
	require.NoError(t, store.Append(event))
	return event
}

func TestEventStore_AppendAndList(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	appendEvent(t, store, "alice", OutcomeSuccess, now.Add(-2*time.Hour))
	appendEvent(t, store, "alice", OutcomeDenied, now.Add(-time.Hour))
	appendEvent(t, store, "bob", OutcomeSuccess, now)

	events, err := store.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "bob", events[0].Actor, "newest first")

	events, err = store.List(ListFilter{Actor: "alice"})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = store.List(ListFilter{Outcome: OutcomeDenied})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Actor)

	events, err = store.List(ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventStore_DeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	appendEvent(t, store, "alice", OutcomeSuccess, now.Add(-48*time.Hour))
	appendEvent(t, store, "alice", OutcomeSuccess, now.Add(-36*time.Hour))
	kept := appendEvent(t, store, "alice", OutcomeSuccess, now)

	deleted, err := store.DeleteOlderThan(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	events, err := store.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, kept.ID, events[0].ID)
}
