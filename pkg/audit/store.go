package audit

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventStore persists audit events.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates an EventStore backed by the given database.
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// AutoMigrate creates or updates the audit schema.
func (s *EventStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("failed to migrate audit schema: %w", err)
	}
	return nil
}

// Append writes one event.
func (s *EventStore) Append(event *EventRecord) error {
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// ListFilter narrows List results. Zero fields match everything.
type ListFilter struct {
	Actor        string
	ResourceType string
	Outcome      string
	Limit        int
}

// List returns events newest first.
func (s *EventStore) List(filter ListFilter) ([]EventRecord, error) {
	query := s.db.Model(&EventRecord{}).Order("created_at DESC")
	if filter.Actor != "" {
		query = query.Where("actor = ?", filter.Actor)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var events []EventRecord
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}

// DeleteOlderThan removes events created before the cutoff and reports
// how many were deleted.
func (s *EventStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&EventRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
