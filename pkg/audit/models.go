// Package audit records who did what to which resource. Mutating API
// calls append an event; a retention worker trims old ones.
package audit

import "time"

// EventRecord is one audit trail entry.
type EventRecord struct {
	ID           string    `gorm:"primaryKey;size:36"`
	RequestID    string    `gorm:"size:64;index"`
	Actor        string    `gorm:"size:36;not null;index"`
	ActorName    string    `gorm:"size:255"`
	ResourceType string    `gorm:"size:64;not null;index"`
	ResourceID   string    `gorm:"size:36"`
	Action       string    `gorm:"size:64;not null"`
	Outcome      string    `gorm:"size:16;not null"`
	StatusCode   int       `gorm:"not null"`
	Method       string    `gorm:"size:8"`
	Path         string    `gorm:"size:512"`
	DurationMS   int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"index"`
}

// TableName sets the table name for EventRecord.
func (EventRecord) TableName() string { return "audit_events" }

// Outcomes recorded for an event.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeFailure = "failure"
)
