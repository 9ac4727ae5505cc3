// Package secrets implements the secret store with two-slot name
// scoping: a secret name within a workspace may occupy the shared
// workspace slot and, independently, one private slot per user. Name
// uniqueness is enforced per slot by the database, not by pre-checks.
package secrets

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// SecretValues is a custom GORM type for map[string]string stored as JSON.
type SecretValues map[string]string

// GormDataType tells the migrator which column type backs the map.
func (SecretValues) GormDataType() string { return "text" }

// Scan implements the sql.Scanner interface for SecretValues.
func (v *SecretValues) Scan(value any) error {
	if value == nil {
		*v = nil
		return nil
	}
	var bytes []byte
	switch raw := value.(type) {
	case string:
		bytes = []byte(raw)
	case []byte:
		bytes = raw
	default:
		return fmt.Errorf("unsupported type for SecretValues: %T", value)
	}
	return json.Unmarshal(bytes, v)
}

// Value implements the driver.Valuer interface for SecretValues.
func (v SecretValues) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// SecretRecord is the persisted form of a secret.
//
// SlotOwner encodes the uniqueness slot the name occupies: the owning
// user's ID for user-scoped secrets and the empty string for
// workspace-scoped ones. The composite unique index on
// (workspace_id, scope, slot_owner, name) is the authoritative guard for
// the per-slot name invariant; application-level checks only produce
// friendlier errors for the common case.
type SecretRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	WorkspaceID string `gorm:"size:36;not null;uniqueIndex:uq_secret_slot_name,priority:1"`
	Scope       string `gorm:"size:16;not null;uniqueIndex:uq_secret_slot_name,priority:2"`
	SlotOwner   string `gorm:"size:36;not null;uniqueIndex:uq_secret_slot_name,priority:3"`
	Name        string `gorm:"size:255;not null;uniqueIndex:uq_secret_slot_name,priority:4"`

	UserID    string `gorm:"size:36;not null;index"`
	UserName  string `gorm:"size:255"`
	Values    SecretValues
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName sets the table name for SecretRecord.
func (SecretRecord) TableName() string { return "secrets" }

// slotOwner computes the SlotOwner column value for a scope and owner.
func slotOwner(scope apimodels.SecretScope, userID string) string {
	if scope == apimodels.SecretScopeUser {
		return userID
	}
	return ""
}

// ToResponse converts the record to its API response model.
func (r *SecretRecord) ToResponse(workspace *apimodels.WorkspaceResponse) (*apimodels.SecretResponse, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("secret %q has invalid ID: %w", r.Name, err)
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("secret %q has invalid owner ID: %w", r.Name, err)
	}

	return &apimodels.SecretResponse{
		BaseResponse: apimodels.BaseResponse{
			ID:      id,
			Created: r.CreatedAt,
			Updated: r.UpdatedAt,
		},
		Name:      r.Name,
		Scope:     apimodels.SecretScope(r.Scope),
		Values:    map[string]string(r.Values),
		User:      &apimodels.UserRef{ID: userID, Name: r.UserName},
		Workspace: workspace,
	}, nil
}
