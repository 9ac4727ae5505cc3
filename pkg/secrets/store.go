package secrets

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// ErrSecretNotFound is returned when a referenced secret does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// ErrSecretExists is returned when a secret name already occupies the
// target slot. It is raised from the same statement that attempted the
// write, so concurrent writers cannot slip between a check and the
// insert. The gorm connection must be opened with TranslateError set.
var ErrSecretExists = errors.New("secret already exists in scope")

// SecretStore provides CRUD operations for secrets.
type SecretStore struct {
	db *gorm.DB
}

// NewSecretStore creates a new SecretStore.
func NewSecretStore(db *gorm.DB) *SecretStore {
	return &SecretStore{db: db}
}

// AutoMigrate creates or updates the secrets table.
func (s *SecretStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&SecretRecord{}); err != nil {
		return fmt.Errorf("auto-migrate secrets: %w", err)
	}
	return nil
}

// CreateSecretRequest carries everything needed to create a secret.
type CreateSecretRequest struct {
	Name        string
	Scope       apimodels.SecretScope
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	UserName    string
	Values      map[string]string
}

// Create inserts a new secret. Returns ErrSecretExists if the name
// already occupies the target slot (the workspace slot for workspace
// scope, the creating user's slot for user scope).
func (s *SecretStore) Create(req CreateSecretRequest) (*SecretRecord, error) {
	record := &SecretRecord{
		ID:          uuid.NewString(),
		WorkspaceID: req.WorkspaceID.String(),
		Scope:       string(req.Scope),
		SlotOwner:   slotOwner(req.Scope, req.UserID.String()),
		Name:        req.Name,
		UserID:      req.UserID.String(),
		UserName:    req.UserName,
		Values:      SecretValues(req.Values),
	}

	if err := s.db.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("secret %q with scope %q: %w", req.Name, req.Scope, ErrSecretExists)
		}
		return nil, fmt.Errorf("create secret: %w", err)
	}
	return record, nil
}

// Get retrieves a secret by ID. Returns ErrSecretNotFound if it does not
// exist.
func (s *SecretStore) Get(id uuid.UUID) (*SecretRecord, error) {
	var record SecretRecord
	err := s.db.Where("id = ?", id.String()).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("secret %s: %w", id, ErrSecretNotFound)
		}
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return &record, nil
}

// UpdateSecretRequest carries an update to an existing secret. Nil fields
// are left unchanged. A nil value in Values removes that key; non-nil
// values are set.
type UpdateSecretRequest struct {
	Name   *string
	Scope  *apimodels.SecretScope
	Values map[string]*string
}

// Update applies the request to the secret. Renames fail with
// ErrSecretExists if the new name already occupies the secret's current
// slot; scope changes fail the same way if the name already occupies the
// destination slot. The read-modify-write runs in one transaction, with
// the slot index as the race guard.
func (s *SecretStore) Update(id uuid.UUID, req UpdateSecretRequest) (*SecretRecord, error) {
	var record SecretRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id.String()).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("secret %s: %w", id, ErrSecretNotFound)
			}
			return fmt.Errorf("get secret: %w", err)
		}

		if req.Name != nil {
			record.Name = *req.Name
		}
		if req.Scope != nil {
			record.Scope = string(*req.Scope)
			record.SlotOwner = slotOwner(*req.Scope, record.UserID)
		}
		if req.Values != nil {
			if record.Values == nil {
				record.Values = SecretValues{}
			}
			for k, v := range req.Values {
				if v == nil {
					delete(record.Values, k)
				} else {
					record.Values[k] = *v
				}
			}
		}
		record.UpdatedAt = time.Now().UTC()

		if err := tx.Save(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("secret %q with scope %q: %w", record.Name, record.Scope, ErrSecretExists)
			}
			return fmt.Errorf("update secret: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes a secret by ID. Returns ErrSecretNotFound if it does not
// exist.
func (s *SecretStore) Delete(id uuid.UUID) error {
	result := s.db.Where("id = ?", id.String()).Delete(&SecretRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete secret: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("secret %s: %w", id, ErrSecretNotFound)
	}
	return nil
}

// ListFilter narrows a secret listing. The zero value lists everything
// the caller may see.
type ListFilter struct {
	Name        string
	Scope       *apimodels.SecretScope
	WorkspaceID *uuid.UUID
}

// List returns the secrets visible to the caller, newest first: all
// workspace-scoped secrets in workspaces the caller belongs to, plus the
// caller's own user-scoped secrets. Other users' user-scoped secrets stay
// invisible even when they match the filter.
func (s *SecretStore) List(filter ListFilter, callerID uuid.UUID, callerWorkspaces []uuid.UUID) ([]SecretRecord, error) {
	workspaceIDs := make([]string, 0, len(callerWorkspaces))
	for _, id := range callerWorkspaces {
		workspaceIDs = append(workspaceIDs, id.String())
	}

	query := s.db.Where(
		s.db.Where("scope = ? AND workspace_id IN ?", string(apimodels.SecretScopeWorkspace), workspaceIDs).
			Or("scope = ? AND user_id = ?", string(apimodels.SecretScopeUser), callerID.String()),
	)

	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.Scope != nil {
		query = query.Where("scope = ?", string(*filter.Scope))
	}
	if filter.WorkspaceID != nil {
		query = query.Where("workspace_id = ?", filter.WorkspaceID.String())
	}

	var records []SecretRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	return records, nil
}

// PurgeUserSecrets deletes every secret owned by the user, both their
// private user-scoped secrets and any workspace-scoped secrets they own.
// Unlike other owned resource types, this cascade is unconditional.
func (s *SecretStore) PurgeUserSecrets(userID uuid.UUID) (int64, error) {
	result := s.db.Where("user_id = ?", userID.String()).Delete(&SecretRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge user secrets: %w", result.Error)
	}
	return result.RowsAffected, nil
}
