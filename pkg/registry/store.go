package registry

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrModelNotFound is returned when a referenced model does not exist.
	ErrModelNotFound = errors.New("model not found")
	// ErrModelExists is returned when a model name is already taken in
	// the workspace.
	ErrModelExists = errors.New("model already exists")
	// ErrModelVersionNotFound is returned when a referenced model version
	// does not exist.
	ErrModelVersionNotFound = errors.New("model version not found")
	// ErrModelVersionExists is returned when a version name is already
	// taken for the model.
	ErrModelVersionExists = errors.New("model version already exists")
)

// createVersionRetries bounds the number of attempts to claim a version
// number when concurrent creations collide on (model_id, number).
const createVersionRetries = 5

// ModelStore provides CRUD operations for models, model versions and
// their links. The gorm connection must be opened with TranslateError
// set so uniqueness conflicts surface as gorm.ErrDuplicatedKey.
type ModelStore struct {
	db *gorm.DB
}

// NewModelStore creates a new ModelStore.
func NewModelStore(db *gorm.DB) *ModelStore {
	return &ModelStore{db: db}
}

// AutoMigrate creates or updates the registry tables. On databases with
// partial index support it also installs the (model_id, stage) unique
// index guarding the single-occupant stage invariant; MySQL lacks partial
// indexes, so there the invariant rests on the stage transaction alone.
func (s *ModelStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ModelRecord{}, &ModelVersionRecord{}, &ArtifactLinkRecord{}, &RunLinkRecord{}); err != nil {
		return fmt.Errorf("auto-migrate registry: %w", err)
	}

	if s.db.Dialector.Name() != "mysql" {
		err := s.db.Exec(
			`CREATE UNIQUE INDEX IF NOT EXISTS uq_version_stage ON model_versions (model_id, stage) WHERE stage NOT IN ('', 'archived')`,
		).Error
		if err != nil {
			return fmt.Errorf("create stage index: %w", err)
		}
	}
	return nil
}

// CreateModelRequest carries everything needed to register a model.
type CreateModelRequest struct {
	Name        string
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	UserName    string
	License     string
	Description string
}

// CreateModel registers a new model. Returns ErrModelExists if the name
// is taken in the workspace.
func (s *ModelStore) CreateModel(req CreateModelRequest) (*ModelRecord, error) {
	record := &ModelRecord{
		ID:          uuid.NewString(),
		WorkspaceID: req.WorkspaceID.String(),
		Name:        req.Name,
		License:     req.License,
		Description: req.Description,
		UserID:      req.UserID.String(),
		UserName:    req.UserName,
	}

	if err := s.db.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("model %q: %w", req.Name, ErrModelExists)
		}
		return nil, fmt.Errorf("create model: %w", err)
	}
	return record, nil
}

// GetModel retrieves a model by ID.
func (s *ModelStore) GetModel(id uuid.UUID) (*ModelRecord, error) {
	var record ModelRecord
	err := s.db.Where("id = ?", id.String()).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("model %s: %w", id, ErrModelNotFound)
		}
		return nil, fmt.Errorf("get model: %w", err)
	}
	return &record, nil
}

// ListModels returns the models of a workspace ordered by name.
func (s *ModelStore) ListModels(workspaceID uuid.UUID) ([]ModelRecord, error) {
	var records []ModelRecord
	err := s.db.Where("workspace_id = ?", workspaceID.String()).Order("name ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return records, nil
}

// DeleteModel deletes a model together with its versions and links.
func (s *ModelStore) DeleteModel(id uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var versionIDs []string
		if err := tx.Model(&ModelVersionRecord{}).Where("model_id = ?", id.String()).Pluck("id", &versionIDs).Error; err != nil {
			return fmt.Errorf("list version IDs: %w", err)
		}
		if len(versionIDs) > 0 {
			if err := tx.Where("model_version_id IN ?", versionIDs).Delete(&ArtifactLinkRecord{}).Error; err != nil {
				return fmt.Errorf("delete artifact links: %w", err)
			}
			if err := tx.Where("model_version_id IN ?", versionIDs).Delete(&RunLinkRecord{}).Error; err != nil {
				return fmt.Errorf("delete run links: %w", err)
			}
			if err := tx.Where("model_id = ?", id.String()).Delete(&ModelVersionRecord{}).Error; err != nil {
				return fmt.Errorf("delete versions: %w", err)
			}
		}

		result := tx.Where("id = ?", id.String()).Delete(&ModelRecord{})
		if result.Error != nil {
			return fmt.Errorf("delete model: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("model %s: %w", id, ErrModelNotFound)
		}
		return nil
	})
}

// CreateVersionRequest carries everything needed to create a model
// version. Name is optional; unnamed versions get their number as name.
type CreateVersionRequest struct {
	ModelID     uuid.UUID
	Name        string
	Description string
	UserID      uuid.UUID
	UserName    string
}

// CreateVersion creates a new version with the next free number for the
// model, starting at 1. The number is claimed inside a transaction; if a
// concurrent creation claims the same number first, the unique index
// rejects the insert and the whole transaction is retried with a fresh
// number. Numbers are never reused.
func (s *ModelStore) CreateVersion(req CreateVersionRequest) (*ModelVersionRecord, error) {
	for attempt := 0; attempt < createVersionRetries; attempt++ {
		record, err := s.tryCreateVersion(req)
		if err == nil {
			return record, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if req.Name != "" {
				taken, checkErr := s.versionNameTaken(req.ModelID, req.Name)
				if checkErr != nil {
					return nil, checkErr
				}
				if taken {
					return nil, fmt.Errorf("model version %q: %w", req.Name, ErrModelVersionExists)
				}
			}
			// Number conflict with a concurrent creation; claim again.
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("create model version: gave up after %d number conflicts", createVersionRetries)
}

func (s *ModelStore) tryCreateVersion(req CreateVersionRequest) (*ModelVersionRecord, error) {
	var record *ModelVersionRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&ModelRecord{}).Where("id = ?", req.ModelID.String()).Count(&exists).Error; err != nil {
			return fmt.Errorf("check model: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("model %s: %w", req.ModelID, ErrModelNotFound)
		}

		var next int
		err := tx.Model(&ModelVersionRecord{}).
			Where("model_id = ?", req.ModelID.String()).
			Select("COALESCE(MAX(number), 0) + 1").
			Scan(&next).Error
		if err != nil {
			return fmt.Errorf("next version number: %w", err)
		}

		name := req.Name
		if name == "" {
			name = strconv.Itoa(next)
		}

		record = &ModelVersionRecord{
			ID:          uuid.NewString(),
			ModelID:     req.ModelID.String(),
			Number:      next,
			Name:        name,
			Stage:       "",
			Description: req.Description,
			UserID:      req.UserID.String(),
			UserName:    req.UserName,
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *ModelStore) versionNameTaken(modelID uuid.UUID, name string) (bool, error) {
	var count int64
	err := s.db.Model(&ModelVersionRecord{}).
		Where("model_id = ? AND name = ?", modelID.String(), name).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check version name: %w", err)
	}
	return count > 0, nil
}

// GetVersion retrieves a model version by ID.
func (s *ModelStore) GetVersion(id uuid.UUID) (*ModelVersionRecord, error) {
	var record ModelVersionRecord
	err := s.db.Where("id = ?", id.String()).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("model version %s: %w", id, ErrModelVersionNotFound)
		}
		return nil, fmt.Errorf("get model version: %w", err)
	}
	return &record, nil
}

// ListVersions returns the versions of a model ordered by number.
func (s *ModelStore) ListVersions(modelID uuid.UUID) ([]ModelVersionRecord, error) {
	var records []ModelVersionRecord
	err := s.db.Where("model_id = ?", modelID.String()).Order("number ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list model versions: %w", err)
	}
	return records, nil
}
