package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LinkArtifactRequest carries an artifact link creation.
type LinkArtifactRequest struct {
	VersionID            uuid.UUID
	ArtifactID           uuid.UUID
	IsModelArtifact      bool
	IsDeploymentArtifact bool
}

// LinkArtifact links an artifact to a model version. Linking the same
// pair twice is idempotent: the existing link is returned, role flags
// unchanged.
func (s *ModelStore) LinkArtifact(req LinkArtifactRequest) (*ArtifactLinkRecord, error) {
	var record ArtifactLinkRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("model_version_id = ? AND artifact_id = ?", req.VersionID.String(), req.ArtifactID.String()).
			First(&record).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find artifact link: %w", err)
		}

		var exists int64
		if err := tx.Model(&ModelVersionRecord{}).Where("id = ?", req.VersionID.String()).Count(&exists).Error; err != nil {
			return fmt.Errorf("check model version: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("model version %s: %w", req.VersionID, ErrModelVersionNotFound)
		}

		record = ArtifactLinkRecord{
			ID:                   uuid.NewString(),
			ModelVersionID:       req.VersionID.String(),
			ArtifactID:           req.ArtifactID.String(),
			IsModelArtifact:      req.IsModelArtifact,
			IsDeploymentArtifact: req.IsDeploymentArtifact,
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		// A concurrent request may have created the link between the
		// lookup and the insert; return what it created.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.getArtifactLink(req.VersionID, req.ArtifactID)
		}
		return nil, err
	}
	return &record, nil
}

func (s *ModelStore) getArtifactLink(versionID, artifactID uuid.UUID) (*ArtifactLinkRecord, error) {
	var record ArtifactLinkRecord
	err := s.db.Where("model_version_id = ? AND artifact_id = ?", versionID.String(), artifactID.String()).
		First(&record).Error
	if err != nil {
		return nil, fmt.Errorf("get artifact link: %w", err)
	}
	return &record, nil
}

// ListArtifactLinks returns the artifact links of a model version.
func (s *ModelStore) ListArtifactLinks(versionID uuid.UUID) ([]ArtifactLinkRecord, error) {
	var records []ArtifactLinkRecord
	err := s.db.Where("model_version_id = ?", versionID.String()).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list artifact links: %w", err)
	}
	return records, nil
}

// UnlinkArtifact removes the link between a model version and an
// artifact. Returns ErrModelVersionNotFound if no such link exists.
func (s *ModelStore) UnlinkArtifact(versionID, artifactID uuid.UUID) error {
	result := s.db.Where("model_version_id = ? AND artifact_id = ?", versionID.String(), artifactID.String()).
		Delete(&ArtifactLinkRecord{})
	if result.Error != nil {
		return fmt.Errorf("unlink artifact: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("artifact link %s/%s: %w", versionID, artifactID, ErrModelVersionNotFound)
	}
	return nil
}

// LinkRun links a pipeline run to a model version, idempotently.
func (s *ModelStore) LinkRun(versionID, runID uuid.UUID) (*RunLinkRecord, error) {
	var record RunLinkRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("model_version_id = ? AND run_id = ?", versionID.String(), runID.String()).
			First(&record).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find run link: %w", err)
		}

		var exists int64
		if err := tx.Model(&ModelVersionRecord{}).Where("id = ?", versionID.String()).Count(&exists).Error; err != nil {
			return fmt.Errorf("check model version: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("model version %s: %w", versionID, ErrModelVersionNotFound)
		}

		record = RunLinkRecord{
			ID:             uuid.NewString(),
			ModelVersionID: versionID.String(),
			RunID:          runID.String(),
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing RunLinkRecord
			getErr := s.db.Where("model_version_id = ? AND run_id = ?", versionID.String(), runID.String()).
				First(&existing).Error
			if getErr != nil {
				return nil, fmt.Errorf("get run link: %w", getErr)
			}
			return &existing, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListRunLinks returns the pipeline-run links of a model version.
func (s *ModelStore) ListRunLinks(versionID uuid.UUID) ([]RunLinkRecord, error) {
	var records []RunLinkRecord
	err := s.db.Where("model_version_id = ?", versionID.String()).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list run links: %w", err)
	}
	return records, nil
}
