package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// ErrStageOccupied is returned when a stage transition targets a stage
// already held by another version of the same model and force was not
// set. The caller-facing remediation is to confirm and retry with force,
// which archives the current occupant.
var ErrStageOccupied = errors.New("stage occupied by another model version")

// StageOccupiedError carries the occupying version so callers can show it
// in the confirmation prompt.
type StageOccupiedError struct {
	Stage        apimodels.Stage
	OccupantID   string
	OccupantName string
}

func (e *StageOccupiedError) Error() string {
	if e.OccupantName != "" {
		return fmt.Sprintf("stage %q is occupied by model version %q (%s)", e.Stage, e.OccupantName, e.OccupantID)
	}
	return fmt.Sprintf("stage %q is occupied by another model version", e.Stage)
}

func (e *StageOccupiedError) Unwrap() error { return ErrStageOccupied }

// SetStageRequest carries a stage transition. NewName optionally renames
// the version in the same transaction as the stage change.
type SetStageRequest struct {
	VersionID uuid.UUID
	Stage     apimodels.Stage
	Force     bool
	NewName   *string
}

// SetStage moves a model version to the requested stage. Stages are not
// ordered: any stage is reachable from any other. For exclusive stages
// the single-occupant invariant applies: if another version of the model
// holds the stage, the transition fails with a StageOccupiedError unless
// force is set, in which case the occupant is archived and the target
// assigned in one transaction. Archiving is a plain stage assignment;
// many versions may be archived at once.
func (s *ModelStore) SetStage(req SetStageRequest) (*ModelVersionRecord, error) {
	if !apimodels.ValidStage(req.Stage) {
		return nil, fmt.Errorf("unknown stage %q", req.Stage)
	}

	var record ModelVersionRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", req.VersionID.String()).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("model version %s: %w", req.VersionID, ErrModelVersionNotFound)
			}
			return fmt.Errorf("get model version: %w", err)
		}

		if req.Stage.IsExclusive() {
			var occupant ModelVersionRecord
			err := tx.Where("model_id = ? AND stage = ? AND id <> ?", record.ModelID, string(req.Stage), record.ID).
				First(&occupant).Error
			switch {
			case err == nil:
				if !req.Force {
					return &StageOccupiedError{
						Stage:        req.Stage,
						OccupantID:   occupant.ID,
						OccupantName: occupant.Name,
					}
				}
				occupant.Stage = string(apimodels.StageArchived)
				occupant.UpdatedAt = time.Now().UTC()
				if err := tx.Save(&occupant).Error; err != nil {
					return fmt.Errorf("archive occupant: %w", err)
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				// Stage is free.
			default:
				return fmt.Errorf("find stage occupant: %w", err)
			}
		}

		record.Stage = string(req.Stage)
		if req.NewName != nil {
			record.Name = *req.NewName
		}
		record.UpdatedAt = time.Now().UTC()

		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("set stage: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if req.NewName != nil {
				modelID, parseErr := uuid.Parse(record.ModelID)
				if parseErr == nil {
					taken, checkErr := s.versionNameTaken(modelID, *req.NewName)
					if checkErr == nil && taken {
						return nil, fmt.Errorf("model version %q: %w", *req.NewName, ErrModelVersionExists)
					}
				}
			}
			// Lost the stage race to a concurrent writer; the partial
			// unique index rejected the second occupant.
			return nil, &StageOccupiedError{Stage: req.Stage}
		}
		return nil, err
	}
	return &record, nil
}

// StageOccupant returns the version of the model currently holding the
// stage, or ErrModelVersionNotFound if the stage is free.
func (s *ModelStore) StageOccupant(modelID uuid.UUID, stage apimodels.Stage) (*ModelVersionRecord, error) {
	var record ModelVersionRecord
	err := s.db.Where("model_id = ? AND stage = ?", modelID.String(), string(stage)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("stage %q of model %s: %w", stage, modelID, ErrModelVersionNotFound)
		}
		return nil, fmt.Errorf("get stage occupant: %w", err)
	}
	return &record, nil
}
