// Package registry implements the model and model-version store,
// including per-model version numbering, the single-occupant stage
// invariant and the artifact/run link records.
package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// ModelRecord is the persisted form of a registered model. Model names
// are unique per workspace.
type ModelRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	WorkspaceID string `gorm:"size:36;not null;uniqueIndex:uq_model_name,priority:1"`
	Name        string `gorm:"size:255;not null;uniqueIndex:uq_model_name,priority:2"`
	License     string `gorm:"size:255"`
	Description string
	UserID      string `gorm:"size:36;not null;index"`
	UserName    string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName sets the table name for ModelRecord.
func (ModelRecord) TableName() string { return "models" }

// ModelVersionRecord is the persisted form of a model version.
//
// Number is assigned as max+1 per model inside the creating transaction;
// the (model_id, number) unique index turns a concurrent double
// assignment into a conflict the store retries. Names are likewise unique
// per model. The stage column is additionally guarded by a partial unique
// index on (model_id, stage) that excludes the empty and archived stages,
// so a racing forced reassignment surfaces as a conflict instead of two
// occupants.
type ModelVersionRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	ModelID     string `gorm:"size:36;not null;index;uniqueIndex:uq_version_number,priority:1;uniqueIndex:uq_version_name,priority:1"`
	Number      int    `gorm:"not null;uniqueIndex:uq_version_number,priority:2"`
	Name        string `gorm:"size:255;not null;uniqueIndex:uq_version_name,priority:2"`
	Stage       string `gorm:"size:32;not null;default:''"`
	Description string
	UserID      string `gorm:"size:36;not null;index"`
	UserName    string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName sets the table name for ModelVersionRecord.
func (ModelVersionRecord) TableName() string { return "model_versions" }

// ArtifactLinkRecord joins a model version to an artifact. At most one
// link exists per (model_version, artifact) pair; repeated link requests
// return the existing record.
type ArtifactLinkRecord struct {
	ID                   string `gorm:"primaryKey;size:36"`
	ModelVersionID       string `gorm:"size:36;not null;index;uniqueIndex:uq_version_artifact,priority:1"`
	ArtifactID           string `gorm:"size:36;not null;uniqueIndex:uq_version_artifact,priority:2"`
	IsModelArtifact      bool   `gorm:"not null;default:false"`
	IsDeploymentArtifact bool   `gorm:"not null;default:false"`
	CreatedAt            time.Time
}

// TableName sets the table name for ArtifactLinkRecord.
func (ArtifactLinkRecord) TableName() string { return "model_version_artifact_links" }

// RunLinkRecord joins a model version to a pipeline run, with the same
// one-link-per-pair semantics as artifact links.
type RunLinkRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	ModelVersionID string `gorm:"size:36;not null;index;uniqueIndex:uq_version_run,priority:1"`
	RunID          string `gorm:"size:36;not null;uniqueIndex:uq_version_run,priority:2"`
	CreatedAt      time.Time
}

// TableName sets the table name for RunLinkRecord.
func (RunLinkRecord) TableName() string { return "model_version_run_links" }

// ToResponse converts the model record to its API response model.
func (r *ModelRecord) ToResponse(workspace *apimodels.WorkspaceResponse, latest *apimodels.ModelVersionResponse) (*apimodels.ModelResponse, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("model %q has invalid ID: %w", r.Name, err)
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("model %q has invalid owner ID: %w", r.Name, err)
	}

	return &apimodels.ModelResponse{
		BaseResponse: apimodels.BaseResponse{
			ID:      id,
			Created: r.CreatedAt,
			Updated: r.UpdatedAt,
		},
		Name:          r.Name,
		License:       r.License,
		Description:   r.Description,
		User:          &apimodels.UserRef{ID: userID, Name: r.UserName},
		Workspace:     workspace,
		LatestVersion: latest,
	}, nil
}

// ToResponse converts the version record to its API response model.
func (r *ModelVersionRecord) ToResponse(workspace *apimodels.WorkspaceResponse, model *apimodels.ModelResponse) (*apimodels.ModelVersionResponse, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("model version %q has invalid ID: %w", r.Name, err)
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("model version %q has invalid owner ID: %w", r.Name, err)
	}

	return &apimodels.ModelVersionResponse{
		BaseResponse: apimodels.BaseResponse{
			ID:      id,
			Created: r.CreatedAt,
			Updated: r.UpdatedAt,
		},
		Name:        r.Name,
		Number:      r.Number,
		Stage:       apimodels.Stage(r.Stage),
		Description: r.Description,
		User:        &apimodels.UserRef{ID: userID, Name: r.UserName},
		Workspace:   workspace,
		Model:       model,
	}, nil
}
