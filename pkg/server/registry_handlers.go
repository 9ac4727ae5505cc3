package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
	"github.com/mlfoundry/metastore/pkg/auth"
	"github.com/mlfoundry/metastore/pkg/rbac"
	"github.com/mlfoundry/metastore/pkg/registry"
)

type createModelBody struct {
	Name        string `json:"name"`
	WorkspaceID string `json:"workspace_id"`
	License     string `json:"license"`
	Description string `json:"description"`
}

func (s *Server) createModelHandler(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	var body createModelBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	workspaceID, err := uuid.Parse(body.WorkspaceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "workspace_id must be a UUID")
		return
	}

	if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeModel}, rbac.ActionCreate); err != nil {
		s.writeStoreError(w, err)
		return
	}

	record, err := s.registry.CreateModel(registry.CreateModelRequest{
		Name:        body.Name,
		WorkspaceID: workspaceID,
		UserID:      ac.User.ID,
		UserName:    ac.User.Name,
		License:     body.License,
		Description: body.Description,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp, err := record.ToResponse(workspaceRef(record.WorkspaceID), nil)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getModelHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	resp, err := s.loadModelResponse(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	dehydrated, err := s.engine.VerifyRead(r.Context(), resp)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dehydrated)
}

// loadModelResponse hydrates a model together with its production
// version, falling back to the staging occupant when no version is in
// production.
func (s *Server) loadModelResponse(id uuid.UUID) (*apimodels.ModelResponse, error) {
	record, err := s.registry.GetModel(id)
	if err != nil {
		return nil, err
	}

	var latest *apimodels.ModelVersionResponse
	for _, stage := range []apimodels.Stage{apimodels.StageProduction, apimodels.StageStaging} {
		occupant, err := s.registry.StageOccupant(id, stage)
		if err == nil {
			latest, err = occupant.ToResponse(workspaceRef(record.WorkspaceID), nil)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	return record.ToResponse(workspaceRef(record.WorkspaceID), latest)
}

func (s *Server) listModelsHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "workspace_id query parameter must be a UUID")
		return
	}

	ac := auth.MustFromContext(r.Context())

	full, allowedIDs, err := s.engine.AllowedResourceIDs(r.Context(), rbac.ResourceTypeModel, rbac.ActionRead)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	records, err := s.registry.ListModels(workspaceID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	items := make([]*apimodels.ModelResponse, 0, len(records))
	for i := range records {
		record := &records[i]
		if !full && record.UserID != ac.User.ID.String() {
			id, err := uuid.Parse(record.ID)
			if err != nil || !slices.Contains(allowedIDs, id) {
				continue
			}
		}
		resp, err := record.ToResponse(workspaceRef(record.WorkspaceID), nil)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		items = append(items, resp)
	}

	page := apimodels.Page[*apimodels.ModelResponse]{
		Index:      0,
		MaxSize:    len(items),
		TotalPages: 1,
		Total:      len(items),
		Items:      items,
	}
	page, err = rbac.DehydratePage(r.Context(), s.engine, page)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) deleteModelHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeModel, ID: id}, rbac.ActionDelete); err != nil {
		s.writeStoreError(w, err)
		return
	}

	if err := s.registry.DeleteModel(id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createVersionBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) createVersionHandler(w http.ResponseWriter, r *http.Request) {
	modelID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var body createVersionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeModel, ID: modelID}, rbac.ActionUpdate); err != nil {
		s.writeStoreError(w, err)
		return
	}

	ac := auth.MustFromContext(r.Context())
	record, err := s.registry.CreateVersion(registry.CreateVersionRequest{
		ModelID:     modelID,
		Name:        body.Name,
		Description: body.Description,
		UserID:      ac.User.ID,
		UserName:    ac.User.Name,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp, err := s.versionResponse(record)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) listVersionsHandler(w http.ResponseWriter, r *http.Request) {
	modelID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeModel, ID: modelID}, rbac.ActionRead); err != nil {
		s.writeStoreError(w, err)
		return
	}

	records, err := s.registry.ListVersions(modelID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	items := make([]*apimodels.ModelVersionResponse, 0, len(records))
	for i := range records {
		resp, err := s.versionResponse(&records[i])
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		items = append(items, resp)
	}

	page := apimodels.Page[*apimodels.ModelVersionResponse]{
		Index:      0,
		MaxSize:    len(items),
		TotalPages: 1,
		Total:      len(items),
		Items:      items,
	}
	page, err = rbac.DehydratePage(r.Context(), s.engine, page)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getVersionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	record, err := s.registry.GetVersion(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp, err := s.versionResponse(record)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	dehydrated, err := s.engine.VerifyRead(r.Context(), resp)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dehydrated)
}

// versionResponse hydrates a version with its parent model. The
// back-reference carries no LatestVersion, keeping the graph finite.
func (s *Server) versionResponse(record *registry.ModelVersionRecord) (*apimodels.ModelVersionResponse, error) {
	modelID, err := uuid.Parse(record.ModelID)
	if err != nil {
		return nil, fmt.Errorf("model version %s has invalid model ID: %w", record.ID, err)
	}
	model, err := s.registry.GetModel(modelID)
	if err != nil {
		return nil, err
	}
	modelResp, err := model.ToResponse(workspaceRef(model.WorkspaceID), nil)
	if err != nil {
		return nil, err
	}
	return record.ToResponse(workspaceRef(model.WorkspaceID), modelResp)
}

// setStageBody is the request body for a stage transition.
type setStageBody struct {
	Stage string  `json:"stage"`
	Force bool    `json:"force"`
	Name  *string `json:"name"`
}

// setStageHandler moves a model version to a new stage. Without force the
// transition fails with 409 when an exclusive stage is occupied; the
// response names the occupant so the client can confirm and retry with
// force, which archives it.
func (s *Server) setStageHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var body setStageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	stage := apimodels.Stage(body.Stage)
	if !apimodels.ValidStage(stage) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown stage %q", body.Stage))
		return
	}

	record, err := s.registry.GetVersion(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	modelID, err := uuid.Parse(record.ModelID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeModel, ID: modelID}, rbac.ActionUpdate); err != nil {
		s.writeStoreError(w, err)
		return
	}

	updated, err := s.registry.SetStage(registry.SetStageRequest{
		VersionID: id,
		Stage:     stage,
		Force:     body.Force,
		NewName:   body.Name,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp, err := s.versionResponse(updated)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type linkArtifactBody struct {
	ArtifactID           string `json:"artifact_id"`
	IsModelArtifact      bool   `json:"is_model_artifact"`
	IsDeploymentArtifact bool   `json:"is_deployment_artifact"`
}

// linkArtifactHandler attaches an artifact to a model version. Repeating
// the call for the same pair returns the existing link unchanged.
func (s *Server) linkArtifactHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var body linkArtifactBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	artifactID, err := uuid.Parse(body.ArtifactID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "artifact_id must be a UUID")
		return
	}

	if err := s.verifyVersionModel(r, id, rbac.ActionUpdate); err != nil {
		s.writeStoreError(w, err)
		return
	}

	link, err := s.registry.LinkArtifact(registry.LinkArtifactRequest{
		VersionID:            id,
		ArtifactID:           artifactID,
		IsModelArtifact:      body.IsModelArtifact,
		IsDeploymentArtifact: body.IsDeploymentArtifact,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (s *Server) listArtifactLinksHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := s.verifyVersionModel(r, id, rbac.ActionRead); err != nil {
		s.writeStoreError(w, err)
		return
	}

	links, err := s.registry.ListArtifactLinks(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

type linkRunBody struct {
	RunID string `json:"run_id"`
}

func (s *Server) linkRunHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var body linkRunBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	runID, err := uuid.Parse(body.RunID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "run_id must be a UUID")
		return
	}

	if err := s.verifyVersionModel(r, id, rbac.ActionUpdate); err != nil {
		s.writeStoreError(w, err)
		return
	}

	link, err := s.registry.LinkRun(id, runID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (s *Server) listRunLinksHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := s.verifyVersionModel(r, id, rbac.ActionRead); err != nil {
		s.writeStoreError(w, err)
		return
	}

	links, err := s.registry.ListRunLinks(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// verifyVersionModel checks the action against the version's parent
// model; versions carry no resource type of their own.
func (s *Server) verifyVersionModel(r *http.Request, versionID uuid.UUID, action rbac.Action) error {
	record, err := s.registry.GetVersion(versionID)
	if err != nil {
		return err
	}
	modelID, err := uuid.Parse(record.ModelID)
	if err != nil {
		return err
	}
	return s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeModel, ID: modelID}, action)
}
