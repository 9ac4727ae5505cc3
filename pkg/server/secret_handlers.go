package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
	"github.com/mlfoundry/metastore/pkg/auth"
	"github.com/mlfoundry/metastore/pkg/rbac"
	"github.com/mlfoundry/metastore/pkg/secrets"
)

// createSecretBody is the request body for secret creation.
type createSecretBody struct {
	Name        string            `json:"name"`
	Scope       string            `json:"scope"`
	WorkspaceID string            `json:"workspace_id"`
	Values      map[string]string `json:"values"`
}

func (s *Server) createSecretHandler(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	var body createSecretBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	scope := apimodels.SecretScope(body.Scope)
	if scope == "" {
		scope = apimodels.SecretScopeWorkspace
	}
	if scope != apimodels.SecretScopeWorkspace && scope != apimodels.SecretScopeUser {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown scope %q", body.Scope))
		return
	}
	workspaceID, err := uuid.Parse(body.WorkspaceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "workspace_id must be a UUID")
		return
	}

	if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeSecret}, rbac.ActionCreate); err != nil {
		s.writeStoreError(w, err)
		return
	}

	record, err := s.secrets.Create(secrets.CreateSecretRequest{
		Name:        body.Name,
		Scope:       scope,
		WorkspaceID: workspaceID,
		UserID:      ac.User.ID,
		UserName:    ac.User.Name,
		Values:      body.Values,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp, err := record.ToResponse(workspaceRef(record.WorkspaceID))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getSecretHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	record, err := s.secrets.Get(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp, err := record.ToResponse(workspaceRef(record.WorkspaceID))
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

// updateSecretBody is the request body for secret updates. Absent fields
// are left unchanged; a null value entry removes that key.
type updateSecretBody struct {
	Name   *string            `json:"name"`
	Scope  *string            `json:"scope"`
	Values map[string]*string `json:"values"`
}

func (s *Server) updateSecretHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var body updateSecretBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	req := secrets.UpdateSecretRequest{Name: body.Name, Values: body.Values}
	if body.Scope != nil {
		scope := apimodels.SecretScope(*body.Scope)
		if scope != apimodels.SecretScopeWorkspace && scope != apimodels.SecretScopeUser {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown scope %q", *body.Scope))
			return
		}
		req.Scope = &scope
	}

	if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeSecret, ID: id}, rbac.ActionUpdate); err != nil {
		s.writeStoreError(w, err)
		return
	}

	record, err := s.secrets.Update(id, req)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp, err := record.ToResponse(workspaceRef(record.WorkspaceID))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteSecretHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeSecret, ID: id}, rbac.ActionDelete); err != nil {
		s.writeStoreError(w, err)
		return
	}

	if err := s.secrets.Delete(id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listSecretsHandler lists the secrets visible to the caller. Values are
// masked in listings; fetch the secret by ID to read them. The list query
// is scoped up front to the IDs the caller may read, then the page is
// dehydrated in one batched permission check.
func (s *Server) listSecretsHandler(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	filter := secrets.ListFilter{Name: r.URL.Query().Get("name")}
	if raw := r.URL.Query().Get("scope"); raw != "" {
		scope := apimodels.SecretScope(raw)
		if scope != apimodels.SecretScopeWorkspace && scope != apimodels.SecretScopeUser {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown scope %q", raw))
			return
		}
		filter.Scope = &scope
	}
	if raw := r.URL.Query().Get("workspace_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "workspace_id must be a UUID")
			return
		}
		filter.WorkspaceID = &id
	}

	full, allowedIDs, err := s.engine.AllowedResourceIDs(r.Context(), rbac.ResourceTypeSecret, rbac.ActionRead)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	records, err := s.secrets.List(filter, ac.User.ID, ac.WorkspaceIDs)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	items := make([]*apimodels.SecretResponse, 0, len(records))
	for i := range records {
		record := &records[i]
		if !full && record.UserID != ac.User.ID.String() {
			id, err := uuid.Parse(record.ID)
			if err != nil || !slices.Contains(allowedIDs, id) {
				continue
			}
		}
		resp, err := record.ToResponse(workspaceRef(record.WorkspaceID))
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		items = append(items, resp.Masked())
	}

	page := apimodels.Page[*apimodels.SecretResponse]{
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

// purgeUserSecretsHandler deletes every secret owned by a user, for
// account deprovisioning. Callers other than the user themselves need
// delete permission on the secret type.
func (s *Server) purgeUserSecretsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	ac := auth.MustFromContext(r.Context())
	if ac.User.ID != id {
		if err := s.engine.Verify(r.Context(), rbac.Resource{Type: rbac.ResourceTypeSecret}, rbac.ActionDelete); err != nil {
			s.writeStoreError(w, err)
			return
		}
	}

	purged, err := s.secrets.PurgeUserSecrets(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}

// parseIDParam parses the {id} URL parameter, answering 400 itself on
// failure.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// workspaceRef builds a workspace reference response from a stored
// workspace ID. The store keeps no workspace table of its own; name and
// description live upstream.
func workspaceRef(id string) *apimodels.WorkspaceResponse {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return &apimodels.WorkspaceResponse{BaseResponse: apimodels.BaseResponse{ID: parsed}}
}
