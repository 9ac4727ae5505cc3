package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mlfoundry/metastore/pkg/apimodels"
	"github.com/mlfoundry/metastore/pkg/auth"
	"github.com/mlfoundry/metastore/pkg/rbac"
	"github.com/mlfoundry/metastore/pkg/registry"
	"github.com/mlfoundry/metastore/pkg/secrets"
)

// denyingAuthorizer denies everything except the listed resources.
type denyingAuthorizer struct {
	allow map[rbac.Resource]bool
}

func (d *denyingAuthorizer) CheckPermissions(_ context.Context, _ apimodels.UserRef, resources []rbac.Resource, _ rbac.Action) (map[rbac.Resource]bool, error) {
	verdicts := make(map[rbac.Resource]bool, len(resources))
	for _, r := range resources {
		verdicts[r] = d.allow[r]
	}
	return verdicts, nil
}

func (d *denyingAuthorizer) ListAllowedResourceIDs(context.Context, apimodels.UserRef, rbac.ResourceType, rbac.Action) (bool, []uuid.UUID, error) {
	return false, nil, nil
}

type testEnv struct {
	srv     *httptest.Server
	engine  *rbac.Engine
	userID  uuid.UUID
	wsID    uuid.UUID
	client  *http.Client
	baseURL string
}

// newTestEnv spins up the full router on an in-memory database. RBAC
// starts disabled; tests flip it on to exercise enforcement.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	secretStore := secrets.NewSecretStore(db)
	require.NoError(t, secretStore.AutoMigrate())
	modelStore := registry.NewModelStore(db)
	require.NoError(t, modelStore.AutoMigrate())

	engine := rbac.NewEngine(&denyingAuthorizer{}, rbac.DefaultConfig(), nil)
	server := New(engine, secretStore, modelStore, nil)
	ts := httptest.NewServer(server.Router(auth.HeaderExtractor))
	t.Cleanup(ts.Close)

	return &testEnv{
		srv:     ts,
		engine:  engine,
		userID:  uuid.New(),
		wsID:    uuid.New(),
		client:  ts.Client(),
		baseURL: ts.URL,
	}
}

// do sends an authenticated JSON request and decodes the response into
// out when non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderUser, e.userID.String())
	req.Header.Set(auth.HeaderUserName, "alice")
	req.Header.Set(auth.HeaderWorkspaces, e.wsID.String())

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.Get(env.baseURL + "/api/v1/secrets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = env.client.Get(env.baseURL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health endpoints stay open")
}

func TestAPI_SecretLifecycle(t *testing.T) {
	env := newTestEnv(t)

	var created apimodels.SecretResponse
	resp := env.do(t, http.MethodPost, "/api/v1/secrets", map[string]any{
		"name":         "aws",
		"scope":        "workspace",
		"workspace_id": env.wsID.String(),
		"values":       map[string]string{"key": "AKIA"},
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "aws", created.Name)

	// Same slot again conflicts.
	resp = env.do(t, http.MethodPost, "/api/v1/secrets", map[string]any{
		"name":         "aws",
		"scope":        "workspace",
		"workspace_id": env.wsID.String(),
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The private slot stays free.
	resp = env.do(t, http.MethodPost, "/api/v1/secrets", map[string]any{
		"name":         "aws",
		"scope":        "user",
		"workspace_id": env.wsID.String(),
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var got apimodels.SecretResponse
	resp = env.do(t, http.MethodGet, "/api/v1/secrets/"+created.ID.String(), nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "AKIA", got.Values["key"])

	// Listings mask values.
	var page apimodels.Page[*apimodels.SecretResponse]
	resp = env.do(t, http.MethodGet, "/api/v1/secrets", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, page.Items, 2)
	for _, item := range page.Items {
		for _, v := range item.Values {
			assert.Equal(t, "***", v)
		}
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/secrets/"+created.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/secrets/"+created.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_SecretUpdate(t *testing.T) {
	env := newTestEnv(t)

	var created apimodels.SecretResponse
	env.do(t, http.MethodPost, "/api/v1/secrets", map[string]any{
		"name":         "db",
		"workspace_id": env.wsID.String(),
		"values":       map[string]string{"password": "old", "host": "h"},
	}, &created)

	var updated apimodels.SecretResponse
	resp := env.do(t, http.MethodPatch, "/api/v1/secrets/"+created.ID.String(), map[string]any{
		"values": map[string]any{"password": "new", "host": nil},
	}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "new", updated.Values["password"])
	_, hasHost := updated.Values["host"]
	assert.False(t, hasHost)
}

func TestAPI_PermissionDenied(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetEnabled(true)

	resp := env.do(t, http.MethodPost, "/api/v1/secrets", map[string]any{
		"name":         "blocked",
		"workspace_id": env.wsID.String(),
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var errBody struct {
		Error string `json:"error"`
	}
	resp = env.do(t, http.MethodPost, "/api/v1/models", map[string]any{
		"name":         "m",
		"workspace_id": env.wsID.String(),
	}, &errBody)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission_denied", errBody.Error)
}

func TestAPI_ModelAndVersionFlow(t *testing.T) {
	env := newTestEnv(t)

	var model apimodels.ModelResponse
	resp := env.do(t, http.MethodPost, "/api/v1/models", map[string]any{
		"name":         "churn",
		"workspace_id": env.wsID.String(),
		"license":      "apache-2.0",
	}, &model)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var v1, v2 apimodels.ModelVersionResponse
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/models/%s/versions", model.ID), map[string]any{}, &v1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, v1.Number)
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/models/%s/versions", model.ID), map[string]any{"name": "rc1"}, &v2)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, v2.Number)

	var page apimodels.Page[*apimodels.ModelVersionResponse]
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/models/%s/versions", model.ID), nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, page.Items, 2)

	resp = env.do(t, http.MethodDelete, "/api/v1/models/"+model.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/v1/model_versions/"+v1.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_StagePromotion(t *testing.T) {
	env := newTestEnv(t)

	var model apimodels.ModelResponse
	env.do(t, http.MethodPost, "/api/v1/models", map[string]any{
		"name": "m", "workspace_id": env.wsID.String(),
	}, &model)

	var v1, v2 apimodels.ModelVersionResponse
	env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/models/%s/versions", model.ID), map[string]any{}, &v1)
	env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/models/%s/versions", model.ID), map[string]any{}, &v2)

	var promoted apimodels.ModelVersionResponse
	resp := env.do(t, http.MethodPut, "/api/v1/model_versions/"+v1.ID.String()+"/stage", map[string]any{
		"stage": "production",
	}, &promoted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, apimodels.StageProduction, promoted.Stage)

	// Occupied without force: 409 naming the occupant.
	var conflict errorResponse
	resp = env.do(t, http.MethodPut, "/api/v1/model_versions/"+v2.ID.String()+"/stage", map[string]any{
		"stage": "production",
	}, &conflict)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "stage_occupied", conflict.Error)
	assert.Equal(t, v1.ID.String(), conflict.OccupantID)

	// With force the occupant is archived.
	resp = env.do(t, http.MethodPut, "/api/v1/model_versions/"+v2.ID.String()+"/stage", map[string]any{
		"stage": "production", "force": true,
	}, &promoted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, apimodels.StageProduction, promoted.Stage)

	var archived apimodels.ModelVersionResponse
	resp = env.do(t, http.MethodGet, "/api/v1/model_versions/"+v1.ID.String(), nil, &archived)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, apimodels.StageArchived, archived.Stage)

	resp = env.do(t, http.MethodPut, "/api/v1/model_versions/"+v2.ID.String()+"/stage", map[string]any{
		"stage": "canary",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ArtifactLinks(t *testing.T) {
	env := newTestEnv(t)

	var model apimodels.ModelResponse
	env.do(t, http.MethodPost, "/api/v1/models", map[string]any{
		"name": "m", "workspace_id": env.wsID.String(),
	}, &model)
	var version apimodels.ModelVersionResponse
	env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/models/%s/versions", model.ID), map[string]any{}, &version)

	artifactID := uuid.New()
	var first, second registry.ArtifactLinkRecord
	resp := env.do(t, http.MethodPost, "/api/v1/model_versions/"+version.ID.String()+"/artifacts", map[string]any{
		"artifact_id": artifactID.String(), "is_model_artifact": true,
	}, &first)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/model_versions/"+version.ID.String()+"/artifacts", map[string]any{
		"artifact_id": artifactID.String(),
	}, &second)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, first.ID, second.ID, "relinking the same artifact is idempotent")

	var links []registry.ArtifactLinkRecord
	resp = env.do(t, http.MethodGet, "/api/v1/model_versions/"+version.ID.String()+"/artifacts", nil, &links)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, links, 1)
}

func TestAPI_PurgeUserSecrets(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/secrets", map[string]any{
		"name": "one", "workspace_id": env.wsID.String(),
	}, nil)
	env.do(t, http.MethodPost, "/api/v1/secrets", map[string]any{
		"name": "two", "scope": "user", "workspace_id": env.wsID.String(),
	}, nil)

	var result map[string]int64
	resp := env.do(t, http.MethodDelete, "/api/v1/users/"+env.userID.String()+"/secrets", nil, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), result["purged"])
}
