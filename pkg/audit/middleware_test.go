package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlfoundry/metastore/pkg/apimodels"
	"github.com/mlfoundry/metastore/pkg/auth"
)

func serveAudited(t *testing.T, store *EventStore, cfg *Config, method, path string, status int, identified bool) {
	t.Helper()

	handler := Middleware(store, cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(method, path, nil)
	if identified {
		ctx := auth.WithContext(context.Background(), auth.Context{
			User: apimodels.UserRef{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Name: "alice"},
		})
		req = req.WithContext(ctx)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestMiddleware_RecordsMutations(t *testing.T) {
	store := newTestStore(t)
	cfg := DefaultConfig()

	secretID := uuid.New().String()
	serveAudited(t, store, cfg, http.MethodPost, "/api/v1/secrets", http.StatusCreated, true)
	serveAudited(t, store, cfg, http.MethodDelete, "/api/v1/secrets/"+secretID, http.StatusNoContent, true)
	serveAudited(t, store, cfg, http.MethodGet, "/api/v1/secrets", http.StatusOK, true)

	events, err := store.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2, "reads are not recorded")

	assert.Equal(t, "delete", events[0].Action)
	assert.Equal(t, "secret", events[0].ResourceType)
	assert.Equal(t, secretID, events[0].ResourceID)
	assert.Equal(t, OutcomeSuccess, events[0].Outcome)
	assert.Equal(t, "alice", events[0].ActorName)

	assert.Equal(t, "create", events[1].Action)
	assert.Empty(t, events[1].ResourceID)
}

func TestMiddleware_Verbs(t *testing.T) {
	store := newTestStore(t)
	cfg := DefaultConfig()
	id := uuid.New().String()

	serveAudited(t, store, cfg, http.MethodPut, "/api/v1/model_versions/"+id+"/stage", http.StatusOK, true)
	serveAudited(t, store, cfg, http.MethodPost, "/api/v1/model_versions/"+id+"/artifacts", http.StatusCreated, true)
	serveAudited(t, store, cfg, http.MethodPost, "/api/v1/models/"+id+"/versions", http.StatusCreated, true)
	serveAudited(t, store, cfg, http.MethodDelete, "/api/v1/users/"+id+"/secrets", http.StatusOK, true)

	events, err := store.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 4)

	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.ElementsMatch(t, []string{"promote", "link", "create_version", "purge"}, actions)
}

func TestMiddleware_DeniedFiltering(t *testing.T) {
	store := newTestStore(t)

	cfg := DefaultConfig()
	cfg.LogDenied = false
	serveAudited(t, store, cfg, http.MethodPost, "/api/v1/secrets", http.StatusForbidden, true)

	events, err := store.List(ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)

	cfg.LogDenied = true
	serveAudited(t, store, cfg, http.MethodPost, "/api/v1/secrets", http.StatusForbidden, true)

	events, err = store.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, OutcomeDenied, events[0].Outcome)
}

func TestMiddleware_Disabled(t *testing.T) {
	store := newTestStore(t)
	cfg := DefaultConfig()
	cfg.Enabled = false

	serveAudited(t, store, cfg, http.MethodPost, "/api/v1/secrets", http.StatusCreated, true)

	events, err := store.List(ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMiddleware_AnonymousActor(t *testing.T) {
	store := newTestStore(t)

	serveAudited(t, store, DefaultConfig(), http.MethodPost, "/api/v1/secrets", http.StatusCreated, false)

	events, err := store.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "anonymous", events[0].Actor)
}
