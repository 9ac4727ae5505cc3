package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

func TestHeaderExtractor(t *testing.T) {
	userID := uuid.New()
	ws1, ws2 := uuid.New(), uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUser, userID.String())
	req.Header.Set(HeaderUserName, "alice")
	req.Header.Set(HeaderWorkspaces, ws1.String()+", "+ws2.String())
	req.Header.Set(HeaderPermissions, "secret:read, model:write")

	ac, err := HeaderExtractor(req)
	require.NoError(t, err)
	assert.Equal(t, userID, ac.User.ID)
	assert.Equal(t, "alice", ac.User.Name)
	assert.Equal(t, []uuid.UUID{ws1, ws2}, ac.WorkspaceIDs)
	assert.Equal(t, []string{"secret:read", "model:write"}, ac.Permissions)
	assert.True(t, ac.HasPermission("secret:read"))
	assert.False(t, ac.HasPermission("secret:write"))
}

func TestHeaderExtractor_NoPermissionsHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUser, uuid.NewString())

	ac, err := HeaderExtractor(req)
	require.NoError(t, err)
	assert.Nil(t, ac.Permissions)
	assert.False(t, ac.HasPermission("secret:read"))
}

func TestHeaderExtractor_Errors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := HeaderExtractor(req)
	assert.Error(t, err, "missing user header")

	req.Header.Set(HeaderUser, "not-a-uuid")
	_, err = HeaderExtractor(req)
	assert.Error(t, err)

	req.Header.Set(HeaderUser, uuid.NewString())
	req.Header.Set(HeaderWorkspaces, "not-a-uuid")
	_, err = HeaderExtractor(req)
	assert.Error(t, err)
}

func TestJWTExtractor_Claims(t *testing.T) {
	userID := uuid.New()
	ws := uuid.New()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                userID.String(),
		"preferred_username": "alice",
		"workspaces":         []string{ws.String()},
		"permissions":        []string{"secret:read", "model:write"},
	})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)

	// No public key configured: trusted proxy mode, claims parsed only.
	extract, err := NewJWTExtractor(JWTExtractorConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	ac, err := extract(req)
	require.NoError(t, err)
	assert.Equal(t, userID, ac.User.ID)
	assert.Equal(t, "alice", ac.User.Name)
	assert.Equal(t, []uuid.UUID{ws}, ac.WorkspaceIDs)
	assert.Equal(t, []string{"secret:read", "model:write"}, ac.Permissions)
}

func TestMiddleware(t *testing.T) {
	userID := uuid.New()
	var seen Context

	handler := Middleware(HeaderExtractor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MustFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUser, userID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, seen.User.ID)
}

func TestMiddleware_RejectsUnauthenticated(t *testing.T) {
	called := false
	handler := Middleware(HeaderExtractor)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called, "rejected requests never reach the handler")
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Panics(t, func() { MustFromContext(ctx) })

	stored := Context{User: apimodels.UserRef{ID: uuid.New(), Name: "alice"}}
	ctx = WithContext(ctx, stored)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, stored, got)
	assert.Equal(t, stored, MustFromContext(ctx))
}
