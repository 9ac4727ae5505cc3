package secrets

import (
	"encoding/json"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// newTestStore creates a SecretStore on an in-memory SQLite DB.
func newTestStore(t *testing.T) *SecretStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	store := NewSecretStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

// The values map backs onto a plain text column; the migrator must be
// able to derive that type, and the JSON codec must round-trip awkward
// content.
func TestSecretStore_ValuesColumn(t *testing.T) {
	store := newTestStore(t)
	workspace := uuid.New()
	user := uuid.New()

	created, err := store.Create(CreateSecretRequest{
		Name:        "db",
		Scope:       apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace,
		UserID:      user,
		Values:      map[string]string{"password": `with "quotes", commas`},
	})
	require.NoError(t, err)

	var raw string
	require.NoError(t, store.db.Model(&SecretRecord{}).
		Where("id = ?", created.ID).
		Pluck("values", &raw).Error)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, `with "quotes", commas`, decoded["password"])

	empty, err := store.Create(CreateSecretRequest{
		Name:        "empty",
		Scope:       apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace,
		UserID:      user,
	})
	require.NoError(t, err)
	got, err := store.Get(uuid.MustParse(empty.ID))
	require.NoError(t, err)
	assert.Nil(t, got.Values)
}

func TestSecretStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	workspace := uuid.New()
	user := uuid.New()

	created, err := store.Create(CreateSecretRequest{
		Name:        "aws",
		Scope:       apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace,
		UserID:      user,
		UserName:    "alice",
		Values:      map[string]string{"key": "AKIA...", "secret": "abc"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.Get(uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Equal(t, "aws", got.Name)
	assert.Equal(t, "AKIA...", got.Values["key"])
	assert.Equal(t, "", got.SlotOwner)

	err = store.Delete(uuid.MustParse(created.ID))
	require.NoError(t, err)

	_, err = store.Get(uuid.MustParse(created.ID))
	assert.ErrorIs(t, err, ErrSecretNotFound)

	err = store.Delete(uuid.MustParse(created.ID))
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

// A workspace secret and per-user private secrets may share one name
// without colliding; a second secret in an occupied slot is rejected.
func TestSecretStore_SlotIndependence(t *testing.T) {
	store := newTestStore(t)
	workspace := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	_, err := store.Create(CreateSecretRequest{
		Name: "aws", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace, UserID: alice,
	})
	require.NoError(t, err)

	_, err = store.Create(CreateSecretRequest{
		Name: "aws", Scope: apimodels.SecretScopeUser,
		WorkspaceID: workspace, UserID: alice,
	})
	require.NoError(t, err, "private slot is independent of the workspace slot")

	_, err = store.Create(CreateSecretRequest{
		Name: "aws", Scope: apimodels.SecretScopeUser,
		WorkspaceID: workspace, UserID: bob,
	})
	require.NoError(t, err, "each user has their own private slot")

	_, err = store.Create(CreateSecretRequest{
		Name: "aws", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace, UserID: bob,
	})
	assert.ErrorIs(t, err, ErrSecretExists, "workspace slot is already taken")

	_, err = store.Create(CreateSecretRequest{
		Name: "aws", Scope: apimodels.SecretScopeUser,
		WorkspaceID: workspace, UserID: alice,
	})
	assert.ErrorIs(t, err, ErrSecretExists, "alice's private slot is already taken")

	otherWorkspace := uuid.New()
	_, err = store.Create(CreateSecretRequest{
		Name: "aws", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: otherWorkspace, UserID: bob,
	})
	assert.NoError(t, err, "slots are per workspace")
}

func TestSecretStore_UpdateValues(t *testing.T) {
	store := newTestStore(t)
	created, err := store.Create(CreateSecretRequest{
		Name: "db", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: uuid.New(), UserID: uuid.New(),
		Values: map[string]string{"host": "old", "password": "hunter2"},
	})
	require.NoError(t, err)

	newHost := "db.internal"
	updated, err := store.Update(uuid.MustParse(created.ID), UpdateSecretRequest{
		Values: map[string]*string{
			"host":     &newHost,
			"password": nil,
			"port":     ptr("5432"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "db.internal", updated.Values["host"])
	assert.Equal(t, "5432", updated.Values["port"])
	_, hasPassword := updated.Values["password"]
	assert.False(t, hasPassword, "nil value removes the key")
}

func TestSecretStore_RenameIntoOccupiedSlot(t *testing.T) {
	store := newTestStore(t)
	workspace := uuid.New()
	user := uuid.New()

	_, err := store.Create(CreateSecretRequest{
		Name: "first", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace, UserID: user,
	})
	require.NoError(t, err)
	second, err := store.Create(CreateSecretRequest{
		Name: "second", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace, UserID: user,
	})
	require.NoError(t, err)

	_, err = store.Update(uuid.MustParse(second.ID), UpdateSecretRequest{Name: ptr("first")})
	assert.ErrorIs(t, err, ErrSecretExists)

	// The failed rename must not have corrupted the record.
	got, err := store.Get(uuid.MustParse(second.ID))
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
}

func TestSecretStore_RescopeMovesSlot(t *testing.T) {
	store := newTestStore(t)
	workspace := uuid.New()
	user := uuid.New()

	created, err := store.Create(CreateSecretRequest{
		Name: "token", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace, UserID: user,
	})
	require.NoError(t, err)

	userScope := apimodels.SecretScopeUser
	updated, err := store.Update(uuid.MustParse(created.ID), UpdateSecretRequest{Scope: &userScope})
	require.NoError(t, err)
	assert.Equal(t, string(apimodels.SecretScopeUser), updated.Scope)
	assert.Equal(t, user.String(), updated.SlotOwner)

	// The workspace slot is free again.
	_, err = store.Create(CreateSecretRequest{
		Name: "token", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: workspace, UserID: user,
	})
	assert.NoError(t, err)

	// Moving back now collides.
	workspaceScope := apimodels.SecretScopeWorkspace
	_, err = store.Update(uuid.MustParse(created.ID), UpdateSecretRequest{Scope: &workspaceScope})
	assert.ErrorIs(t, err, ErrSecretExists)
}

func TestSecretStore_ListVisibility(t *testing.T) {
	store := newTestStore(t)
	workspace := uuid.New()
	otherWorkspace := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	mustCreate := func(name string, scope apimodels.SecretScope, ws, user uuid.UUID) {
		t.Helper()
		_, err := store.Create(CreateSecretRequest{Name: name, Scope: scope, WorkspaceID: ws, UserID: user})
		require.NoError(t, err)
	}

	mustCreate("shared", apimodels.SecretScopeWorkspace, workspace, bob)
	mustCreate("alice-private", apimodels.SecretScopeUser, workspace, alice)
	mustCreate("bob-private", apimodels.SecretScopeUser, workspace, bob)
	mustCreate("elsewhere", apimodels.SecretScopeWorkspace, otherWorkspace, bob)

	records, err := store.List(ListFilter{}, alice, []uuid.UUID{workspace})
	require.NoError(t, err)

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"shared", "alice-private"}, names,
		"other users' private secrets and foreign workspaces stay invisible")

	// Name filter narrows within the visible set only.
	records, err = store.List(ListFilter{Name: "bob-private"}, alice, []uuid.UUID{workspace})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSecretStore_PurgeUserSecrets(t *testing.T) {
	store := newTestStore(t)
	workspace := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	_, err := store.Create(CreateSecretRequest{
		Name: "shared", Scope: apimodels.SecretScopeWorkspace, WorkspaceID: workspace, UserID: alice,
	})
	require.NoError(t, err)
	_, err = store.Create(CreateSecretRequest{
		Name: "private", Scope: apimodels.SecretScopeUser, WorkspaceID: workspace, UserID: alice,
	})
	require.NoError(t, err)
	kept, err := store.Create(CreateSecretRequest{
		Name: "bobs", Scope: apimodels.SecretScopeUser, WorkspaceID: workspace, UserID: bob,
	})
	require.NoError(t, err)

	purged, err := store.PurgeUserSecrets(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged, "workspace-scoped secrets owned by the user go too")

	_, err = store.Get(uuid.MustParse(kept.ID))
	assert.NoError(t, err)
}

func TestSecretResponse_Masked(t *testing.T) {
	store := newTestStore(t)
	created, err := store.Create(CreateSecretRequest{
		Name: "db", Scope: apimodels.SecretScopeWorkspace,
		WorkspaceID: uuid.New(), UserID: uuid.New(),
		Values: map[string]string{"password": "hunter2"},
	})
	require.NoError(t, err)

	resp, err := created.ToResponse(nil)
	require.NoError(t, err)
	masked := resp.Masked()
	assert.Equal(t, "***", masked.Values["password"])
	assert.Equal(t, "hunter2", resp.Values["password"], "masking copies, never mutates")
}

func ptr[T any](v T) *T { return &v }
