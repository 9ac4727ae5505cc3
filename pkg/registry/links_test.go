package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkArtifact_Idempotent(t *testing.T) {
	store := newTestStore(t)
	_, versions := setupModelWithVersions(t, store, 1)
	artifactID := uuid.New()

	first, err := store.LinkArtifact(LinkArtifactRequest{
		VersionID:       versions[0],
		ArtifactID:      artifactID,
		IsModelArtifact: true,
	})
	require.NoError(t, err)

	second, err := store.LinkArtifact(LinkArtifactRequest{
		VersionID:  versions[0],
		ArtifactID: artifactID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "relinking the same pair returns the existing link")
	assert.True(t, second.IsModelArtifact, "role flags of the existing link are kept")

	links, err := store.ListArtifactLinks(versions[0])
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestLinkArtifact_MissingVersion(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LinkArtifact(LinkArtifactRequest{VersionID: uuid.New(), ArtifactID: uuid.New()})
	assert.ErrorIs(t, err, ErrModelVersionNotFound)
}

func TestUnlinkArtifact(t *testing.T) {
	store := newTestStore(t)
	_, versions := setupModelWithVersions(t, store, 1)
	artifactID := uuid.New()

	_, err := store.LinkArtifact(LinkArtifactRequest{VersionID: versions[0], ArtifactID: artifactID})
	require.NoError(t, err)

	require.NoError(t, store.UnlinkArtifact(versions[0], artifactID))
	err = store.UnlinkArtifact(versions[0], artifactID)
	assert.ErrorIs(t, err, ErrModelVersionNotFound)

	links, err := store.ListArtifactLinks(versions[0])
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestLinkRun_Idempotent(t *testing.T) {
	store := newTestStore(t)
	_, versions := setupModelWithVersions(t, store, 1)
	runID := uuid.New()

	first, err := store.LinkRun(versions[0], runID)
	require.NoError(t, err)
	second, err := store.LinkRun(versions[0], runID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	otherRun := uuid.New()
	third, err := store.LinkRun(versions[0], otherRun)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	links, err := store.ListRunLinks(versions[0])
	require.NoError(t, err)
	assert.Len(t, links, 2)
}
