package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagramdb/internal/models"
	"diagramdb/internal/storage"
	"diagramdb/internal/storage/storagetest"
)

func newTestStore(t *testing.T, userID string) storage.Store {
	t.Helper()
	store, err := Open(":memory:", userID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, newTestStore)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ", "u1")
	require.Error(t, err)
}

func TestOpen_DefaultsUserID(t *testing.T) {
	store, err := Open(":memory:", "")
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "local", store.userID)
}

func TestStore_FileBacked(t *testing.T) {
	path := t.TempDir() + "/diagrams.sqlite"

	store, err := Open(path, "u1")
	require.NoError(t, err)

	ctx := context.Background()
	diagram := &models.Diagram{ID: "d1", Name: "persisted", DatabaseType: "postgresql"}
	diagram.Prepare()
	require.NoError(t, store.AddDiagram(ctx, diagram))
	require.NoError(t, store.Close())

	// Data survives a reopen.
	store, err = Open(path, "u1")
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetDiagram(ctx, "d1", storage.ListOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "persisted", got.Name)
}
