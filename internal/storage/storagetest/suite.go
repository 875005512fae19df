// Package storagetest holds the behavioral contract every storage backend
// must pass. Backend test packages call Run with a factory for a fresh,
// empty store.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagramdb/internal/models"
	"diagramdb/internal/storage"
)

// Factory returns a fresh, empty store bound to the given user.
type Factory func(t *testing.T, userID string) storage.Store

// Run exercises the full Store contract against the backend under test.
func Run(t *testing.T, newStore Factory) {
	t.Run("AddAndGetDiagram", func(t *testing.T) { testAddAndGetDiagram(t, newStore) })
	t.Run("ListOrdering", func(t *testing.T) { testListOrdering(t, newStore) })
	t.Run("HydrationFlags", func(t *testing.T) { testHydrationFlags(t, newStore) })
	t.Run("GetMissReturnsNil", func(t *testing.T) { testGetMissReturnsNil(t, newStore) })
	t.Run("UpdateDiagramAttributes", func(t *testing.T) { testUpdateDiagramAttributes(t, newStore) })
	t.Run("RenameCascade", func(t *testing.T) { testRenameCascade(t, newStore) })
	t.Run("DeleteCascade", func(t *testing.T) { testDeleteCascade(t, newStore) })
	t.Run("ContentLifecycle", func(t *testing.T) { testContentLifecycle(t, newStore) })
	t.Run("ContentMergePatch", func(t *testing.T) { testContentMergePatch(t, newStore) })
	t.Run("PutContentUpserts", func(t *testing.T) { testPutContentUpserts(t, newStore) })
	t.Run("ConfigMerge", func(t *testing.T) { testConfigMerge(t, newStore) })
	t.Run("FilterUpsertAndDelete", func(t *testing.T) { testFilterUpsertAndDelete(t, newStore) })
}

// fullDiagram builds a diagram with every content kind populated. Sub-entity
// ids are derived from the diagram id: content tables key on the entity id
// alone, so two full diagrams must not share them.
func fullDiagram(id string) *models.Diagram {
	edition := "14"
	return &models.Diagram{
		ID:              id,
		Name:            "orders",
		DatabaseType:    "postgresql",
		DatabaseEdition: &edition,
		CreatedAt:       time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		Tables: []models.Snapshot{
			{"id": id + "-t1", "name": "users"},
			{"id": id + "-t2", "name": "orders"},
		},
		Relationships: []models.Snapshot{{"id": id + "-r1", "source": id + "-t2", "target": id + "-t1"}},
		Dependencies:  []models.Snapshot{{"id": id + "-dep1", "table": id + "-t2"}},
		Areas:         []models.Snapshot{{"id": id + "-a1", "name": "billing"}},
		CustomTypes:   []models.Snapshot{{"id": id + "-ct1", "name": "order_status"}},
	}
}

func testAddAndGetDiagram(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.AddDiagram(ctx, fullDiagram("d1")))

	got, err := store.GetDiagram(ctx, "d1", storage.ListOptions{
		IncludeTables:        true,
		IncludeRelationships: true,
		IncludeDependencies:  true,
		IncludeAreas:         true,
		IncludeCustomTypes:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "d1", got.ID)
	assert.Equal(t, "orders", got.Name)
	assert.Equal(t, "postgresql", got.DatabaseType)
	require.NotNil(t, got.DatabaseEdition)
	assert.Equal(t, "14", *got.DatabaseEdition)
	assert.Len(t, got.Tables, 2)
	assert.Len(t, got.Relationships, 1)
	assert.Len(t, got.Dependencies, 1)
	assert.Len(t, got.Areas, 1)
	assert.Len(t, got.CustomTypes, 1)
}

func testListOrdering(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	// The add itself stamps updated_at, so pin distinct times through the
	// update path.
	for _, id := range []string{"new", "old", "mid"} {
		d := &models.Diagram{
			ID:           id,
			Name:         id,
			DatabaseType: "mysql",
			CreatedAt:    base,
			UpdatedAt:    base,
		}
		require.NoError(t, store.AddDiagram(ctx, d))

		var touched time.Time
		switch id {
		case "old":
			touched = base
		case "mid":
			touched = base.Add(time.Hour)
		case "new":
			touched = base.Add(2 * time.Hour)
		}
		require.NoError(t, store.UpdateDiagram(ctx, id, storage.DiagramPatch{UpdatedAt: &touched}))
	}

	list, err := store.ListDiagrams(ctx, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Most recently updated first.
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
}

func testHydrationFlags(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.AddDiagram(ctx, fullDiagram("d1")))

	// Default: no sub-entities hydrated.
	got, err := store.GetDiagram(ctx, "d1", storage.ListOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Tables)
	assert.Nil(t, got.Relationships)
	assert.Nil(t, got.Areas)

	// Flags are independent.
	got, err = store.GetDiagram(ctx, "d1", storage.ListOptions{IncludeTables: true})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Tables, 2)
	assert.Nil(t, got.Relationships)
}

func testGetMissReturnsNil(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	got, err := store.GetDiagram(ctx, "no-such-id", storage.ListOptions{})
	require.NoError(t, err)
	assert.Nil(t, got)

	entity, err := store.GetContent(ctx, storage.KindTable, "no-diagram", "no-id")
	require.NoError(t, err)
	assert.Nil(t, entity)

	cfg, err := store.GetConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	filter, err := store.GetDiagramFilter(ctx, "no-diagram")
	require.NoError(t, err)
	assert.Nil(t, filter)
}

func testUpdateDiagramAttributes(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.AddDiagram(ctx, fullDiagram("d1")))

	name := "renamed"
	touched := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateDiagram(ctx, "d1", storage.DiagramPatch{
		Name:      &name,
		UpdatedAt: &touched,
	}))

	got, err := store.GetDiagram(ctx, "d1", storage.ListOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, "postgresql", got.DatabaseType)
	assert.True(t, got.UpdatedAt.Equal(touched))
	require.NotNil(t, got.DatabaseEdition)

	// Clearing the edition is distinct from leaving it untouched.
	require.NoError(t, store.UpdateDiagram(ctx, "d1", storage.DiagramPatch{
		ClearDatabaseEdition: true,
	}))
	got, err = store.GetDiagram(ctx, "d1", storage.ListOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.DatabaseEdition)
}

func testRenameCascade(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.AddDiagram(ctx, fullDiagram("before")))
	require.NoError(t, store.UpdateDiagramFilter(ctx, "before", models.Snapshot{"hidden": []any{"t2"}}))

	next := "after"
	require.NoError(t, store.UpdateDiagram(ctx, "before", storage.DiagramPatch{ID: &next}))

	gone, err := store.GetDiagram(ctx, "before", storage.ListOptions{})
	require.NoError(t, err)
	assert.Nil(t, gone)

	got, err := store.GetDiagram(ctx, "after", storage.ListOptions{
		IncludeTables:        true,
		IncludeRelationships: true,
		IncludeDependencies:  true,
		IncludeAreas:         true,
		IncludeCustomTypes:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Tables, 2)
	assert.Len(t, got.Relationships, 1)
	assert.Len(t, got.Dependencies, 1)
	assert.Len(t, got.Areas, 1)
	assert.Len(t, got.CustomTypes, 1)

	filter, err := store.GetDiagramFilter(ctx, "after")
	require.NoError(t, err)
	require.NotNil(t, filter)

	orphaned, err := store.ListContent(ctx, storage.KindTable, "before")
	require.NoError(t, err)
	assert.Empty(t, orphaned)
}

func testDeleteCascade(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.AddDiagram(ctx, fullDiagram("d1")))
	require.NoError(t, store.AddDiagram(ctx, fullDiagram("d2")))
	require.NoError(t, store.UpdateDiagramFilter(ctx, "d1", models.Snapshot{"hidden": []any{}}))

	require.NoError(t, store.DeleteDiagram(ctx, "d1"))

	gone, err := store.GetDiagram(ctx, "d1", storage.ListOptions{})
	require.NoError(t, err)
	assert.Nil(t, gone)

	for _, kind := range storage.Kinds() {
		entities, err := store.ListContent(ctx, kind, "d1")
		require.NoError(t, err)
		assert.Empty(t, entities, "kind %s should be emptied", kind)
	}

	filter, err := store.GetDiagramFilter(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, filter)

	// The other diagram is untouched.
	kept, err := store.GetDiagram(ctx, "d2", storage.ListOptions{IncludeTables: true})
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Len(t, kept.Tables, 2)
}

func testContentLifecycle(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.AddDiagram(ctx, &models.Diagram{
		ID: "d1", Name: "empty", DatabaseType: "sqlite",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}))

	for _, kind := range storage.Kinds() {
		require.NoError(t, store.AddContent(ctx, kind, "d1", models.Snapshot{"id": "e1", "name": "first"}))
		require.NoError(t, store.AddContent(ctx, kind, "d1", models.Snapshot{"id": "e2", "name": "second"}))

		entities, err := store.ListContent(ctx, kind, "d1")
		require.NoError(t, err)
		assert.Len(t, entities, 2)

		entity, err := store.GetContent(ctx, kind, "d1", "e1")
		require.NoError(t, err)
		require.NotNil(t, entity)
		assert.Equal(t, "first", entity["name"])

		require.NoError(t, store.DeleteContent(ctx, kind, "d1", "e1"))
		entity, err = store.GetContent(ctx, kind, "d1", "e1")
		require.NoError(t, err)
		assert.Nil(t, entity)

		require.NoError(t, store.DeleteDiagramContent(ctx, kind, "d1"))
		entities, err = store.ListContent(ctx, kind, "d1")
		require.NoError(t, err)
		assert.Empty(t, entities)
	}
}

func testContentMergePatch(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.AddDiagram(ctx, &models.Diagram{
		ID: "d1", Name: "merge", DatabaseType: "mysql",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.AddContent(ctx, storage.KindTable, "d1", models.Snapshot{
		"id":      "t1",
		"name":    "users",
		"columns": []any{"id", "email"},
	}))

	require.NoError(t, store.UpdateContent(ctx, storage.KindTable, "t1", models.Snapshot{
		"name": "accounts",
	}))

	got, err := store.GetContent(ctx, storage.KindTable, "d1", "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "accounts", got["name"])
	assert.Equal(t, []any{"id", "email"}, got["columns"], "untouched fields survive the patch")

	// Patching a missing entity is a silent no-op.
	require.NoError(t, store.UpdateContent(ctx, storage.KindTable, "no-such", models.Snapshot{"name": "x"}))
}

func testPutContentUpserts(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.AddDiagram(ctx, &models.Diagram{
		ID: "d1", Name: "put", DatabaseType: "mariadb",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}))

	require.NoError(t, store.PutContent(ctx, storage.KindArea, "d1", models.Snapshot{"id": "a1", "name": "v1"}))
	require.NoError(t, store.PutContent(ctx, storage.KindArea, "d1", models.Snapshot{"id": "a1", "name": "v2"}))

	entities, err := store.ListContent(ctx, storage.KindArea, "d1")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "v2", entities[0]["name"])
}

func testConfigMerge(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.UpdateConfig(ctx, models.Snapshot{"defaultDiagramId": "d1"}))
	require.NoError(t, store.UpdateConfig(ctx, models.Snapshot{"theme": "dark"}))

	cfg, err := store.GetConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "d1", cfg["defaultDiagramId"], "earlier settings survive later partial updates")
	assert.Equal(t, "dark", cfg["theme"])
}

func testFilterUpsertAndDelete(t *testing.T, newStore Factory) {
	store := newStore(t, "u1")
	ctx := context.Background()

	require.NoError(t, store.UpdateDiagramFilter(ctx, "d1", models.Snapshot{"hidden": []any{"t1"}}))
	require.NoError(t, store.UpdateDiagramFilter(ctx, "d1", models.Snapshot{"hidden": []any{"t2"}}))

	filter, err := store.GetDiagramFilter(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, filter)
	assert.Equal(t, []any{"t2"}, filter["hidden"], "filter updates replace, not merge")

	require.NoError(t, store.DeleteDiagramFilter(ctx, "d1"))
	filter, err = store.GetDiagramFilter(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, filter)

	// Deleting an absent filter is a no-op.
	require.NoError(t, store.DeleteDiagramFilter(ctx, "never-existed"))
}
