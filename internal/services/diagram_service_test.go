package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagramdb/internal/auth"
	"diagramdb/internal/models"
	"diagramdb/internal/storage"
	"diagramdb/internal/storage/sqlite"
)

func newTestService(t *testing.T) *DiagramService {
	t.Helper()
	store, err := sqlite.Open(":memory:", "u1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewDiagramService(func(*auth.Identity) storage.Store { return store })
}

func TestDiagramService_CreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.CreateDiagram(ctx, nil, &models.Diagram{DatabaseType: "postgresql"})
	require.Error(t, err, "name is required")

	err = svc.CreateDiagram(ctx, nil, &models.Diagram{Name: "orders"})
	require.Error(t, err, "database type is required")
}

func TestDiagramService_CreateFillsDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	diagram := &models.Diagram{Name: "orders", DatabaseType: "postgresql"}
	require.NoError(t, svc.CreateDiagram(ctx, nil, diagram))

	assert.NotEmpty(t, diagram.ID, "missing id is generated")
	assert.False(t, diagram.CreatedAt.IsZero())
	assert.False(t, diagram.UpdatedAt.IsZero())

	got, err := svc.GetDiagram(ctx, nil, diagram.ID, storage.ListOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "orders", got.Name)
}

func TestDiagramService_UpdateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.Error(t, svc.UpdateDiagram(ctx, nil, "", storage.DiagramPatch{}))

	empty := ""
	require.Error(t, svc.UpdateDiagram(ctx, nil, "d1", storage.DiagramPatch{ID: &empty}),
		"rename target must not be empty")
}

func TestDiagramService_ContentRequiresEntityID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.Error(t, svc.AddContent(ctx, nil, storage.KindTable, "d1", models.Snapshot{"name": "no id"}))
	require.Error(t, svc.PutContent(ctx, nil, storage.KindTable, "d1", models.Snapshot{}))
}

func TestDiagramService_NilStore(t *testing.T) {
	svc := NewDiagramService(func(*auth.Identity) storage.Store { return nil })

	_, err := svc.ListDiagrams(context.Background(), nil, storage.ListOptions{})
	require.Error(t, err)
}
