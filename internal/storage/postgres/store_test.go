package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"diagramdb/internal/database"
	"diagramdb/internal/models"
	"diagramdb/internal/storage"
	"diagramdb/internal/storage/storagetest"
)

var allTables = []string{
	"diagrams", "db_tables", "db_relationships", "db_dependencies",
	"areas", "db_custom_types", "user_configs", "diagram_filters",
}

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("diagramdb_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("skipping: could not start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(pool))
	return pool
}

func truncateAll(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	for _, table := range allTables {
		_, err := pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s", table))
		require.NoError(t, err)
	}
}

func TestStoreContract(t *testing.T) {
	pool := newTestPool(t)

	storagetest.Run(t, func(t *testing.T, userID string) storage.Store {
		truncateAll(t, pool)
		return NewStore(pool, userID)
	})
}

func TestStore_UserIsolation(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	alice := NewStore(pool, "alice")
	bob := NewStore(pool, "bob")

	diagram := &models.Diagram{
		ID: "shared-id", Name: "alice's", DatabaseType: "postgresql",
		Tables: []models.Snapshot{{"id": "t1", "name": "users"}},
	}
	diagram.Prepare()
	require.NoError(t, alice.AddDiagram(ctx, diagram))
	require.NoError(t, alice.UpdateConfig(ctx, models.Snapshot{"theme": "dark"}))

	// Bob sees none of it, even with the same identifiers.
	got, err := bob.GetDiagram(ctx, "shared-id", storage.ListOptions{})
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := bob.ListDiagrams(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)

	cfg, err := bob.GetConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	// Bob's delete cannot touch Alice's rows.
	require.NoError(t, bob.DeleteDiagram(ctx, "shared-id"))
	kept, err := alice.GetDiagram(ctx, "shared-id", storage.ListOptions{IncludeTables: true})
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Len(t, kept.Tables, 1)
}
