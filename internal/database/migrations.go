package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func RunMigrations(pool *pgxpool.Pool) error {
	ctx := context.Background()

	migrations := []string{
		createDiagramsTable,
		createTablesTable,
		createRelationshipsTable,
		createDependenciesTable,
		createAreasTable,
		createCustomTypesTable,
		createUserConfigsTable,
		createDiagramFiltersTable,
	}

	for i, migration := range migrations {
		log.Printf("Running migration %d/%d", i+1, len(migrations))
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("All migrations completed successfully")
	return nil
}

// Diagram identifiers are client-generated and renameable, so content tables
// reference diagrams by plain TEXT columns instead of foreign keys. Cascades
// are handled in the storage layer.

const createDiagramsTable = `
CREATE TABLE IF NOT EXISTS diagrams (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  database_type TEXT NOT NULL,
  database_edition TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_diagrams_user_id ON diagrams(user_id);
CREATE INDEX IF NOT EXISTS idx_diagrams_updated_at ON diagrams(updated_at);
`

const createTablesTable = `
CREATE TABLE IF NOT EXISTS db_tables (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_db_tables_diagram ON db_tables(user_id, diagram_id);
`

const createRelationshipsTable = `
CREATE TABLE IF NOT EXISTS db_relationships (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_db_relationships_diagram ON db_relationships(user_id, diagram_id);
`

const createDependenciesTable = `
CREATE TABLE IF NOT EXISTS db_dependencies (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_db_dependencies_diagram ON db_dependencies(user_id, diagram_id);
`

const createAreasTable = `
CREATE TABLE IF NOT EXISTS areas (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_areas_diagram ON areas(user_id, diagram_id);
`

const createCustomTypesTable = `
CREATE TABLE IF NOT EXISTS db_custom_types (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_db_custom_types_diagram ON db_custom_types(user_id, diagram_id);
`

const createUserConfigsTable = `
CREATE TABLE IF NOT EXISTS user_configs (
  user_id TEXT PRIMARY KEY,
  settings JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const createDiagramFiltersTable = `
CREATE TABLE IF NOT EXISTS diagram_filters (
  diagram_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  filter JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (diagram_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_diagram_filters_user_id ON diagram_filters(user_id);
`
