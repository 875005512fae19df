// Package sqlite implements the storage contract against a local embedded
// database, used while signed out or when the remote backend is disabled. It
// honors the exact semantics of the remote store so callers cannot tell the
// backends apart.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"diagramdb/internal/models"
	"diagramdb/internal/storage"
)

const tableDiagramFilters = "diagram_filters"

const schema = `
CREATE TABLE IF NOT EXISTS diagrams (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  database_type TEXT NOT NULL,
  database_edition TEXT,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diagrams_user ON diagrams(user_id, updated_at);

CREATE TABLE IF NOT EXISTS db_tables (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_db_tables_diagram ON db_tables(user_id, diagram_id);

CREATE TABLE IF NOT EXISTS db_relationships (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_db_relationships_diagram ON db_relationships(user_id, diagram_id);

CREATE TABLE IF NOT EXISTS db_dependencies (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_db_dependencies_diagram ON db_dependencies(user_id, diagram_id);

CREATE TABLE IF NOT EXISTS areas (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_areas_diagram ON areas(user_id, diagram_id);

CREATE TABLE IF NOT EXISTS db_custom_types (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  diagram_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_db_custom_types_diagram ON db_custom_types(user_id, diagram_id);

CREATE TABLE IF NOT EXISTS user_configs (
  user_id TEXT PRIMARY KEY,
  settings TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS diagram_filters (
  diagram_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  filter TEXT NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (diagram_id, user_id)
);
`

type Store struct {
	sqlDB  *sql.DB
	userID string
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (or creates) the embedded database at path and applies the
// schema. Pass ":memory:" for a throwaway store.
func Open(path, userID string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if userID == "" {
		userID = "local"
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps concurrent fan-outs from tripping
	// SQLITE_BUSY and makes :memory: stores see one database.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, userID: userID}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// join runs each fn concurrently and returns the first error after all have
// completed.
func join(fns ...func() error) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var first error
	for _, fn := range fns {
		wg.Add(1)
		go func(fn func() error) {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(fn)
	}
	wg.Wait()
	return first
}

func (s *Store) AddDiagram(ctx context.Context, diagram *models.Diagram) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO diagrams (id, user_id, name, database_type, database_edition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		diagram.ID,
		s.userID,
		diagram.Name,
		diagram.DatabaseType,
		diagram.DatabaseEdition,
		toMillis(diagram.CreatedAt),
		toMillis(diagram.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert diagram: %w", err)
	}

	for kind, entities := range map[storage.ContentKind][]models.Snapshot{
		storage.KindTable:        diagram.Tables,
		storage.KindRelationship: diagram.Relationships,
		storage.KindDependency:   diagram.Dependencies,
		storage.KindArea:         diagram.Areas,
		storage.KindCustomType:   diagram.CustomTypes,
	} {
		if err := s.addAll(ctx, kind, diagram.ID, entities); err != nil {
			return err
		}
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`UPDATE diagrams SET updated_at = ? WHERE user_id = ? AND id = ?`,
		toMillis(time.Now()), s.userID, diagram.ID,
	)
	if err != nil {
		return fmt.Errorf("mark diagram inserted: %w", err)
	}
	return nil
}

func (s *Store) addAll(ctx context.Context, kind storage.ContentKind, diagramID string, entities []models.Snapshot) error {
	if len(entities) == 0 {
		return nil
	}
	fns := make([]func() error, 0, len(entities))
	for _, entity := range entities {
		entity := entity
		fns = append(fns, func() error {
			return s.AddContent(ctx, kind, diagramID, entity)
		})
	}
	return join(fns...)
}

func (s *Store) ListDiagrams(ctx context.Context, opts storage.ListOptions) ([]models.Diagram, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, database_type, database_edition, created_at, updated_at
		 FROM diagrams WHERE user_id = ?
		 ORDER BY updated_at DESC`,
		s.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	var diagrams []models.Diagram
	for rows.Next() {
		d, err := scanDiagram(rows)
		if err != nil {
			return nil, err
		}
		diagrams = append(diagrams, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}

	if len(diagrams) == 0 || !opts.Any() {
		return diagrams, nil
	}

	fns := make([]func() error, 0, len(diagrams))
	for i := range diagrams {
		d := &diagrams[i]
		fns = append(fns, func() error {
			return s.hydrate(ctx, d, opts)
		})
	}
	if err := join(fns...); err != nil {
		return nil, err
	}
	return diagrams, nil
}

func (s *Store) GetDiagram(ctx context.Context, id string, opts storage.ListOptions) (*models.Diagram, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, database_type, database_edition, created_at, updated_at
		 FROM diagrams WHERE user_id = ? AND id = ?`,
		s.userID, id,
	)
	d, err := scanDiagram(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := s.hydrate(ctx, d, opts); err != nil {
		return nil, err
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiagram(row rowScanner) (*models.Diagram, error) {
	var d models.Diagram
	var createdAt, updatedAt int64
	err := row.Scan(&d.ID, &d.Name, &d.DatabaseType, &d.DatabaseEdition, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan diagram: %w", err)
	}
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	return &d, nil
}

func (s *Store) hydrate(ctx context.Context, d *models.Diagram, opts storage.ListOptions) error {
	var err error
	if opts.IncludeTables {
		if d.Tables, err = s.ListContent(ctx, storage.KindTable, d.ID); err != nil {
			return err
		}
	}
	if opts.IncludeRelationships {
		if d.Relationships, err = s.ListContent(ctx, storage.KindRelationship, d.ID); err != nil {
			return err
		}
	}
	if opts.IncludeDependencies {
		if d.Dependencies, err = s.ListContent(ctx, storage.KindDependency, d.ID); err != nil {
			return err
		}
	}
	if opts.IncludeAreas {
		if d.Areas, err = s.ListContent(ctx, storage.KindArea, d.ID); err != nil {
			return err
		}
	}
	if opts.IncludeCustomTypes {
		if d.CustomTypes, err = s.ListContent(ctx, storage.KindCustomType, d.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpdateDiagram(ctx context.Context, id string, patch storage.DiagramPatch) error {
	var sets []string
	var args []any

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.DatabaseType != nil {
		sets = append(sets, "database_type = ?")
		args = append(args, *patch.DatabaseType)
	}
	if patch.ClearDatabaseEdition {
		sets = append(sets, "database_edition = NULL")
	} else if patch.DatabaseEdition != nil {
		sets = append(sets, "database_edition = ?")
		args = append(args, *patch.DatabaseEdition)
	}
	if patch.UpdatedAt != nil {
		sets = append(sets, "updated_at = ?")
		args = append(args, toMillis(*patch.UpdatedAt))
	}

	if len(sets) > 0 {
		args = append(args, s.userID, id)
		query := fmt.Sprintf(
			"UPDATE diagrams SET %s WHERE user_id = ? AND id = ?",
			strings.Join(sets, ", "),
		)
		if _, err := s.sqlDB.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update diagram attributes: %w", err)
		}
	}

	if patch.ID != nil && *patch.ID != id {
		return s.renameDiagram(ctx, id, *patch.ID)
	}
	return nil
}

func (s *Store) renameDiagram(ctx context.Context, oldID, newID string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE diagrams SET id = ? WHERE user_id = ? AND id = ?`,
		newID, s.userID, oldID,
	)
	if err != nil {
		return fmt.Errorf("update diagram id: %w", err)
	}

	tables := make([]string, 0, 6)
	for _, kind := range storage.Kinds() {
		table, err := storage.TableFor(kind)
		if err != nil {
			return err
		}
		tables = append(tables, table)
	}
	tables = append(tables, tableDiagramFilters)

	fns := make([]func() error, 0, len(tables))
	for _, table := range tables {
		table := table
		fns = append(fns, func() error {
			query := fmt.Sprintf(
				"UPDATE %s SET diagram_id = ? WHERE user_id = ? AND diagram_id = ?",
				table,
			)
			if _, err := s.sqlDB.ExecContext(ctx, query, newID, s.userID, oldID); err != nil {
				return fmt.Errorf("update %s diagram ids: %w", table, err)
			}
			return nil
		})
	}
	return join(fns...)
}

func (s *Store) DeleteDiagram(ctx context.Context, id string) error {
	fns := make([]func() error, 0, 6)
	for _, kind := range storage.Kinds() {
		kind := kind
		fns = append(fns, func() error {
			return s.DeleteDiagramContent(ctx, kind, id)
		})
	}
	fns = append(fns, func() error {
		return s.DeleteDiagramFilter(ctx, id)
	})
	if err := join(fns...); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM diagrams WHERE user_id = ? AND id = ?`,
		s.userID, id,
	)
	if err != nil {
		return fmt.Errorf("delete diagram: %w", err)
	}
	return nil
}
