// Package postgres implements the storage contract against the remote
// relational backend: one diagrams table, one content table per sub-entity
// kind, plus user-scoped config and diagram-filter tables. Every statement is
// scoped by the store's user id, so cross-user access is structurally
// impossible here.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"diagramdb/internal/models"
	"diagramdb/internal/storage"
)

const (
	tableDiagrams       = "diagrams"
	tableUserConfigs    = "user_configs"
	tableDiagramFilters = "diagram_filters"
)

type Store struct {
	pool   *pgxpool.Pool
	userID string
}

// NewStore returns a store scoped to one user. All reads and writes carry
// the user id.
func NewStore(pool *pgxpool.Pool, userID string) *Store {
	return &Store{pool: pool, userID: userID}
}

// join runs each fn concurrently and returns the first error after all have
// completed. Used for independent row fan-outs; there is no atomicity across
// the joined statements.
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
	query := `
		INSERT INTO diagrams (id, user_id, name, database_type, database_edition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		diagram.ID,
		s.userID,
		diagram.Name,
		diagram.DatabaseType,
		diagram.DatabaseEdition,
		diagram.CreatedAt,
		diagram.UpdatedAt,
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

	_, err = s.pool.Exec(ctx,
		`UPDATE diagrams SET updated_at = $1 WHERE user_id = $2 AND id = $3`,
		time.Now().UTC(), s.userID, diagram.ID,
	)
	if err != nil {
		return fmt.Errorf("mark diagram inserted: %w", err)
	}
	return nil
}

// addAll inserts every entity of one kind concurrently.
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
	query := `
		SELECT id, name, database_type, database_edition, created_at, updated_at
		FROM diagrams WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.pool.Query(ctx, query, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	var diagrams []models.Diagram
	for rows.Next() {
		var d models.Diagram
		if err := rows.Scan(&d.ID, &d.Name, &d.DatabaseType, &d.DatabaseEdition, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan diagram: %w", err)
		}
		diagrams = append(diagrams, d)
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
	query := `
		SELECT id, name, database_type, database_edition, created_at, updated_at
		FROM diagrams WHERE user_id = $1 AND id = $2
	`
	var d models.Diagram
	err := s.pool.QueryRow(ctx, query, s.userID, id).Scan(
		&d.ID, &d.Name, &d.DatabaseType, &d.DatabaseEdition, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get diagram: %w", err)
	}
	if err := s.hydrate(ctx, &d, opts); err != nil {
		return nil, err
	}
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
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.DatabaseType != nil {
		args = append(args, *patch.DatabaseType)
		sets = append(sets, fmt.Sprintf("database_type = $%d", len(args)))
	}
	if patch.ClearDatabaseEdition {
		sets = append(sets, "database_edition = NULL")
	} else if patch.DatabaseEdition != nil {
		args = append(args, *patch.DatabaseEdition)
		sets = append(sets, fmt.Sprintf("database_edition = $%d", len(args)))
	}
	if patch.UpdatedAt != nil {
		args = append(args, patch.UpdatedAt.UTC())
		sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	}

	if len(sets) > 0 {
		args = append(args, s.userID, id)
		query := fmt.Sprintf(
			"UPDATE diagrams SET %s WHERE user_id = $%d AND id = $%d",
			strings.Join(sets, ", "), len(args)-1, len(args),
		)
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("update diagram attributes: %w", err)
		}
	}

	if patch.ID != nil && *patch.ID != id {
		return s.renameDiagram(ctx, id, *patch.ID)
	}
	return nil
}

// renameDiagram rewrites the diagram row's id, then updates the diagram
// reference in every content table. One statement per table, not a single
// transaction: a failure partway leaves some tables still pointing at the
// old id.
func (s *Store) renameDiagram(ctx context.Context, oldID, newID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE diagrams SET id = $1 WHERE user_id = $2 AND id = $3`,
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
				"UPDATE %s SET diagram_id = $1 WHERE user_id = $2 AND diagram_id = $3",
				table,
			)
			if _, err := s.pool.Exec(ctx, query, newID, s.userID, oldID); err != nil {
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

	_, err := s.pool.Exec(ctx,
		`DELETE FROM diagrams WHERE user_id = $1 AND id = $2`,
		s.userID, id,
	)
	if err != nil {
		return fmt.Errorf("delete diagram: %w", err)
	}
	return nil
}
