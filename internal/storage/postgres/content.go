package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"diagramdb/internal/models"
	"diagramdb/internal/storage"
)

func (s *Store) AddContent(ctx context.Context, kind storage.ContentKind, diagramID string, entity models.Snapshot) error {
	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", table, err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (id, user_id, diagram_id, payload, created_at) VALUES ($1, $2, $3, $4, $5)",
		table,
	)
	_, err = s.pool.Exec(ctx, query, entity.ID(), s.userID, diagramID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) PutContent(ctx context.Context, kind storage.ContentKind, diagramID string, entity models.Snapshot) error {
	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", table, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, diagram_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET diagram_id = EXCLUDED.diagram_id, payload = EXCLUDED.payload
	`, table)
	_, err = s.pool.Exec(ctx, query, entity.ID(), s.userID, diagramID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) GetContent(ctx context.Context, kind storage.ContentKind, diagramID, id string) (models.Snapshot, error) {
	table, err := storage.TableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT payload FROM %s WHERE user_id = $1 AND diagram_id = $2 AND id = $3",
		table,
	)
	var payload []byte
	err = s.pool.QueryRow(ctx, query, s.userID, diagramID, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s %s: %w", table, id, err)
	}
	return decodeSnapshot(table, payload)
}

// UpdateContent merge-patches the stored payload: load current, shallow-merge
// the supplied attributes, write the merged payload back. A missing row is a
// no-op. The read-then-write round trip has last-write-wins semantics; a
// concurrent writer's change can be lost.
func (s *Store) UpdateContent(ctx context.Context, kind storage.ContentKind, id string, patch models.Snapshot) error {
	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT payload FROM %s WHERE user_id = $1 AND id = $2", table)
	var payload []byte
	err = s.pool.QueryRow(ctx, query, s.userID, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load %s for update: %w", table, err)
	}

	current, err := decodeSnapshot(table, payload)
	if err != nil {
		return err
	}
	merged, err := json.Marshal(current.Merge(patch))
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", table, err)
	}

	update := fmt.Sprintf("UPDATE %s SET payload = $1 WHERE user_id = $2 AND id = $3", table)
	if _, err := s.pool.Exec(ctx, update, merged, s.userID, id); err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return nil
}

func (s *Store) ListContent(ctx context.Context, kind storage.ContentKind, diagramID string) ([]models.Snapshot, error) {
	table, err := storage.TableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT payload FROM %s WHERE user_id = $1 AND diagram_id = $2", table)
	rows, err := s.pool.Query(ctx, query, s.userID, diagramID)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for diagram %s: %w", table, diagramID, err)
	}
	defer rows.Close()

	var entities []models.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s payload: %w", table, err)
		}
		entity, err := decodeSnapshot(table, payload)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s for diagram %s: %w", table, diagramID, err)
	}
	return entities, nil
}

func (s *Store) DeleteContent(ctx context.Context, kind storage.ContentKind, diagramID, id string) error {
	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1 AND diagram_id = $2 AND id = $3", table)
	if _, err := s.pool.Exec(ctx, query, s.userID, diagramID, id); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (s *Store) DeleteDiagramContent(ctx context.Context, kind storage.ContentKind, diagramID string) error {
	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1 AND diagram_id = $2", table)
	if _, err := s.pool.Exec(ctx, query, s.userID, diagramID); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func decodeSnapshot(table string, payload []byte) (models.Snapshot, error) {
	var entity models.Snapshot
	if err := json.Unmarshal(payload, &entity); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", table, err)
	}
	return entity, nil
}
