package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

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
		"INSERT INTO %s (id, user_id, diagram_id, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		table,
	)
	_, err = s.sqlDB.ExecContext(ctx, query, entity.ID(), s.userID, diagramID, string(payload), toMillis(time.Now()))
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
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET diagram_id = excluded.diagram_id, payload = excluded.payload
	`, table)
	_, err = s.sqlDB.ExecContext(ctx, query, entity.ID(), s.userID, diagramID, string(payload), toMillis(time.Now()))
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
		"SELECT payload FROM %s WHERE user_id = ? AND diagram_id = ? AND id = ?",
		table,
	)
	var payload string
	err = s.sqlDB.QueryRowContext(ctx, query, s.userID, diagramID, id).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s %s: %w", table, id, err)
	}
	return decodeSnapshot(table, payload)
}

// UpdateContent merge-patches the stored payload, matching the remote store's
// read-then-write semantics. A missing row is a no-op.
func (s *Store) UpdateContent(ctx context.Context, kind storage.ContentKind, id string, patch models.Snapshot) error {
	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT payload FROM %s WHERE user_id = ? AND id = ?", table)
	var payload string
	err = s.sqlDB.QueryRowContext(ctx, query, s.userID, id).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
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

	update := fmt.Sprintf("UPDATE %s SET payload = ? WHERE user_id = ? AND id = ?", table)
	if _, err := s.sqlDB.ExecContext(ctx, update, string(merged), s.userID, id); err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return nil
}

func (s *Store) ListContent(ctx context.Context, kind storage.ContentKind, diagramID string) ([]models.Snapshot, error) {
	table, err := storage.TableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT payload FROM %s WHERE user_id = ? AND diagram_id = ?", table)
	rows, err := s.sqlDB.QueryContext(ctx, query, s.userID, diagramID)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for diagram %s: %w", table, diagramID, err)
	}
	defer rows.Close()

	var entities []models.Snapshot
	for rows.Next() {
		var payload string
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
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND diagram_id = ? AND id = ?", table)
	if _, err := s.sqlDB.ExecContext(ctx, query, s.userID, diagramID, id); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (s *Store) DeleteDiagramContent(ctx context.Context, kind storage.ContentKind, diagramID string) error {
	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND diagram_id = ?", table)
	if _, err := s.sqlDB.ExecContext(ctx, query, s.userID, diagramID); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func decodeSnapshot(table, payload string) (models.Snapshot, error) {
	var entity models.Snapshot
	if err := json.Unmarshal([]byte(payload), &entity); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", table, err)
	}
	return entity, nil
}
