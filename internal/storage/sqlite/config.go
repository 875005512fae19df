package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"diagramdb/internal/models"
)

func (s *Store) GetConfig(ctx context.Context) (models.Snapshot, error) {
	var settings string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT settings FROM user_configs WHERE user_id = ?`,
		s.userID,
	).Scan(&settings)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get config: %w", err)
	}
	return decodeSnapshot("user_configs", settings)
}

func (s *Store) UpdateConfig(ctx context.Context, settings models.Snapshot) error {
	existing, err := s.GetConfig(ctx)
	if err != nil {
		return err
	}
	if existing == nil {
		existing = models.Snapshot{"defaultDiagramId": ""}
	}
	merged, err := json.Marshal(existing.Merge(settings))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO user_configs (user_id, settings, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at
	`, s.userID, string(merged), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert config: %w", err)
	}
	return nil
}

func (s *Store) GetDiagramFilter(ctx context.Context, diagramID string) (models.Snapshot, error) {
	var filter string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT filter FROM diagram_filters WHERE user_id = ? AND diagram_id = ?`,
		s.userID, diagramID,
	).Scan(&filter)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get diagram filter: %w", err)
	}
	return decodeSnapshot(tableDiagramFilters, filter)
}

func (s *Store) UpdateDiagramFilter(ctx context.Context, diagramID string, filter models.Snapshot) error {
	payload, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("encode diagram filter: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO diagram_filters (diagram_id, user_id, filter, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (diagram_id, user_id) DO UPDATE SET filter = excluded.filter, updated_at = excluded.updated_at
	`, diagramID, s.userID, string(payload), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert diagram filter: %w", err)
	}
	return nil
}

func (s *Store) DeleteDiagramFilter(ctx context.Context, diagramID string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM diagram_filters WHERE user_id = ? AND diagram_id = ?`,
		s.userID, diagramID,
	)
	if err != nil {
		return fmt.Errorf("delete diagram filter: %w", err)
	}
	return nil
}
