package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"diagramdb/internal/models"
)

func (s *Store) GetConfig(ctx context.Context) (models.Snapshot, error) {
	var settings []byte
	err := s.pool.QueryRow(ctx,
		`SELECT settings FROM user_configs WHERE user_id = $1`,
		s.userID,
	).Scan(&settings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get config: %w", err)
	}
	return decodeSnapshot(tableUserConfigs, settings)
}

// UpdateConfig merges the supplied settings into any existing row rather than
// overwriting wholesale. The write is an idempotent upsert keyed on user id.
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

	query := `
		INSERT INTO user_configs (user_id, settings, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, s.userID, merged, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert config: %w", err)
	}
	return nil
}

func (s *Store) GetDiagramFilter(ctx context.Context, diagramID string) (models.Snapshot, error) {
	var filter []byte
	err := s.pool.QueryRow(ctx,
		`SELECT filter FROM diagram_filters WHERE user_id = $1 AND diagram_id = $2`,
		s.userID, diagramID,
	).Scan(&filter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	query := `
		INSERT INTO diagram_filters (diagram_id, user_id, filter, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (diagram_id, user_id) DO UPDATE SET filter = EXCLUDED.filter, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, diagramID, s.userID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert diagram filter: %w", err)
	}
	return nil
}

func (s *Store) DeleteDiagramFilter(ctx context.Context, diagramID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM diagram_filters WHERE user_id = $1 AND diagram_id = $2`,
		s.userID, diagramID,
	)
	if err != nil {
		return fmt.Errorf("delete diagram filter: %w", err)
	}
	return nil
}
