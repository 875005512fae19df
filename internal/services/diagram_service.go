package services

import (
	"context"
	"fmt"

	"diagramdb/internal/auth"
	"diagramdb/internal/models"
	"diagramdb/internal/storage"
)

// StoreResolver returns the storage backend for the given auth state. The
// server wires it through storage.Select so every call site stays
// backend-agnostic.
type StoreResolver func(user *auth.Identity) storage.Store

type DiagramService struct {
	resolve StoreResolver
}

func NewDiagramService(resolve StoreResolver) *DiagramService {
	return &DiagramService{resolve: resolve}
}

func (s *DiagramService) store(user *auth.Identity) (storage.Store, error) {
	store := s.resolve(user)
	if store == nil {
		return nil, fmt.Errorf("no storage backend available")
	}
	return store, nil
}

func (s *DiagramService) CreateDiagram(ctx context.Context, user *auth.Identity, diagram *models.Diagram) error {
	if diagram.Name == "" {
		return fmt.Errorf("diagram name is required")
	}
	if diagram.DatabaseType == "" {
		return fmt.Errorf("database type is required")
	}
	diagram.Prepare()

	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.AddDiagram(ctx, diagram)
}

func (s *DiagramService) ListDiagrams(ctx context.Context, user *auth.Identity, opts storage.ListOptions) ([]models.Diagram, error) {
	store, err := s.store(user)
	if err != nil {
		return nil, err
	}
	return store.ListDiagrams(ctx, opts)
}

func (s *DiagramService) GetDiagram(ctx context.Context, user *auth.Identity, id string, opts storage.ListOptions) (*models.Diagram, error) {
	if id == "" {
		return nil, fmt.Errorf("diagram id is required")
	}
	store, err := s.store(user)
	if err != nil {
		return nil, err
	}
	return store.GetDiagram(ctx, id, opts)
}

func (s *DiagramService) UpdateDiagram(ctx context.Context, user *auth.Identity, id string, patch storage.DiagramPatch) error {
	if id == "" {
		return fmt.Errorf("diagram id is required")
	}
	if patch.ID != nil && *patch.ID == "" {
		return fmt.Errorf("new diagram id must not be empty")
	}
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.UpdateDiagram(ctx, id, patch)
}

func (s *DiagramService) DeleteDiagram(ctx context.Context, user *auth.Identity, id string) error {
	if id == "" {
		return fmt.Errorf("diagram id is required")
	}
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.DeleteDiagram(ctx, id)
}

func (s *DiagramService) AddContent(ctx context.Context, user *auth.Identity, kind storage.ContentKind, diagramID string, entity models.Snapshot) error {
	if entity.ID() == "" {
		return fmt.Errorf("entity id is required")
	}
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.AddContent(ctx, kind, diagramID, entity)
}

func (s *DiagramService) PutContent(ctx context.Context, user *auth.Identity, kind storage.ContentKind, diagramID string, entity models.Snapshot) error {
	if entity.ID() == "" {
		return fmt.Errorf("entity id is required")
	}
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.PutContent(ctx, kind, diagramID, entity)
}

func (s *DiagramService) GetContent(ctx context.Context, user *auth.Identity, kind storage.ContentKind, diagramID, id string) (models.Snapshot, error) {
	store, err := s.store(user)
	if err != nil {
		return nil, err
	}
	return store.GetContent(ctx, kind, diagramID, id)
}

func (s *DiagramService) UpdateContent(ctx context.Context, user *auth.Identity, kind storage.ContentKind, id string, patch models.Snapshot) error {
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.UpdateContent(ctx, kind, id, patch)
}

func (s *DiagramService) ListContent(ctx context.Context, user *auth.Identity, kind storage.ContentKind, diagramID string) ([]models.Snapshot, error) {
	store, err := s.store(user)
	if err != nil {
		return nil, err
	}
	return store.ListContent(ctx, kind, diagramID)
}

func (s *DiagramService) DeleteContent(ctx context.Context, user *auth.Identity, kind storage.ContentKind, diagramID, id string) error {
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.DeleteContent(ctx, kind, diagramID, id)
}

func (s *DiagramService) DeleteDiagramContent(ctx context.Context, user *auth.Identity, kind storage.ContentKind, diagramID string) error {
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.DeleteDiagramContent(ctx, kind, diagramID)
}

func (s *DiagramService) GetConfig(ctx context.Context, user *auth.Identity) (models.Snapshot, error) {
	store, err := s.store(user)
	if err != nil {
		return nil, err
	}
	return store.GetConfig(ctx)
}

func (s *DiagramService) UpdateConfig(ctx context.Context, user *auth.Identity, settings models.Snapshot) error {
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.UpdateConfig(ctx, settings)
}

func (s *DiagramService) GetDiagramFilter(ctx context.Context, user *auth.Identity, diagramID string) (models.Snapshot, error) {
	store, err := s.store(user)
	if err != nil {
		return nil, err
	}
	return store.GetDiagramFilter(ctx, diagramID)
}

func (s *DiagramService) UpdateDiagramFilter(ctx context.Context, user *auth.Identity, diagramID string, filter models.Snapshot) error {
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.UpdateDiagramFilter(ctx, diagramID, filter)
}

func (s *DiagramService) DeleteDiagramFilter(ctx context.Context, user *auth.Identity, diagramID string) error {
	store, err := s.store(user)
	if err != nil {
		return err
	}
	return store.DeleteDiagramFilter(ctx, diagramID)
}
