// Package storage defines the backend-agnostic persistence contract shared by
// the remote relational store and the local embedded store. Everything above
// this interface is storage-backend agnostic.
package storage

import (
	"context"
	"fmt"
	"time"

	"diagramdb/internal/models"
)

// ContentKind identifies one sub-entity collection of a diagram. Each kind is
// backed by its own content table.
type ContentKind string

const (
	KindTable        ContentKind = "table"
	KindRelationship ContentKind = "relationship"
	KindDependency   ContentKind = "dependency"
	KindArea         ContentKind = "area"
	KindCustomType   ContentKind = "custom_type"
)

var contentTables = map[ContentKind]string{
	KindTable:        "db_tables",
	KindRelationship: "db_relationships",
	KindDependency:   "db_dependencies",
	KindArea:         "areas",
	KindCustomType:   "db_custom_types",
}

// Kinds returns every content kind in a fixed order.
func Kinds() []ContentKind {
	return []ContentKind{KindTable, KindRelationship, KindDependency, KindArea, KindCustomType}
}

// TableFor maps a content kind to its content table name.
func TableFor(kind ContentKind) (string, error) {
	table, ok := contentTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown content kind %q", kind)
	}
	return table, nil
}

// ListOptions selects which sub-entity collections to eagerly hydrate when
// reading diagrams. Every flag defaults to false: list reads stay cheap
// unless a collection is requested.
type ListOptions struct {
	IncludeTables        bool
	IncludeRelationships bool
	IncludeDependencies  bool
	IncludeAreas         bool
	IncludeCustomTypes   bool
}

// Any reports whether at least one hydration flag is set.
func (o ListOptions) Any() bool {
	return o.IncludeTables || o.IncludeRelationships || o.IncludeDependencies ||
		o.IncludeAreas || o.IncludeCustomTypes
}

// DiagramPatch carries the diagram attributes to change. Nil fields are left
// untouched. ClearDatabaseEdition clears the edition explicitly, which a nil
// DatabaseEdition cannot express. A non-nil ID renames the diagram; the
// rename is propagated to every content table referencing the old id.
type DiagramPatch struct {
	ID                   *string
	Name                 *string
	DatabaseType         *string
	DatabaseEdition      *string
	ClearDatabaseEdition bool
	UpdatedAt            *time.Time
}

// Empty reports whether the patch changes no diagram attribute (a rename
// alone is not an attribute change).
func (p DiagramPatch) Empty() bool {
	return p.Name == nil && p.DatabaseType == nil && p.DatabaseEdition == nil &&
		!p.ClearDatabaseEdition && p.UpdatedAt == nil
}

// Store is the persistence capability set every backend must honor
// identically. Point lookups return (nil, nil) on miss, never an error.
// Failing backend calls surface an error wrapping the backend's message; no
// retries happen at this layer.
type Store interface {
	GetConfig(ctx context.Context) (models.Snapshot, error)
	UpdateConfig(ctx context.Context, settings models.Snapshot) error

	GetDiagramFilter(ctx context.Context, diagramID string) (models.Snapshot, error)
	UpdateDiagramFilter(ctx context.Context, diagramID string, filter models.Snapshot) error
	DeleteDiagramFilter(ctx context.Context, diagramID string) error

	AddDiagram(ctx context.Context, diagram *models.Diagram) error
	ListDiagrams(ctx context.Context, opts ListOptions) ([]models.Diagram, error)
	GetDiagram(ctx context.Context, id string, opts ListOptions) (*models.Diagram, error)
	UpdateDiagram(ctx context.Context, id string, patch DiagramPatch) error
	DeleteDiagram(ctx context.Context, id string) error

	AddContent(ctx context.Context, kind ContentKind, diagramID string, entity models.Snapshot) error
	PutContent(ctx context.Context, kind ContentKind, diagramID string, entity models.Snapshot) error
	GetContent(ctx context.Context, kind ContentKind, diagramID, id string) (models.Snapshot, error)
	UpdateContent(ctx context.Context, kind ContentKind, id string, patch models.Snapshot) error
	ListContent(ctx context.Context, kind ContentKind, diagramID string) ([]models.Snapshot, error)
	DeleteContent(ctx context.Context, kind ContentKind, diagramID, id string) error
	DeleteDiagramContent(ctx context.Context, kind ContentKind, diagramID string) error
}
