package models

import (
	"time"

	"github.com/google/uuid"
)

type Diagram struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	DatabaseType    string     `json:"database_type"`
	DatabaseEdition *string    `json:"database_edition,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Tables          []Snapshot `json:"tables,omitempty"`
	Relationships   []Snapshot `json:"relationships,omitempty"`
	Dependencies    []Snapshot `json:"dependencies,omitempty"`
	Areas           []Snapshot `json:"areas,omitempty"`
	CustomTypes     []Snapshot `json:"custom_types,omitempty"`
}

func (d *Diagram) Prepare() {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
}
