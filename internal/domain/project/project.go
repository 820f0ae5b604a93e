// Package project models the top-level tenant entity: every Warehouse is
// owned by exactly one Project, and every Project hierarchically owns the
// server-relation fan-out for authorization.
package project

import (
	"context"
	"time"
)

// Project is the top-level tenant; it owns warehouses and is identified by
// an opaque ID (a UUID string).
type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// CreateProjectInput encapsulates the payload of a project-create request.
type CreateProjectInput struct {
	ID   string `json:"id" validate:"required,uuid4"`
	Name string `json:"name" validate:"required,max=256"`
}

// Repository provides an abstraction on top of the project data source,
// narrowed to the operations the catalog core actually needs.
type Repository interface {
	Create(ctx context.Context, p *Project) (*Project, error)
	Find(ctx context.Context, id string) (*Project, error)
	ListAll(ctx context.Context) ([]*Project, error)
	Delete(ctx context.Context, id string) error
}
