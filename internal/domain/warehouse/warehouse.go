// Package warehouse models the Warehouse entity: a named storage root
// owned by a project, carrying a storage profile, a status, and a
// protection flag that namespace and tabular drops must respect.
package warehouse

import (
	"context"
	"database/sql"
	"time"

	"github.com/lakekeeper/catalog/internal/domain/storage"
)

// Status is the lifecycle state of a warehouse. An inactive warehouse's
// warehouse-scoped namespace, table and view routes respond as not found;
// the warehouse itself can still be read, renamed, protected, deleted and
// reactivated.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// PostgreSQLModel is the row shape stored for a warehouse, split from the
// API-facing Warehouse so the storage profile's discriminated JSON blob
// and the protection flag live alongside plain columns.
type PostgreSQLModel struct {
	ID             string
	ProjectID      string
	Name           string
	Status         string
	StorageProfile []byte // JSON-encoded, discriminated by a "type" field
	StorageFlavor  string
	Protected      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      sql.NullTime
}

// Warehouse is the API-facing representation of a warehouse.
type Warehouse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Protected bool      `json:"protected"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Profile is never serialized directly on the wire entity; it is
	// fetched and rendered separately so credential-bearing fields never
	// leak into a plain warehouse listing.
	Profile storage.Profile `json:"-"`
}

// ToEntity converts a row model into the API-facing Warehouse, leaving
// Profile for the caller to attach once decoded from StorageProfile.
func (m *PostgreSQLModel) ToEntity() *Warehouse {
	w := &Warehouse{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Name:      m.Name,
		Status:    Status(m.Status),
		Protected: m.Protected,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if m.DeletedAt.Valid {
		deletedAt := m.DeletedAt.Time
		w.DeletedAt = &deletedAt
	}

	return w
}

// CreateWarehouseInput encapsulates the payload of a warehouse-create
// request; StorageProfileJSON is the caller-supplied discriminated blob,
// decoded and validated by the owning service before persistence.
type CreateWarehouseInput struct {
	ProjectID          string          `json:"projectId" validate:"required,uuid4"`
	Name               string          `json:"name" validate:"required,max=256"`
	StorageProfileJSON []byte          `json:"storageProfile" validate:"required"`
	DeleteProfile      DeleteProfile   `json:"deleteProfile"`
}

// DeleteProfile configures soft-delete expiration behavior for tabulars
// dropped within this warehouse.
type DeleteProfile struct {
	SoftDelete      bool          `json:"softDelete"`
	ExpirationDelay time.Duration `json:"expirationDelaySeconds"`
}

// Repository provides CRUD and status/protection transitions over the
// warehouse store.
type Repository interface {
	Create(ctx context.Context, w *Warehouse, profile []byte, flavor string) (*Warehouse, error)
	Find(ctx context.Context, id string) (*Warehouse, []byte, error)
	FindByName(ctx context.Context, projectID, name string) (*Warehouse, []byte, error)
	ListByProject(ctx context.Context, projectID string) ([]*Warehouse, error)
	UpdateStorageProfile(ctx context.Context, id string, profile []byte, flavor string) error
	SetStatus(ctx context.Context, id string, status Status) error
	SetProtected(ctx context.Context, id string, protected bool) error
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}
