// Package namespace models the Namespace entity: an ordered sequence of
// name components nested inside a warehouse, along with the properties
// bag and protection flag that govern recursive drop behavior.
package namespace

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// MaxDepth bounds how many components a namespace name may carry.
const MaxDepth = 16

// Separator joins namespace name components in their canonical string form.
const Separator = "\x1f"

// PostgreSQLModel is the row shape for a namespace. NameCanonical is a
// denormalized, lower-cased join of Name used to enforce case-insensitive
// uniqueness without a functional index per column.
type PostgreSQLModel struct {
	ID            string
	WarehouseID   string
	ParentID      sql.NullString
	Name          []string
	NameCanonical string
	Properties    []byte // JSON object
	Protected     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Namespace is the API-facing representation of a namespace.
type Namespace struct {
	ID          string            `json:"id"`
	WarehouseID string            `json:"warehouseId"`
	ParentID    *string           `json:"parentId,omitempty"`
	Name        []string          `json:"name"`
	Properties  map[string]string `json:"properties"`
	Protected   bool              `json:"protected"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ToEntity converts a row model to the API-facing Namespace, decoding the
// JSON properties blob.
func (m *PostgreSQLModel) ToEntity(properties map[string]string) *Namespace {
	ns := &Namespace{
		ID:          m.ID,
		WarehouseID: m.WarehouseID,
		Name:        m.Name,
		Properties:  properties,
		Protected:   m.Protected,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}

	if m.ParentID.Valid {
		parentID := m.ParentID.String
		ns.ParentID = &parentID
	}

	return ns
}

// Canonical lower-cases and joins name components for uniqueness checks.
func Canonical(name []string) string {
	parts := make([]string, len(name))
	for i, c := range name {
		parts[i] = strings.ToLower(c)
	}

	return strings.Join(parts, Separator)
}

// CreateNamespaceInput encapsulates the payload of a namespace-create
// request.
type CreateNamespaceInput struct {
	Name       []string          `json:"name" validate:"required,min=1,max=16,dive,required"`
	Properties map[string]string `json:"properties"`
}

// Hierarchy assembles a namespace with its full ancestor chain, used by
// recursive drop and listing to walk from a leaf to the warehouse root.
type Hierarchy struct {
	Leaf      *Namespace
	Ancestors []*Namespace // ordered root-to-parent
}

// ChildTabular is the minimal tabular reference a drop plan surfaces: just
// enough to name what would be removed and whether it blocks a non-forced
// drop.
type ChildTabular struct {
	ID        string
	Name      string
	Kind      string
	Protected bool
}

// DropPlan is what Drop needs to decide whether a drop_namespace call may
// proceed: the namespace itself, everything nested under it, and any
// cleanup tasks still in flight against that subtree's tabulars.
type DropPlan struct {
	Namespace       *Namespace
	ChildNamespaces []*Namespace
	ChildTabulars   []ChildTabular
	OpenTaskIDs     []string
}

// AnyProtected reports whether the namespace itself, any descendant
// namespace, or any child tabular is protected.
func (p *DropPlan) AnyProtected() bool {
	if p.Namespace.Protected {
		return true
	}

	for _, child := range p.ChildNamespaces {
		if child.Protected {
			return true
		}
	}

	for _, t := range p.ChildTabulars {
		if t.Protected {
			return true
		}
	}

	return false
}

// DropResult is the drop_namespace response body: what actually got
// removed, for a caller that wants to confirm blast radius after a forced
// recursive drop.
type DropResult struct {
	ChildTables     []string `json:"child_tables"`
	ChildNamespaces []string `json:"child_namespaces"`
	OpenTasks       []string `json:"open_tasks"`
}

// Repository provides CRUD plus the ancestor/descendant traversal queries
// recursive-drop and listing need.
type Repository interface {
	Create(ctx context.Context, ns *Namespace) (*Namespace, error)
	Find(ctx context.Context, id string) (*Namespace, error)
	FindByName(ctx context.Context, warehouseID string, name []string) (*Namespace, error)
	ListChildren(ctx context.Context, warehouseID string, parentID *string, pageSize int, cursor string) ([]*Namespace, string, error)
	ListDescendants(ctx context.Context, warehouseID, rootID string) ([]*Namespace, error)
	SetProperties(ctx context.Context, id string, properties map[string]string) error
	SetProtected(ctx context.Context, id string, protected bool) error
	Delete(ctx context.Context, id string) error

	// DeleteRecursive removes rootID and every descendant namespace inside
	// one transaction, first purging tabularIDs (the live tabulars nested
	// anywhere under rootID, per Plan) so their namespace_id foreign key
	// can't block the namespace deletes.
	DeleteRecursive(ctx context.Context, warehouseID, rootID string, tabularIDs []string) error

	// Plan gathers everything a drop_namespace call needs to enumerate
	// before deciding whether to proceed: the namespace, its descendant
	// namespaces, every live tabular nested anywhere under it, and any
	// cleanup/expiration task still scheduled or running against one of
	// those tabulars.
	Plan(ctx context.Context, warehouseID, id string) (*DropPlan, error)
}
