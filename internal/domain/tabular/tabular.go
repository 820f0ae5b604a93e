// Package tabular models the Tabular union (Table, View): catalog
// entities owned by a namespace, addressed by a storage location, and
// carrying staged / soft-deleted lifecycle state.
package tabular

import (
	"database/sql"
	"time"
)

// Kind discriminates the two tabular variants.
type Kind string

const (
	KindTable Kind = "table"
	KindView  Kind = "view"
)

// MaxCommitsPerCall bounds the batch size of a single commit_transaction
// call: each commit binds 3 parameters to each multi-row UPDATE (its id
// as CASE key and IN-list member, plus the new value), so dividing the
// bind-parameter ceiling by 4 keeps every statement under it.
const MaxCommitsPerCall = 65535 / 4

// PostgreSQLModel is the row shape for a tabular. FSProtocol/FSLocation
// are kept split from the full location string so a btree index on
// (fs_protocol, fs_location) can serve prefix/sublocation lookups without
// scanning the scheme.
type PostgreSQLModel struct {
	ID                   string
	NamespaceID          string
	WarehouseID          string
	Name                 string
	Kind                 string
	FSProtocol           string
	FSLocation           string
	MetadataLocation     sql.NullString
	CurrentMetadata      []byte
	MetadataPointerSeq   int
	Protected            bool
	DeletedAt            sql.NullTime
	CleanupTaskID        sql.NullString
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Tabular is the API-facing representation of a table or view.
type Tabular struct {
	ID                 string     `json:"id"`
	NamespaceID        string     `json:"namespaceId"`
	WarehouseID        string     `json:"warehouseId"`
	Name               string     `json:"name"`
	Kind               Kind       `json:"kind"`
	Location           string     `json:"location"`
	MetadataLocation   *string    `json:"metadataLocation,omitempty"`
	CurrentMetadata    []byte     `json:"-"`
	Protected          bool       `json:"protected"`
	DeletedAt          *time.Time `json:"deletedAt,omitempty"`
	CleanupTaskID      *string    `json:"cleanupTaskId,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Staged reports whether this tabular has not yet received a metadata
// pointer (excluded from default resolution unless include_staged is set).
func (t *Tabular) Staged() bool {
	return t.MetadataLocation == nil
}

// SoftDeleted reports whether this tabular carries a deletion timestamp.
func (t *Tabular) SoftDeleted() bool {
	return t.DeletedAt != nil
}

// ToEntity converts a row model to the API-facing Tabular, recombining
// FSProtocol/FSLocation into a single location string.
func (m *PostgreSQLModel) ToEntity() *Tabular {
	t := &Tabular{
		ID:          m.ID,
		NamespaceID: m.NamespaceID,
		WarehouseID: m.WarehouseID,
		Name:        m.Name,
		Kind:        Kind(m.Kind),
		Location:        m.FSProtocol + "://" + m.FSLocation,
		CurrentMetadata: m.CurrentMetadata,
		Protected:       m.Protected,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}

	if m.MetadataLocation.Valid {
		loc := m.MetadataLocation.String
		t.MetadataLocation = &loc
	}

	if m.DeletedAt.Valid {
		deletedAt := m.DeletedAt.Time
		t.DeletedAt = &deletedAt
	}

	if m.CleanupTaskID.Valid {
		taskID := m.CleanupTaskID.String
		t.CleanupTaskID = &taskID
	}

	return t
}

// Identifier names a tabular by its namespace path plus leaf name, the
// form table operations are addressed by over the wire.
type Identifier struct {
	Namespace []string `json:"namespace"`
	Name      string   `json:"name"`
}

// CreateTabularInput encapsulates the payload of a table/view create or
// stage-create request.
type CreateTabularInput struct {
	Identifier       Identifier `json:"identifier"`
	Kind             Kind       `json:"kind"`
	Location         string     `json:"location" validate:"required"`
	MetadataLocation *string    `json:"metadataLocation,omitempty"`
	Staged           bool       `json:"staged"`
}

// TableCommit is one element of a commit_transaction batch: the new
// metadata blob plus the location it was written to.
type TableCommit struct {
	TabularID        string `json:"tabularId" validate:"required,uuid4"`
	NewMetadata      []byte `json:"newMetadata" validate:"required"`
	NewMetadataLoc   string `json:"newMetadataLocation" validate:"required"`
	ExpectedMetadata *string `json:"expectedMetadataLocation,omitempty"`
}

// RenameInput describes a rename_tabular request; DestNamespaceID is nil
// for the same-namespace fast path.
type RenameInput struct {
	SourceID        string  `json:"sourceId" validate:"required,uuid4"`
	DestName         string  `json:"destName" validate:"required"`
	DestNamespaceID *string `json:"destNamespaceId,omitempty"`
}

// DropFlags controls drop_tabular semantics.
type DropFlags struct {
	Force              bool `json:"force"`
	PurgeImmediately   bool `json:"purgeImmediately"`
}

// ListFlags controls list_tabulars inclusion semantics.
type ListFlags struct {
	IncludeStaged      bool
	IncludeDeleted     bool
	Kind               *Kind
}
