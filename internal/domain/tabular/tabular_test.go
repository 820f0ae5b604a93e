package tabular

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTabular_Staged(t *testing.T) {
	staged := &Tabular{MetadataLocation: nil}
	assert.True(t, staged.Staged())

	loc := "s3://bucket/metadata/00001.json"
	committed := &Tabular{MetadataLocation: &loc}
	assert.False(t, committed.Staged())
}

func TestTabular_SoftDeleted(t *testing.T) {
	live := &Tabular{}
	assert.False(t, live.SoftDeleted())

	deletedAt := time.Now()
	deleted := &Tabular{DeletedAt: &deletedAt}
	assert.True(t, deleted.SoftDeleted())
}

func TestPostgreSQLModel_ToEntity_RecombinesLocation(t *testing.T) {
	model := &PostgreSQLModel{
		ID:          "tbl-1",
		NamespaceID: "ns-1",
		WarehouseID: "wh-1",
		Name:        "events",
		Kind:        "table",
		FSProtocol:  "s3",
		FSLocation:  "bucket/warehouse/events",
	}

	entity := model.ToEntity()

	assert.Equal(t, "s3://bucket/warehouse/events", entity.Location)
	assert.Equal(t, Kind("table"), entity.Kind)
	assert.Nil(t, entity.MetadataLocation)
	assert.Nil(t, entity.DeletedAt)
	assert.Nil(t, entity.CleanupTaskID)
}

func TestPostgreSQLModel_ToEntity_PopulatesOptionalFields(t *testing.T) {
	model := &PostgreSQLModel{
		ID:               "tbl-1",
		FSProtocol:       "s3",
		FSLocation:       "bucket/events",
		MetadataLocation: sql.NullString{String: "s3://bucket/metadata/1.json", Valid: true},
		DeletedAt:        sql.NullTime{Time: time.Unix(0, 0), Valid: true},
		CleanupTaskID:    sql.NullString{String: "task-1", Valid: true},
	}

	entity := model.ToEntity()

	require := assert.New(t)
	require.NotNil(entity.MetadataLocation)
	require.Equal("s3://bucket/metadata/1.json", *entity.MetadataLocation)
	require.NotNil(entity.DeletedAt)
	require.NotNil(entity.CleanupTaskID)
	require.Equal("task-1", *entity.CleanupTaskID)
}
