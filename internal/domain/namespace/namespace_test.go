package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical_LowercasesAndJoins(t *testing.T) {
	got := Canonical([]string{"Sales", "EU", "Orders"})
	assert.Equal(t, "sales"+Separator+"eu"+Separator+"orders", got)
}

func TestCanonical_IsCaseInsensitiveEquivalence(t *testing.T) {
	a := Canonical([]string{"Sales", "Orders"})
	b := Canonical([]string{"sales", "orders"})
	assert.Equal(t, a, b)
}

func TestCanonical_EmptyNameYieldsEmptyString(t *testing.T) {
	assert.Equal(t, "", Canonical(nil))
}

func TestPostgreSQLModel_ToEntity_NilParentWhenRootNamespace(t *testing.T) {
	model := &PostgreSQLModel{ID: "ns-1", WarehouseID: "wh-1"}
	entity := model.ToEntity(map[string]string{"owner": "alice"})

	assert.Nil(t, entity.ParentID)
	assert.Equal(t, "ns-1", entity.ID)
	assert.Equal(t, "alice", entity.Properties["owner"])
}
