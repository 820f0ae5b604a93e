package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParentKind_WalksHierarchy(t *testing.T) {
	cases := []struct {
		kind   ResourceKind
		parent ResourceKind
		hasParent bool
	}{
		{KindTable, KindNamespace, true},
		{KindView, KindNamespace, true},
		{KindNamespace, KindWarehouse, true},
		{KindWarehouse, KindProject, true},
		{KindProject, KindServer, true},
		{KindServer, "", false},
	}

	for _, tc := range cases {
		parent, ok := ParentKind(tc.kind)
		assert.Equal(t, tc.hasParent, ok, tc.kind)
		assert.Equal(t, tc.parent, parent, tc.kind)
	}
}

func TestGrantActionFor(t *testing.T) {
	assert.Equal(t, Action("grant-admin"), GrantActionFor(RelationAdmin))
	assert.Equal(t, Action("grant-select"), GrantActionFor(RelationSelect))
}
