package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/domain/namespace"
	"github.com/lakekeeper/catalog/internal/domain/project"
	"github.com/lakekeeper/catalog/internal/domain/tabular"
	"github.com/lakekeeper/catalog/internal/domain/warehouse"
)

type fakeProjects struct{ all []*project.Project }

func (f *fakeProjects) ListAll(context.Context) ([]*project.Project, error) { return f.all, nil }

type fakeWarehouses struct{ byProject map[string][]*warehouse.Warehouse }

func (f *fakeWarehouses) ListByProject(_ context.Context, projectID string) ([]*warehouse.Warehouse, error) {
	return f.byProject[projectID], nil
}

// fakeNamespaces models a flat namespace tree as parentID -> children,
// paginating pageSize records per call to exercise the cursor-advance loop.
type fakeNamespaces struct {
	children map[string][]*namespace.Namespace
}

func key(parentID *string) string {
	if parentID == nil {
		return ""
	}
	return *parentID
}

func (f *fakeNamespaces) ListChildren(_ context.Context, _ string, parentID *string, pageSize int, cursor string) ([]*namespace.Namespace, string, error) {
	all := f.children[key(parentID)]

	start := 0
	if cursor != "" {
		start = atoi(cursor)
	}

	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	page := all[start:end]

	next := ""
	if end < len(all) {
		next = itoa(end)
	}

	return page, next, nil
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

type fakeTabulars struct {
	byNamespace map[string][]*tabular.Tabular
}

func (f *fakeTabulars) ListByNamespace(_ context.Context, namespaceID string, _ tabular.ListFlags, _ int, _ string) ([]*tabular.Tabular, string, error) {
	return f.byNamespace[namespaceID], "", nil
}

type fakeTuples struct {
	byObject map[string][]authz.Tuple
	written  []authz.Tuple
}

func objectKeyOf(kind authz.ResourceKind, id string) string { return string(kind) + ":" + id }

func (f *fakeTuples) TuplesForObject(_ context.Context, kind authz.ResourceKind, id string) ([]authz.Tuple, error) {
	return f.byObject[objectKeyOf(kind, id)], nil
}

func (f *fakeTuples) Write(_ context.Context, tuples []authz.Tuple) error {
	f.written = append(f.written, tuples...)
	return nil
}

func TestRewriteObjectID(t *testing.T) {
	tup := authz.Tuple{
		Subject:  authz.Subject{Type: "user", ID: "alice"},
		Relation: authz.RelationSelect,
		Object:   authz.ObjectRef{Kind: authz.KindTable, ID: "tbl-1"},
	}

	rewritten, changed := rewriteObjectID(tup, "wh-1")
	require.True(t, changed)
	assert.Equal(t, "wh-1/tbl-1", rewritten.Object.ID)

	_, changedAgain := rewriteObjectID(rewritten, "wh-1")
	assert.False(t, changedAgain, "an already-prefixed tuple must not be rewritten again")
}

func TestService_Run_RewritesTabularTuplesAcrossNamespaceTree(t *testing.T) {
	projects := &fakeProjects{all: []*project.Project{{ID: "proj-1"}}}
	warehouses := &fakeWarehouses{byProject: map[string][]*warehouse.Warehouse{
		"proj-1": {{ID: "wh-1", ProjectID: "proj-1"}},
	}}

	ns := &namespace.Namespace{ID: "ns-1", WarehouseID: "wh-1"}
	namespaces := &fakeNamespaces{children: map[string][]*namespace.Namespace{
		"": {ns},
	}}

	tbl := &tabular.Tabular{ID: "tbl-1", NamespaceID: "ns-1", WarehouseID: "wh-1", Kind: tabular.KindTable}
	tabulars := &fakeTabulars{byNamespace: map[string][]*tabular.Tabular{
		"ns-1": {tbl},
	}}

	tuples := &fakeTuples{byObject: map[string][]authz.Tuple{
		objectKeyOf(authz.KindTable, "tbl-1"): {
			{Subject: authz.Subject{Type: "user", ID: "alice"}, Relation: authz.RelationSelect, Object: authz.ObjectRef{Kind: authz.KindTable, ID: "tbl-1"}},
		},
	}}

	svc := NewService(projects, warehouses, namespaces, tabulars, tuples, 2, 10, 50)

	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, tuples.written, 1)
	assert.Equal(t, "wh-1/tbl-1", tuples.written[0].Object.ID)
}

func TestService_Run_EmptyWarehouseWritesNothing(t *testing.T) {
	projects := &fakeProjects{all: []*project.Project{{ID: "proj-1"}}}
	warehouses := &fakeWarehouses{byProject: map[string][]*warehouse.Warehouse{
		"proj-1": {{ID: "wh-1", ProjectID: "proj-1"}},
	}}
	namespaces := &fakeNamespaces{children: map[string][]*namespace.Namespace{}}
	tabulars := &fakeTabulars{byNamespace: map[string][]*tabular.Tabular{}}
	tuples := &fakeTuples{byObject: map[string][]authz.Tuple{}}

	svc := NewService(projects, warehouses, namespaces, tabulars, tuples, 0, 0, 0)

	require.NoError(t, svc.Run(context.Background()))
	assert.Empty(t, tuples.written)
}
