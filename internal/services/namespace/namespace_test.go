package namespace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog/internal/domain/namespace"
	"github.com/lakekeeper/catalog/internal/errs"
)

// fakeRepo implements namespace.Repository with just enough behavior for
// Drop's decision logic; every other method is unused by these tests.
type fakeRepo struct {
	plan    *namespace.DropPlan
	planErr error

	deleted          bool
	deletedID        string
	deletedRecursive bool
	purgedTabulars   []string
}

func (f *fakeRepo) Create(context.Context, *namespace.Namespace) (*namespace.Namespace, error) {
	return nil, nil
}

func (f *fakeRepo) Find(context.Context, string) (*namespace.Namespace, error) { return nil, nil }

func (f *fakeRepo) FindByName(context.Context, string, []string) (*namespace.Namespace, error) {
	return nil, errs.NewNotFound("namespace", "", nil)
}

func (f *fakeRepo) ListChildren(context.Context, string, *string, int, string) ([]*namespace.Namespace, string, error) {
	return nil, "", nil
}

func (f *fakeRepo) ListDescendants(context.Context, string, string) ([]*namespace.Namespace, error) {
	return nil, nil
}

func (f *fakeRepo) SetProperties(context.Context, string, map[string]string) error { return nil }

func (f *fakeRepo) SetProtected(context.Context, string, bool) error { return nil }

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	f.deleted = true
	f.deletedID = id

	return nil
}

func (f *fakeRepo) DeleteRecursive(_ context.Context, _, _ string, tabularIDs []string) error {
	f.deletedRecursive = true
	f.purgedTabulars = tabularIDs

	return nil
}

func (f *fakeRepo) Plan(context.Context, string, string) (*namespace.DropPlan, error) {
	return f.plan, f.planErr
}

func newPlan(ns *namespace.Namespace) *namespace.DropPlan {
	return &namespace.DropPlan{Namespace: ns}
}

func TestDrop_NonRecursiveWithChildNamespaces_RejectsNamespaceNotEmpty(t *testing.T) {
	plan := newPlan(&namespace.Namespace{ID: "ns-1"})
	plan.ChildNamespaces = []*namespace.Namespace{{ID: "ns-2"}}

	repo := &fakeRepo{plan: plan}
	svc := NewService(repo, nil)

	_, err := svc.Drop(context.Background(), "wh-1", "ns-1", false, false)

	require.Error(t, err)
	_, ok := err.(errs.ConflictError)
	assert.True(t, ok)
	assert.False(t, repo.deleted)
}

func TestDrop_NonRecursiveWithChildTabulars_RejectsNamespaceNotEmpty(t *testing.T) {
	plan := newPlan(&namespace.Namespace{ID: "ns-1"})
	plan.ChildTabulars = []namespace.ChildTabular{{ID: "tbl-1", Name: "t1"}}

	repo := &fakeRepo{plan: plan}
	svc := NewService(repo, nil)

	_, err := svc.Drop(context.Background(), "wh-1", "ns-1", false, false)

	require.Error(t, err)
	assert.False(t, repo.deleted)
}

func TestDrop_ProtectedNamespace_RejectsUnlessForced(t *testing.T) {
	plan := newPlan(&namespace.Namespace{ID: "ns-1", Protected: true})
	repo := &fakeRepo{plan: plan}
	svc := NewService(repo, nil)

	_, err := svc.Drop(context.Background(), "wh-1", "ns-1", false, false)
	require.Error(t, err)
	assert.False(t, repo.deleted)

	result, err := svc.Drop(context.Background(), "wh-1", "ns-1", false, true)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, repo.deleted)
}

func TestDrop_ProtectedChildTabular_RejectsUnlessForced(t *testing.T) {
	plan := newPlan(&namespace.Namespace{ID: "ns-1"})
	plan.ChildTabulars = []namespace.ChildTabular{{ID: "tbl-1", Protected: true}}
	repo := &fakeRepo{plan: plan}
	svc := NewService(repo, nil)

	_, err := svc.Drop(context.Background(), "wh-1", "ns-1", true, false)
	require.Error(t, err)
	assert.False(t, repo.deletedRecursive)

	result, err := svc.Drop(context.Background(), "wh-1", "ns-1", true, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"tbl-1"}, result.ChildTables)
	assert.True(t, repo.deletedRecursive)
	assert.Equal(t, []string{"tbl-1"}, repo.purgedTabulars)
}

func TestDrop_OpenTasks_RejectsUnlessForced(t *testing.T) {
	plan := newPlan(&namespace.Namespace{ID: "ns-1"})
	plan.ChildTabulars = []namespace.ChildTabular{{ID: "tbl-1"}}
	plan.OpenTaskIDs = []string{"task-1"}
	repo := &fakeRepo{plan: plan}
	svc := NewService(repo, nil)

	_, err := svc.Drop(context.Background(), "wh-1", "ns-1", true, false)
	require.Error(t, err)

	result, err := svc.Drop(context.Background(), "wh-1", "ns-1", true, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"task-1"}, result.OpenTasks)
}

func TestDrop_Recursive_ReturnsChildNamespacesAndTables(t *testing.T) {
	plan := newPlan(&namespace.Namespace{ID: "ns-1"})
	plan.ChildNamespaces = []*namespace.Namespace{{ID: "ns-2"}, {ID: "ns-3"}}
	plan.ChildTabulars = []namespace.ChildTabular{{ID: "tbl-1"}, {ID: "tbl-2"}}

	repo := &fakeRepo{plan: plan}
	svc := NewService(repo, nil)

	result, err := svc.Drop(context.Background(), "wh-1", "ns-1", true, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ns-2", "ns-3"}, result.ChildNamespaces)
	assert.ElementsMatch(t, []string{"tbl-1", "tbl-2"}, result.ChildTables)
	assert.True(t, repo.deletedRecursive)
}

func TestDrop_PlanError_PropagatesWithoutDeleting(t *testing.T) {
	repo := &fakeRepo{planErr: errs.NewNotFound("namespace", "", nil)}
	svc := NewService(repo, nil)

	_, err := svc.Drop(context.Background(), "wh-1", "ns-1", false, false)
	require.Error(t, err)
	assert.False(t, repo.deleted)
	assert.False(t, repo.deletedRecursive)
}
