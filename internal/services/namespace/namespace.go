// Package namespace orchestrates namespace create/list/properties/
// protection/drop (including recursive drop) on top of
// namespace.Repository, enforcing the depth bound and protected-subtree
// guard the domain model documents but does not itself check.
package namespace

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/domain/namespace"
	"github.com/lakekeeper/catalog/internal/errs"
	svcauthz "github.com/lakekeeper/catalog/internal/services/authz"
)

// Service implements the namespace-management use cases.
type Service struct {
	repo  namespace.Repository
	guard *svcauthz.Guard
}

// NewService builds a Service over repo and guard.
func NewService(repo namespace.Repository, guard *svcauthz.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// Create inserts a namespace under warehouseID (and optionally parentID),
// rejecting names past MaxDepth, and grants subject ownership over it.
func (s *Service) Create(ctx context.Context, subject authz.Subject, warehouseID string, parentID *string, in namespace.CreateNamespaceInput) (*namespace.Namespace, error) {
	if len(in.Name) == 0 || len(in.Name) > namespace.MaxDepth {
		return nil, errs.NewBadRequest("namespace", "name depth out of bounds", nil)
	}

	if _, err := s.repo.FindByName(ctx, warehouseID, in.Name); err == nil {
		return nil, errs.NewConflict("namespace", "a namespace with this name already exists", nil)
	} else if !isNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()

	ns := &namespace.Namespace{
		ID:          uuid.NewString(),
		WarehouseID: warehouseID,
		ParentID:    parentID,
		Name:        in.Name,
		Properties:  in.Properties,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.repo.Create(ctx, ns)
	if err != nil {
		return nil, err
	}

	if err := s.guard.GrantOwnership(ctx, subject, authz.ObjectRef{Kind: authz.KindNamespace, ID: created.ID}); err != nil {
		return nil, err
	}

	return created, nil
}

// Find looks up a namespace by id.
func (s *Service) Find(ctx context.Context, id string) (*namespace.Namespace, error) {
	return s.repo.Find(ctx, id)
}

// ListChildren returns a page of warehouseID's namespaces directly under
// parentID (nil for the root level).
func (s *Service) ListChildren(ctx context.Context, warehouseID string, parentID *string, pageSize int, cursor string) ([]*namespace.Namespace, string, error) {
	return s.repo.ListChildren(ctx, warehouseID, parentID, pageSize, cursor)
}

// SetProperties replaces a namespace's property bag.
func (s *Service) SetProperties(ctx context.Context, id string, properties map[string]string) error {
	return s.repo.SetProperties(ctx, id, properties)
}

// SetProtected toggles a namespace's protection flag.
func (s *Service) SetProtected(ctx context.Context, id string, protected bool) error {
	return s.repo.SetProtected(ctx, id, protected)
}

// Drop removes a namespace. Plan enumerates its descendant namespaces,
// every live tabular nested under it, and any cleanup/expiration task
// still scheduled or running against one of those tabulars.
//
// Without recursive, any descendant namespace or tabular rejects with
// NamespaceNotEmpty. A protected namespace, protected descendant
// namespace, or protected child tabular rejects unless force is set.
// An in-flight cleanup task against a nested tabular likewise rejects
// unless force is set. recursive additionally removes every descendant
// namespace and tabular found by Plan.
func (s *Service) Drop(ctx context.Context, warehouseID, id string, recursive, force bool) (*namespace.DropResult, error) {
	plan, err := s.repo.Plan(ctx, warehouseID, id)
	if err != nil {
		return nil, err
	}

	if !recursive && (len(plan.ChildNamespaces) > 0 || len(plan.ChildTabulars) > 0) {
		return nil, errs.NewConflict("namespace", "namespace is not empty", nil)
	}

	if plan.AnyProtected() && !force {
		return nil, errs.NewConflict("namespace", "namespace or a descendant is protected", nil)
	}

	if len(plan.OpenTaskIDs) > 0 && !force {
		return nil, errs.NewConflict("namespace", "namespace has running tabular expirations", nil)
	}

	result := &namespace.DropResult{
		ChildNamespaces: namespaceIDs(plan.ChildNamespaces),
		ChildTables:     tabularIDs(plan.ChildTabulars),
		OpenTasks:       plan.OpenTaskIDs,
	}

	if recursive {
		if err := s.repo.DeleteRecursive(ctx, warehouseID, id, result.ChildTables); err != nil {
			return nil, err
		}

		return result, nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	return result, nil
}

func namespaceIDs(namespaces []*namespace.Namespace) []string {
	ids := make([]string, len(namespaces))
	for i, n := range namespaces {
		ids[i] = n.ID
	}

	return ids
}

func tabularIDs(tabulars []namespace.ChildTabular) []string {
	ids := make([]string, len(tabulars))
	for i, t := range tabulars {
		ids[i] = t.ID
	}

	return ids
}

func isNotFound(err error) bool {
	_, ok := err.(errs.NotFoundError)
	return ok
}
