package check

import (
	"context"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	domaincheck "github.com/lakekeeper/catalog/internal/domain/check"
	"github.com/lakekeeper/catalog/internal/domain/namespace"
	"github.com/lakekeeper/catalog/internal/domain/project"
	domaintabular "github.com/lakekeeper/catalog/internal/domain/tabular"
	"github.com/lakekeeper/catalog/internal/domain/warehouse"
	"github.com/lakekeeper/catalog/internal/errs"
)

// tabularFinder is the subset of the tabular store the resolver needs to
// turn a namespace+name reference into a concrete tabular id.
type tabularFinder interface {
	FindByName(ctx context.Context, namespaceID, name string, includeStaged, includeDeleted bool) (*domaintabular.Tabular, error)
}

// NameResolver implements Resolver by walking each resource kind's
// name-addressed lookup: a project by id only (projects have no name
// index here), a warehouse by (projectID, name), a namespace by
// (warehouseID, name-path), and a table/view by (namespaceID, name).
type NameResolver struct {
	projects   project.Repository
	warehouses warehouse.Repository
	namespaces namespace.Repository
	tabulars   tabularFinder
}

// NewNameResolver builds a NameResolver over the given repositories.
func NewNameResolver(projects project.Repository, warehouses warehouse.Repository, namespaces namespace.Repository, tabulars tabularFinder) *NameResolver {
	return &NameResolver{projects: projects, warehouses: warehouses, namespaces: namespaces, tabulars: tabulars}
}

// Resolve implements check.Resolver.
func (r *NameResolver) Resolve(ctx context.Context, ref domaincheck.ResourceRef) (string, bool, error) {
	if ref.ID != nil {
		return *ref.ID, true, nil
	}

	if ref.Name == nil {
		return "", false, nil
	}

	switch ref.Kind {
	case authz.KindWarehouse:
		if ref.WarehouseID == nil {
			return "", false, nil
		}

		w, _, err := r.warehouses.FindByName(ctx, *ref.WarehouseID, *ref.Name)
		if isNotFound(err) {
			return "", false, nil
		} else if err != nil {
			return "", false, err
		}

		return w.ID, true, nil

	case authz.KindNamespace:
		if ref.WarehouseID == nil {
			return "", false, nil
		}

		ns, err := r.namespaces.FindByName(ctx, *ref.WarehouseID, append(append([]string{}, ref.Namespace...), *ref.Name))
		if isNotFound(err) {
			return "", false, nil
		} else if err != nil {
			return "", false, err
		}

		return ns.ID, true, nil

	case authz.KindTable, authz.KindView:
		if ref.WarehouseID == nil || len(ref.Namespace) == 0 {
			return "", false, nil
		}

		ns, err := r.namespaces.FindByName(ctx, *ref.WarehouseID, ref.Namespace)
		if isNotFound(err) {
			return "", false, nil
		} else if err != nil {
			return "", false, err
		}

		t, err := r.tabulars.FindByName(ctx, ns.ID, *ref.Name, false, false)
		if isNotFound(err) {
			return "", false, nil
		} else if err != nil {
			return "", false, err
		}

		return t.ID, true, nil

	default:
		return "", false, nil
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	_, ok := err.(errs.NotFoundError)

	return ok
}
