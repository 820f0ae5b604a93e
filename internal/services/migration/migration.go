// Package migration implements the online authorization-model rewrite:
// relation tuples naming a tabular object switch from a bare tabular id
// to a warehouse-prefixed one ("{warehouse_id}/{tabular_id}"), without
// deleting the original tuples, so old and new readers both keep
// working until a later, separate cleanup sweep removes the originals.
package migration

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/domain/namespace"
	"github.com/lakekeeper/catalog/internal/domain/project"
	"github.com/lakekeeper/catalog/internal/domain/tabular"
	"github.com/lakekeeper/catalog/internal/domain/warehouse"
	"github.com/lakekeeper/catalog/internal/obs"
)

// TupleStore is the relation-store slice the migration needs: reading
// every tuple naming a tabular object, and batch-writing rewritten ones.
type TupleStore interface {
	TuplesForObject(ctx context.Context, kind authz.ResourceKind, id string) ([]authz.Tuple, error)
	Write(ctx context.Context, tuples []authz.Tuple) error
}

// ProjectLister, WarehouseLister, NamespaceLister, and TabularLister are
// the narrow read slices of the metadata store the forest walk needs.
type ProjectLister interface {
	ListAll(ctx context.Context) ([]*project.Project, error)
}

type WarehouseLister interface {
	ListByProject(ctx context.Context, projectID string) ([]*warehouse.Warehouse, error)
}

type NamespaceLister interface {
	ListChildren(ctx context.Context, warehouseID string, parentID *string, pageSize int, cursor string) ([]*namespace.Namespace, string, error)
}

type TabularLister interface {
	ListByNamespace(ctx context.Context, namespaceID string, flags tabular.ListFlags, limit int, cursor string) ([]*tabular.Tabular, string, error)
}

// Service runs the forest walk and tuple rewrite described above.
type Service struct {
	projects   ProjectLister
	warehouses WarehouseLister
	namespaces NamespaceLister
	tabulars   TabularLister
	tuples     TupleStore

	concurrency int
	pageSize    int
	batchSize   int
}

// NewService builds a Service. concurrency bounds the number of
// warehouses walked at once (default 10 if <= 0); pageSize bounds each
// metadata-store page read (default 100); batchSize bounds each tuple
// write (default 50, per the procedure's batch ceiling).
func NewService(projects ProjectLister, warehouses WarehouseLister, namespaces NamespaceLister, tabulars TabularLister, tuples TupleStore, concurrency, pageSize, batchSize int) *Service {
	if concurrency <= 0 {
		concurrency = 10
	}

	if pageSize <= 0 {
		pageSize = 100
	}

	if batchSize <= 0 {
		batchSize = 50
	}

	return &Service{
		projects: projects, warehouses: warehouses, namespaces: namespaces,
		tabulars: tabulars, tuples: tuples,
		concurrency: concurrency, pageSize: pageSize, batchSize: batchSize,
	}
}

// Run walks every project's warehouses with bounded concurrency, and
// within each warehouse walks its namespace tree breadth-first,
// rewriting every tabular tuple it finds along the way. Safe to run
// more than once: rewriting an already-prefixed tuple is a no-op.
func (s *Service) Run(ctx context.Context) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "migration.run")
	defer span.End()

	projects, err := s.projects.ListAll(ctx)
	if err != nil {
		obs.HandleSpanError(&span, "list projects failed", err)
		return err
	}

	var warehouses []*warehouse.Warehouse

	for _, p := range projects {
		ws, err := s.warehouses.ListByProject(ctx, p.ID)
		if err != nil {
			obs.HandleSpanError(&span, "list warehouses failed", err)
			return err
		}

		warehouses = append(warehouses, ws...)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, w := range warehouses {
		w := w

		group.Go(func() error {
			return s.walkWarehouse(gctx, w.ID)
		})
	}

	return group.Wait()
}

// walkWarehouse breadth-first enumerates w's namespace tree, rewriting
// tuples for every table/view it finds along the way.
func (s *Service) walkWarehouse(ctx context.Context, warehouseID string) error {
	queue := []*string{nil}

	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]

		cursor := ""
		for {
			children, next, err := s.namespaces.ListChildren(ctx, warehouseID, parentID, s.pageSize, cursor)
			if err != nil {
				return err
			}

			for _, ns := range children {
				id := ns.ID
				queue = append(queue, &id)

				if err := s.rewriteNamespaceTabulars(ctx, warehouseID, ns.ID); err != nil {
					return err
				}
			}

			if next == "" {
				break
			}

			cursor = next
		}
	}

	return nil
}

// rewriteNamespaceTabulars pages through every table and view in
// namespaceID and rewrites each one's tuples.
func (s *Service) rewriteNamespaceTabulars(ctx context.Context, warehouseID, namespaceID string) error {
	cursor := ""

	for {
		tabulars, next, err := s.tabulars.ListByNamespace(ctx, namespaceID, tabular.ListFlags{IncludeStaged: true, IncludeDeleted: true}, s.pageSize, cursor)
		if err != nil {
			return err
		}

		var batch []authz.Tuple

		for _, t := range tabulars {
			kind := authz.ResourceKind(t.Kind)

			tuples, err := s.tuples.TuplesForObject(ctx, kind, t.ID)
			if err != nil {
				return err
			}

			for _, tup := range tuples {
				rewritten, changed := rewriteObjectID(tup, warehouseID)
				if !changed {
					continue
				}

				batch = append(batch, rewritten)

				if len(batch) >= s.batchSize {
					if err := s.tuples.Write(ctx, batch); err != nil {
						return err
					}

					batch = nil
				}
			}
		}

		if len(batch) > 0 {
			if err := s.tuples.Write(ctx, batch); err != nil {
				return err
			}
		}

		if next == "" {
			break
		}

		cursor = next
	}

	return nil
}

// rewriteObjectID injects warehouseID into tup's object id, unless it
// already carries a prefix (idempotent re-run).
func rewriteObjectID(tup authz.Tuple, warehouseID string) (authz.Tuple, bool) {
	if strings.Contains(tup.Object.ID, "/") {
		return tup, false
	}

	tup.Object.ID = warehouseID + "/" + tup.Object.ID

	return tup, true
}
