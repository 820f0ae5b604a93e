package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/lakekeeper/catalog/internal/domain/namespace"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/httputil"
	"github.com/lakekeeper/catalog/internal/obs"
)

// NamespaceRepository is the PostgreSQL-backed namespace.Repository.
type NamespaceRepository struct {
	conn *Connection
}

// NewNamespaceRepository builds a NamespaceRepository over conn.
func NewNamespaceRepository(conn *Connection) *NamespaceRepository {
	return &NamespaceRepository{conn: conn}
}

var namespaceColumns = []string{
	"id", "warehouse_id", "parent_id", "name", "name_canonical",
	"properties", "protected", "created_at", "updated_at",
}

func scanNamespace(row interface{ Scan(...any) error }) (*namespace.Namespace, error) {
	m := &namespace.PostgreSQLModel{}

	var nameArr pq.StringArray
	var propsJSON []byte

	if err := row.Scan(
		&m.ID, &m.WarehouseID, &m.ParentID, &nameArr, &m.NameCanonical,
		&propsJSON, &m.Protected, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Name = []string(nameArr)

	props := map[string]string{}
	if len(propsJSON) > 0 {
		if err := json.Unmarshal(propsJSON, &props); err != nil {
			return nil, errs.NewInternal("decode namespace properties", err)
		}
	}

	return m.ToEntity(props), nil
}

func (r *NamespaceRepository) Create(ctx context.Context, ns *namespace.Namespace) (*namespace.Namespace, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.create")
	defer span.End()

	propsJSON, err := json.Marshal(ns.Properties)
	if err != nil {
		return nil, errs.NewBadRequest("namespace", "invalid properties", err)
	}

	var parentID sql.NullString
	if ns.ParentID != nil {
		parentID = sql.NullString{String: *ns.ParentID, Valid: true}
	}

	query, args, err := psql.Insert("namespace").
		Columns("id", "warehouse_id", "parent_id", "name", "name_canonical", "properties", "protected", "created_at", "updated_at").
		Values(ns.ID, ns.WarehouseID, parentID, pq.Array(ns.Name), namespace.Canonical(ns.Name), propsJSON, ns.Protected, ns.CreatedAt, ns.UpdatedAt).
		Suffix("RETURNING " + columnList(namespaceColumns)).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build insert", err)
	}

	out, err := scanNamespace(r.conn.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		obs.HandleSpanError(&span, "insert namespace failed", err)
		return nil, translatePGError(err, "namespace")
	}

	return out, nil
}

func (r *NamespaceRepository) Find(ctx context.Context, id string) (*namespace.Namespace, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.find")
	defer span.End()

	query, args, err := psql.Select(namespaceColumns...).
		From("namespace").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	out, err := scanNamespace(r.conn.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFound("namespace", "", err)
		}

		obs.HandleSpanError(&span, "select namespace failed", err)

		return nil, translatePGError(err, "namespace")
	}

	return out, nil
}

func (r *NamespaceRepository) FindByName(ctx context.Context, warehouseID string, name []string) (*namespace.Namespace, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.find_by_name")
	defer span.End()

	query, args, err := psql.Select(namespaceColumns...).
		From("namespace").
		Where(squirrel.Eq{"warehouse_id": warehouseID, "name_canonical": namespace.Canonical(name)}).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	out, err := scanNamespace(r.conn.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFound("namespace", "", err)
		}

		obs.HandleSpanError(&span, "select namespace by name failed", err)

		return nil, translatePGError(err, "namespace")
	}

	return out, nil
}

func (r *NamespaceRepository) ListChildren(ctx context.Context, warehouseID string, parentID *string, pageSize int, cursor string) ([]*namespace.Namespace, string, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.list_children")
	defer span.End()

	cur, err := httputil.DecodeCursor(cursor)
	if err != nil {
		return nil, "", errs.NewBadRequest("namespace", "invalid page token", err)
	}

	query := psql.Select(namespaceColumns...).From("namespace").Where(squirrel.Eq{"warehouse_id": warehouseID})

	if parentID != nil {
		query = query.Where(squirrel.Eq{"parent_id": *parentID})
	} else {
		query = query.Where("parent_id IS NULL")
	}

	query, _ = httputil.ApplyCursorPagination(query, cur, "ASC", pageSize)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, "", errs.NewInternal("build select", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		obs.HandleSpanError(&span, "list namespaces failed", err)
		return nil, "", translatePGError(err, "namespace")
	}
	defer rows.Close()

	var out []*namespace.Namespace

	for rows.Next() {
		n, err := scanNamespace(rows)
		if err != nil {
			return nil, "", errs.NewInternal("scan namespace", err)
		}

		out = append(out, n)
	}

	if err := rows.Err(); err != nil {
		return nil, "", errs.NewInternal("iterate namespaces", err)
	}

	hasMore := len(out) > pageSize
	out = httputil.PaginateRecords(cursor == "", hasMore, cur.PointsNext, out, pageSize, "ASC")

	nextToken := ""
	if hasMore && len(out) > 0 {
		last := out[len(out)-1]
		nc := httputil.CreateCursor(last.CreatedAt, last.ID, true)
		if nextToken, err = httputil.EncodeCursor(nc); err != nil {
			return nil, "", errs.NewInternal("encode cursor", err)
		}
	}

	return out, nextToken, nil
}

func (r *NamespaceRepository) ListDescendants(ctx context.Context, warehouseID, rootID string) ([]*namespace.Namespace, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.list_descendants")
	defer span.End()

	// Descendants are resolved via array-prefix predicates over the root's
	// ordered name components rather than a recursive CTE, since the name
	// is already a bounded-depth ordered array.
	root, err := r.Find(ctx, rootID)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.Select(namespaceColumns...).
		From("namespace").
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		Where(squirrel.Expr("name[1:?] = ?", len(root.Name), pq.Array(root.Name))).
		Where(squirrel.Expr("array_length(name, 1) > ?", len(root.Name))).
		OrderBy("array_length(name, 1) ASC").
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "list descendants failed", err)
		return nil, translatePGError(err, "namespace")
	}
	defer rows.Close()

	var out []*namespace.Namespace

	for rows.Next() {
		n, err := scanNamespace(rows)
		if err != nil {
			return nil, errs.NewInternal("scan namespace", err)
		}

		out = append(out, n)
	}

	return out, rows.Err()
}

func (r *NamespaceRepository) SetProperties(ctx context.Context, id string, properties map[string]string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.set_properties")
	defer span.End()

	propsJSON, err := json.Marshal(properties)
	if err != nil {
		return errs.NewBadRequest("namespace", "invalid properties", err)
	}

	query, args, err := psql.Update("namespace").
		Set("properties", propsJSON).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errs.NewInternal("build update", err)
	}

	result, err := r.conn.DB().ExecContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "set properties failed", err)
		return translatePGError(err, "namespace")
	}

	return checkRowsAffected(result, "namespace")
}

func (r *NamespaceRepository) SetProtected(ctx context.Context, id string, protected bool) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.set_protected")
	defer span.End()

	query, args, err := psql.Update("namespace").
		Set("protected", protected).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errs.NewInternal("build update", err)
	}

	result, err := r.conn.DB().ExecContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "set protected failed", err)
		return translatePGError(err, "namespace")
	}

	return checkRowsAffected(result, "namespace")
}

func (r *NamespaceRepository) Delete(ctx context.Context, id string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.delete")
	defer span.End()

	query, args, err := psql.Delete("namespace").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return errs.NewInternal("build delete", err)
	}

	result, err := r.conn.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errs.NewConflict("namespace", "namespace is not empty", err)
		}

		obs.HandleSpanError(&span, "delete namespace failed", err)

		return translatePGError(err, "namespace")
	}

	return checkRowsAffected(result, "namespace")
}

func (r *NamespaceRepository) DeleteRecursive(ctx context.Context, warehouseID, rootID string, tabularIDs []string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.delete_recursive")
	defer span.End()

	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	root, err := r.Find(ctx, rootID)
	if err != nil {
		return err
	}

	if len(tabularIDs) > 0 {
		purgeQuery, purgeArgs, err := psql.Delete("tabular").Where(squirrel.Eq{"id": tabularIDs}).ToSql()
		if err != nil {
			return errs.NewInternal("build delete", err)
		}

		if _, err := tx.ExecContext(ctx, purgeQuery, purgeArgs...); err != nil {
			obs.HandleSpanError(&span, "delete recursive failed", err)
			return translatePGError(err, "namespace")
		}
	}

	query, args, err := psql.Delete("namespace").
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		Where(squirrel.Expr("name[1:?] = ?", len(root.Name), pq.Array(root.Name))).
		ToSql()
	if err != nil {
		return errs.NewInternal("build delete", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		obs.HandleSpanError(&span, "delete recursive failed", err)
		return translatePGError(err, "namespace")
	}

	if err := tx.Commit(); err != nil {
		return errs.NewInternal("commit transaction", err)
	}

	return nil
}

// Plan enumerates everything a drop_namespace call needs before deciding
// whether to proceed: the namespace, its descendant namespaces, every
// live tabular nested anywhere under it, and any cleanup/expiration task
// still scheduled or running against one of those tabulars.
func (r *NamespaceRepository) Plan(ctx context.Context, warehouseID, id string) (*namespace.DropPlan, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.namespace.plan")
	defer span.End()

	root, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	descendants, err := r.ListDescendants(ctx, warehouseID, id)
	if err != nil {
		return nil, err
	}

	nsIDs := make([]string, 0, len(descendants)+1)
	nsIDs = append(nsIDs, root.ID)

	for _, d := range descendants {
		nsIDs = append(nsIDs, d.ID)
	}

	query, args, err := psql.Select("id", "name", "kind", "protected").
		From("tabular").
		Where(squirrel.Eq{"namespace_id": nsIDs}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "plan namespace drop failed", err)
		return nil, translatePGError(err, "namespace")
	}
	defer rows.Close()

	var tabulars []namespace.ChildTabular

	for rows.Next() {
		var ct namespace.ChildTabular
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Kind, &ct.Protected); err != nil {
			return nil, errs.NewInternal("scan child tabular", err)
		}

		tabulars = append(tabulars, ct)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.NewInternal("iterate child tabulars", err)
	}

	var openTaskIDs []string

	if len(tabulars) > 0 {
		tabularIDs := make([]string, len(tabulars))
		for i, t := range tabulars {
			tabularIDs[i] = t.ID
		}

		taskQuery, taskArgs, err := psql.Select("id").
			From("task").
			Where(squirrel.Eq{"entity_id": tabularIDs}).
			Where(squirrel.Eq{"status": []string{"scheduled", "running"}}).
			ToSql()
		if err != nil {
			return nil, errs.NewInternal("build select", err)
		}

		taskRows, err := r.conn.DB().QueryContext(ctx, taskQuery, taskArgs...)
		if err != nil {
			obs.HandleSpanError(&span, "plan namespace drop failed", err)
			return nil, translatePGError(err, "namespace")
		}
		defer taskRows.Close()

		for taskRows.Next() {
			var taskID string
			if err := taskRows.Scan(&taskID); err != nil {
				return nil, errs.NewInternal("scan open task", err)
			}

			openTaskIDs = append(openTaskIDs, taskID)
		}

		if err := taskRows.Err(); err != nil {
			return nil, errs.NewInternal("iterate open tasks", err)
		}
	}

	return &namespace.DropPlan{
		Namespace:       root,
		ChildNamespaces: descendants,
		ChildTabulars:   tabulars,
		OpenTaskIDs:     openTaskIDs,
	}, nil
}

func checkRowsAffected(result sql.Result, entityType string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errs.NewInternal("rows affected", err)
	}

	if n == 0 {
		return errs.NewNotFound(entityType, "", nil)
	}

	return nil
}
