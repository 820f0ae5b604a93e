package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel/trace"

	"github.com/lakekeeper/catalog/internal/domain/warehouse"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
)

// WarehouseRepository is the PostgreSQL-backed warehouse.Repository.
type WarehouseRepository struct {
	conn *Connection
}

// NewWarehouseRepository builds a WarehouseRepository over conn.
func NewWarehouseRepository(conn *Connection) *WarehouseRepository {
	return &WarehouseRepository{conn: conn}
}

var warehouseColumns = []string{
	"id", "project_id", "name", "status", "storage_profile", "storage_flavor",
	"protected", "created_at", "updated_at", "deleted_at",
}

func scanWarehouse(row interface{ Scan(...any) error }) (*warehouse.Warehouse, []byte, error) {
	m := &warehouse.PostgreSQLModel{}

	if err := row.Scan(
		&m.ID, &m.ProjectID, &m.Name, &m.Status, &m.StorageProfile, &m.StorageFlavor,
		&m.Protected, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt,
	); err != nil {
		return nil, nil, err
	}

	return m.ToEntity(), m.StorageProfile, nil
}

func (r *WarehouseRepository) Create(ctx context.Context, w *warehouse.Warehouse, profile []byte, flavor string) (*warehouse.Warehouse, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.create")
	defer span.End()

	query, args, err := psql.Insert("warehouse").
		Columns("id", "project_id", "name", "status", "storage_profile", "storage_flavor", "protected", "created_at", "updated_at").
		Values(w.ID, w.ProjectID, w.Name, string(w.Status), profile, flavor, w.Protected, w.CreatedAt, w.UpdatedAt).
		Suffix("RETURNING " + columnList(warehouseColumns)).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build insert", err)
	}

	out, _, err := scanWarehouse(r.conn.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		obs.HandleSpanError(&span, "insert warehouse failed", err)
		return nil, translatePGError(err, "warehouse")
	}

	return out, nil
}

func (r *WarehouseRepository) Find(ctx context.Context, id string) (*warehouse.Warehouse, []byte, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.find")
	defer span.End()

	query, args, err := psql.Select(warehouseColumns...).
		From("warehouse").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, nil, errs.NewInternal("build select", err)
	}

	out, profile, err := scanWarehouse(r.conn.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errs.NewNotFound("warehouse", "", err)
		}

		obs.HandleSpanError(&span, "select warehouse failed", err)

		return nil, nil, translatePGError(err, "warehouse")
	}

	return out, profile, nil
}

func (r *WarehouseRepository) FindByName(ctx context.Context, projectID, name string) (*warehouse.Warehouse, []byte, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.find_by_name")
	defer span.End()

	query, args, err := psql.Select(warehouseColumns...).
		From("warehouse").
		Where(squirrel.Eq{"project_id": projectID, "name": name}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return nil, nil, errs.NewInternal("build select", err)
	}

	out, profile, err := scanWarehouse(r.conn.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errs.NewNotFound("warehouse", "", err)
		}

		obs.HandleSpanError(&span, "select warehouse by name failed", err)

		return nil, nil, translatePGError(err, "warehouse")
	}

	return out, profile, nil
}

// ListByProject returns every warehouse in projectID. Unpaginated: a
// project's warehouse count is small and operator-controlled, unlike
// namespace/tabular counts.
func (r *WarehouseRepository) ListByProject(ctx context.Context, projectID string) ([]*warehouse.Warehouse, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.list_by_project")
	defer span.End()

	query, args, err := psql.Select(warehouseColumns...).
		From("warehouse").
		Where(squirrel.Eq{"project_id": projectID}).
		Where("deleted_at IS NULL").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "list warehouses failed", err)
		return nil, translatePGError(err, "warehouse")
	}
	defer rows.Close()

	var out []*warehouse.Warehouse

	for rows.Next() {
		w, _, err := scanWarehouse(rows)
		if err != nil {
			return nil, errs.NewInternal("scan warehouse", err)
		}

		out = append(out, w)
	}

	return out, rows.Err()
}

func (r *WarehouseRepository) UpdateStorageProfile(ctx context.Context, id string, profile []byte, flavor string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.update_storage_profile")
	defer span.End()

	return r.exec(ctx, &span, psql.Update("warehouse").
		Set("storage_profile", profile).
		Set("storage_flavor", flavor).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}))
}

func (r *WarehouseRepository) SetStatus(ctx context.Context, id string, status warehouse.Status) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.set_status")
	defer span.End()

	return r.exec(ctx, &span, psql.Update("warehouse").
		Set("status", string(status)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}))
}

func (r *WarehouseRepository) SetProtected(ctx context.Context, id string, protected bool) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.set_protected")
	defer span.End()

	return r.exec(ctx, &span, psql.Update("warehouse").
		Set("protected", protected).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}))
}

func (r *WarehouseRepository) Rename(ctx context.Context, id, name string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.rename")
	defer span.End()

	return r.exec(ctx, &span, psql.Update("warehouse").
		Set("name", name).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}))
}

func (r *WarehouseRepository) Delete(ctx context.Context, id string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.warehouse.delete")
	defer span.End()

	return r.exec(ctx, &span, psql.Update("warehouse").
		Set("deleted_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}))
}

func (r *WarehouseRepository) exec(ctx context.Context, span *trace.Span, builder squirrel.UpdateBuilder) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return errs.NewInternal("build update", err)
	}

	result, err := r.conn.DB().ExecContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(span, "update warehouse failed", err)
		return translatePGError(err, "warehouse")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return errs.NewInternal("rows affected", err)
	}

	if n == 0 {
		return errs.NewNotFound("warehouse", "", nil)
	}

	return nil
}

func columnList(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}

		out += c
	}

	return out
}
