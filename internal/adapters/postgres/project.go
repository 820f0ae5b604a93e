package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/lakekeeper/catalog/internal/domain/project"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// ProjectRepository is the PostgreSQL-backed project.Repository.
type ProjectRepository struct {
	conn *Connection
}

// NewProjectRepository builds a ProjectRepository over conn.
func NewProjectRepository(conn *Connection) *ProjectRepository {
	return &ProjectRepository{conn: conn}
}

func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) (*project.Project, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.project.create")
	defer span.End()

	query, args, err := psql.Insert("project").
		Columns("id", "name", "created_at", "updated_at").
		Values(p.ID, p.Name, p.CreatedAt, p.UpdatedAt).
		Suffix("RETURNING id, name, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build insert", err)
	}

	row := r.conn.DB().QueryRowContext(ctx, query, args...)

	out := &project.Project{}
	if err := row.Scan(&out.ID, &out.Name, &out.CreatedAt, &out.UpdatedAt); err != nil {
		obs.HandleSpanError(&span, "insert project failed", err)
		return nil, translatePGError(err, "project")
	}

	return out, nil
}

func (r *ProjectRepository) Find(ctx context.Context, id string) (*project.Project, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.project.find")
	defer span.End()

	query, args, err := psql.Select("id", "name", "created_at", "updated_at", "deleted_at").
		From("project").
		Where(squirrel.Eq{"id": id}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	row := r.conn.DB().QueryRowContext(ctx, query, args...)

	out := &project.Project{}
	var deletedAt sql.NullTime

	if err := row.Scan(&out.ID, &out.Name, &out.CreatedAt, &out.UpdatedAt, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFound("project", "", err)
		}

		obs.HandleSpanError(&span, "select project failed", err)

		return nil, translatePGError(err, "project")
	}

	if deletedAt.Valid {
		t := deletedAt.Time
		out.DeletedAt = &t
	}

	return out, nil
}

// ListAll returns every project. Unpaginated: a catalog's project count
// is a small, operator-controlled number, unlike namespace/tabular counts.
func (r *ProjectRepository) ListAll(ctx context.Context) ([]*project.Project, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.project.list_all")
	defer span.End()

	query, args, err := psql.Select("id", "name", "created_at", "updated_at").
		From("project").
		Where("deleted_at IS NULL").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "list projects failed", err)
		return nil, translatePGError(err, "project")
	}
	defer rows.Close()

	var out []*project.Project

	for rows.Next() {
		p := &project.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errs.NewInternal("scan project", err)
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.project.delete")
	defer span.End()

	query, args, err := psql.Update("project").
		Set("deleted_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return errs.NewInternal("build update", err)
	}

	result, err := r.conn.DB().ExecContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "delete project failed", err)
		return translatePGError(err, "project")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return errs.NewInternal("rows affected", err)
	}

	if n == 0 {
		return errs.NewNotFound("project", "", nil)
	}

	return nil
}
