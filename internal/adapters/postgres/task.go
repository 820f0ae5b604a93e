package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/lakekeeper/catalog/internal/domain/task"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
)

// TaskRepository is the PostgreSQL-backed durable task queue: live rows in
// "task", terminal outcomes appended to "task_log" keyed by
// (task_id, attempt), and opaque per-queue configuration in "task_config".
type TaskRepository struct {
	conn *Connection
}

// NewTaskRepository builds a TaskRepository over conn.
func NewTaskRepository(conn *Connection) *TaskRepository {
	return &TaskRepository{conn: conn}
}

type taskMetadataRow struct {
	Warehouse   string     `json:"warehouse"`
	EntityType  string     `json:"entityType"`
	EntityID    string     `json:"entityId"`
	Parent      *string    `json:"parent,omitempty"`
	ScheduleFor *time.Time `json:"scheduleFor,omitempty"`
}

// EnqueueBatch inserts every input, skipping (not re-inserting) any whose
// (warehouse, entity_type, entity_id, queue) already has a live row.
func (r *TaskRepository) EnqueueBatch(ctx context.Context, queue string, inputs []task.TaskInput) ([]string, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.task.enqueue_batch")
	defer span.End()

	if len(inputs) == 0 {
		return nil, nil
	}

	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ids := make([]string, 0, len(inputs))

	for _, in := range inputs {
		metaJSON, err := json.Marshal(taskMetadataRow{
			Warehouse:   in.Metadata.Warehouse,
			EntityType:  in.Metadata.EntityType,
			EntityID:    in.Metadata.EntityID,
			Parent:      in.Metadata.Parent,
			ScheduleFor: in.Metadata.ScheduleFor,
		})
		if err != nil {
			return nil, errs.NewBadRequest("task", "invalid metadata", err)
		}

		id := uuid.NewString()

		query, args, err := psql.Insert("task").
			Columns("id", "queue", "warehouse_id", "entity_type", "entity_id", "metadata", "payload", "status", "attempt", "created_at").
			Values(id, queue, in.Metadata.Warehouse, in.Metadata.EntityType, in.Metadata.EntityID, metaJSON, in.Payload, string(task.StatusScheduled), 0, squirrel.Expr("now()")).
			Suffix("ON CONFLICT (warehouse_id, entity_type, entity_id, queue) DO NOTHING RETURNING id").
			ToSql()
		if err != nil {
			return nil, errs.NewInternal("build insert", err)
		}

		var inserted string
		switch err := tx.QueryRowContext(ctx, query, args...).Scan(&inserted); {
		case err == nil:
			ids = append(ids, inserted)
		case errors.Is(err, sql.ErrNoRows):
			// conflict: not re-inserted, omitted from the result.
		default:
			obs.HandleSpanError(&span, "enqueue task failed", err)
			return nil, translatePGError(err, "task")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.NewInternal("commit transaction", err)
	}

	return ids, nil
}

// Pick selects one due task with FOR UPDATE SKIP LOCKED, preferring rows
// that are scheduled or have gone stale past their heartbeat deadline,
// marks it running, and increments its attempt counter.
func (r *TaskRepository) Pick(ctx context.Context, queue string, defaultMaxSinceHeartbeat time.Duration) (*task.Task, *task.QueueConfig, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.task.pick")
	defer span.End()

	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	selectQuery, selectArgs, err := psql.Select("t.id", "t.queue", "t.warehouse_id", "t.entity_type", "t.entity_id",
		"t.metadata", "t.payload", "t.status", "t.attempt", "t.picked_up_at", "t.last_heartbeat_at", "t.created_at",
		"c.config", "c.max_seconds_since_last_heartbeat").
		From("task t").
		LeftJoin("task_config c ON c.queue = t.queue").
		Where(squirrel.Eq{"t.queue": queue}).
		Where(squirrel.Or{
			squirrel.And{
				squirrel.Eq{"t.status": string(task.StatusScheduled)},
				squirrel.Expr("COALESCE((t.metadata->>'scheduleFor')::timestamptz, now()) <= now()"),
			},
			squirrel.Expr("now() - t.last_heartbeat_at > (COALESCE(c.max_seconds_since_last_heartbeat, ?) || ' seconds')::interval", int(defaultMaxSinceHeartbeat.Seconds())),
		}).
		OrderBy("t.created_at ASC").
		Limit(1).
		Suffix("FOR UPDATE OF t SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, nil, errs.NewInternal("build select", err)
	}

	row := tx.QueryRowContext(ctx, selectQuery, selectArgs...)

	t := &task.Task{}
	cfg := &task.QueueConfig{}

	var metaJSON []byte
	var maxSeconds sql.NullInt64

	if err := row.Scan(&t.ID, &t.Queue, &t.Metadata.Warehouse, &t.Metadata.EntityType, &t.Metadata.EntityID,
		&metaJSON, &t.Payload, &t.Status, &t.Attempt, &t.PickedUpAt, &t.LastHeartbeatAt, &t.CreatedAt,
		&cfg.Config, &maxSeconds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}

		obs.HandleSpanError(&span, "pick task failed", err)

		return nil, nil, translatePGError(err, "task")
	}

	var metaRow taskMetadataRow
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &metaRow); err != nil {
			return nil, nil, errs.NewInternal("decode task metadata", err)
		}

		t.Metadata.Parent = metaRow.Parent
		t.Metadata.ScheduleFor = metaRow.ScheduleFor
	}

	if maxSeconds.Valid {
		v := int(maxSeconds.Int64)
		cfg.MaxSecondsSinceLastHeartbeat = &v
	}

	updateQuery, updateArgs, err := psql.Update("task").
		Set("status", string(task.StatusRunning)).
		Set("attempt", squirrel.Expr("attempt + 1")).
		Set("picked_up_at", squirrel.Expr("now()")).
		Set("last_heartbeat_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": t.ID}).
		Suffix("RETURNING attempt").
		ToSql()
	if err != nil {
		return nil, nil, errs.NewInternal("build update", err)
	}

	if err := tx.QueryRowContext(ctx, updateQuery, updateArgs...).Scan(&t.Attempt); err != nil {
		obs.HandleSpanError(&span, "mark task running failed", err)
		return nil, nil, translatePGError(err, "task")
	}

	t.Status = task.StatusRunning

	if err := tx.Commit(); err != nil {
		return nil, nil, errs.NewInternal("commit transaction", err)
	}

	return t, cfg, nil
}

// Heartbeat updates progress only when (task_id, attempt) still matches
// the live row, and maps the row's current status to a caller signal.
func (r *TaskRepository) Heartbeat(ctx context.Context, taskID string, attempt int, progress float64, details string) (task.Signal, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.task.heartbeat")
	defer span.End()

	query, args, err := psql.Update("task").
		Set("last_heartbeat_at", squirrel.Expr("now()")).
		Set("progress", progress).
		Set("execution_details", details).
		Where(squirrel.Eq{"id": taskID, "attempt": attempt}).
		Suffix("RETURNING status").
		ToSql()
	if err != nil {
		return task.SignalNotActive, errs.NewInternal("build update", err)
	}

	var status string
	if err := r.conn.DB().QueryRowContext(ctx, query, args...).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.SignalNotActive, nil
		}

		obs.HandleSpanError(&span, "heartbeat failed", err)

		return task.SignalNotActive, translatePGError(err, "task")
	}

	if task.Status(status) == task.StatusShouldStop {
		return task.SignalStop, nil
	}

	return task.SignalContinue, nil
}

// RecordSuccess idempotently moves a task from the live table to the log
// as a success, keyed by (task_id, attempt) uniqueness.
func (r *TaskRepository) RecordSuccess(ctx context.Context, taskID, message string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.task.record_success")
	defer span.End()

	return r.moveToLog(ctx, &span, taskID, task.OutcomeSuccess, message)
}

// RecordFailure re-schedules a task for retry, or terminally fails it
// once its attempt count has reached maxAttempts.
func (r *TaskRepository) RecordFailure(ctx context.Context, taskID string, maxAttempts int, details string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.task.record_failure")
	defer span.End()

	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var attempt int

	query, args, err := psql.Select("attempt").From("task").Where(squirrel.Eq{"id": taskID}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return errs.NewInternal("build select", err)
	}

	if err := tx.QueryRowContext(ctx, query, args...).Scan(&attempt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // already terminated: idempotent no-op
		}

		return translatePGError(err, "task")
	}

	if attempt >= maxAttempts {
		if err := r.moveToLogTx(ctx, tx, taskID, task.OutcomeFailed, details); err != nil {
			obs.HandleSpanError(&span, "record failure terminal move failed", err)
			return err
		}
	} else {
		updateQuery, updateArgs, err := psql.Update("task").
			Set("status", string(task.StatusScheduled)).
			Set("picked_up_at", nil).
			Set("execution_details", details).
			Where(squirrel.Eq{"id": taskID}).
			ToSql()
		if err != nil {
			return errs.NewInternal("build update", err)
		}

		if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
			obs.HandleSpanError(&span, "reschedule task failed", err)
			return translatePGError(err, "task")
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.NewInternal("commit transaction", err)
	}

	return nil
}

// RequestStop transitions running tasks to should-stop; scheduled tasks
// are left untouched.
func (r *TaskRepository) RequestStop(ctx context.Context, taskIDs []string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.task.request_stop")
	defer span.End()

	query, args, err := psql.Update("task").
		Set("status", string(task.StatusShouldStop)).
		Where(squirrel.Eq{"id": taskIDs, "status": string(task.StatusRunning)}).
		ToSql()
	if err != nil {
		return errs.NewInternal("build update", err)
	}

	if _, err := r.conn.DB().ExecContext(ctx, query, args...); err != nil {
		obs.HandleSpanError(&span, "request stop failed", err)
		return translatePGError(err, "task")
	}

	return nil
}

// Cancel moves every matching scheduled task (and, if forceRunning,
// running/should-stop tasks too) to the log as cancelled.
func (r *TaskRepository) Cancel(ctx context.Context, filter task.CancelFilter, queue string, forceRunning bool) (int, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.task.cancel")
	defer span.End()

	statuses := []string{string(task.StatusScheduled)}
	if forceRunning {
		statuses = append(statuses, string(task.StatusRunning), string(task.StatusShouldStop))
	}

	selectBuilder := psql.Select("id", "attempt").From("task").Where(squirrel.Eq{"status": statuses})

	if queue != "" {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"queue": queue})
	}

	if filter.Warehouse != nil {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"warehouse_id": *filter.Warehouse})
	}

	if filter.EntityType != nil {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"entity_type": *filter.EntityType})
	}

	if filter.EntityID != nil {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"entity_id": *filter.EntityID})
	}

	if len(filter.TaskIDs) > 0 {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"id": filter.TaskIDs})
	}

	query, args, err := selectBuilder.Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return 0, errs.NewInternal("build select", err)
	}

	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "select cancel candidates failed", err)
		return 0, translatePGError(err, "task")
	}

	type idAttempt struct {
		id      string
		attempt int
	}

	var targets []idAttempt

	for rows.Next() {
		var ia idAttempt
		if err := rows.Scan(&ia.id, &ia.attempt); err != nil {
			rows.Close()
			return 0, errs.NewInternal("scan cancel candidate", err)
		}

		targets = append(targets, ia)
	}

	rows.Close()

	for _, ia := range targets {
		if err := r.moveToLogTx(ctx, tx, ia.id, task.OutcomeCancelled, ""); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.NewInternal("commit transaction", err)
	}

	return len(targets), nil
}

func (r *TaskRepository) moveToLog(ctx context.Context, span *trace.Span, taskID string, outcome task.Outcome, message string) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.moveToLogTx(ctx, tx, taskID, outcome, message); err != nil {
		obs.HandleSpanError(span, "move to log failed", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.NewInternal("commit transaction", err)
	}

	return nil
}

// moveToLogTx inserts the terminal log entry then deletes the live row,
// guarded by (task_id, attempt) uniqueness so repeated terminal calls on
// an already-terminated task are a no-op.
func (r *TaskRepository) moveToLogTx(ctx context.Context, tx *sql.Tx, taskID string, outcome task.Outcome, message string) error {
	selectQuery, selectArgs, err := psql.Select("attempt").From("task").Where(squirrel.Eq{"id": taskID}).ToSql()
	if err != nil {
		return errs.NewInternal("build select", err)
	}

	var attempt int
	if err := tx.QueryRowContext(ctx, selectQuery, selectArgs...).Scan(&attempt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // already terminated: idempotent no-op
		}

		return translatePGError(err, "task")
	}

	insertQuery, insertArgs, err := psql.Insert("task_log").
		Columns("task_id", "attempt", "outcome", "message", "logged_at").
		Values(taskID, attempt, string(outcome), message, squirrel.Expr("now()")).
		Suffix("ON CONFLICT (task_id, attempt) DO NOTHING").
		ToSql()
	if err != nil {
		return errs.NewInternal("build insert", err)
	}

	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return translatePGError(err, "task")
	}

	deleteQuery, deleteArgs, err := psql.Delete("task").Where(squirrel.Eq{"id": taskID}).ToSql()
	if err != nil {
		return errs.NewInternal("build delete", err)
	}

	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return translatePGError(err, "task")
	}

	return nil
}
