// Package taskqueue implements the durable task-queue orchestration:
// enqueueing, picking, heartbeating and closing out tasks, on top of the
// postgres task repository's FOR UPDATE SKIP LOCKED picker and
// live-xor-logged terminal-state invariant.
package taskqueue

import (
	"context"
	"time"

	"github.com/lakekeeper/catalog/internal/domain/task"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
)

// DefaultMaxSecondsSinceHeartbeat is the fallback liveness window applied
// when a queue has not configured its own MaxSecondsSinceLastHeartbeat: a
// picked task that misses this many seconds of heartbeats is treated as
// dead and becomes eligible for re-picking.
const DefaultMaxSecondsSinceHeartbeat = 60

// Service orchestrates the task lifecycle atop a task.Repository.
type Service struct {
	repo        task.Repository
	maxAttempts int
}

// NewService builds a Service over repo. maxAttempts bounds how many
// times RecordFailure reschedules a task before it is moved to the log
// as permanently failed.
func NewService(repo task.Repository, maxAttempts int) *Service {
	return &Service{repo: repo, maxAttempts: maxAttempts}
}

// EnqueueBatch inserts inputs, silently skipping any that collide with an
// already-live task sharing the same (warehouse, entity_type, entity_id,
// queue) identity, and returns the ids actually created.
func (s *Service) EnqueueBatch(ctx context.Context, queue string, inputs []task.TaskInput) ([]string, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "taskqueue.enqueue_batch")
	defer span.End()

	if len(inputs) == 0 {
		return nil, nil
	}

	ids, err := s.repo.EnqueueBatch(ctx, queue, inputs)
	if err != nil {
		obs.HandleSpanError(&span, "enqueue batch failed", err)
		return nil, err
	}

	return ids, nil
}

// Pick claims the next runnable task on queue, preferring a freshly
// scheduled task over one whose prior attempt's heartbeat window has
// expired.
func (s *Service) Pick(ctx context.Context, queue string) (*task.Task, *task.QueueConfig, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "taskqueue.pick")
	defer span.End()

	t, cfg, err := s.repo.Pick(ctx, queue, DefaultMaxSecondsSinceHeartbeat*time.Second)
	if err != nil {
		obs.HandleSpanError(&span, "pick task failed", err)
		return nil, nil, err
	}

	return t, cfg, nil
}

// Heartbeat reports liveness and progress for a running task's current
// attempt, returning the signal the worker must act on: continue the
// attempt, stop cooperatively, or abandon it because it is no longer the
// task's live attempt.
func (s *Service) Heartbeat(ctx context.Context, taskID string, attempt int, progress float64, details string) (task.Signal, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "taskqueue.heartbeat")
	defer span.End()

	signal, err := s.repo.Heartbeat(ctx, taskID, attempt, progress, details)
	if err != nil {
		obs.HandleSpanError(&span, "heartbeat failed", err)
		return "", err
	}

	return signal, nil
}

// RecordSuccess closes a task out as successful.
func (s *Service) RecordSuccess(ctx context.Context, taskID, message string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "taskqueue.record_success")
	defer span.End()

	if err := s.repo.RecordSuccess(ctx, taskID, message); err != nil {
		obs.HandleSpanError(&span, "record success failed", err)
		return err
	}

	return nil
}

// RecordFailure records a failed attempt, rescheduling the task if its
// attempt count has not yet reached the service's maxAttempts, otherwise
// moving it to the log as permanently failed.
func (s *Service) RecordFailure(ctx context.Context, taskID, details string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "taskqueue.record_failure")
	defer span.End()

	if s.maxAttempts <= 0 {
		err := errs.NewBadRequest("taskqueue", "maxAttempts must be positive", nil)
		obs.HandleSpanError(&span, "record failure failed", err)
		return err
	}

	if err := s.repo.RecordFailure(ctx, taskID, s.maxAttempts, details); err != nil {
		obs.HandleSpanError(&span, "record failure failed", err)
		return err
	}

	return nil
}

// RequestStop asks every running task in taskIDs to stop cooperatively at
// its next heartbeat.
func (s *Service) RequestStop(ctx context.Context, taskIDs []string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "taskqueue.request_stop")
	defer span.End()

	if err := s.repo.RequestStop(ctx, taskIDs); err != nil {
		obs.HandleSpanError(&span, "request stop failed", err)
		return err
	}

	return nil
}

// Cancel removes every task matching filter from the live queue,
// recording each as cancelled. Running tasks are left alone unless
// forceRunning is set.
func (s *Service) Cancel(ctx context.Context, filter task.CancelFilter, queue string, forceRunning bool) (int, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "taskqueue.cancel")
	defer span.End()

	n, err := s.repo.Cancel(ctx, filter, queue, forceRunning)
	if err != nil {
		obs.HandleSpanError(&span, "cancel failed", err)
		return 0, err
	}

	return n, nil
}
