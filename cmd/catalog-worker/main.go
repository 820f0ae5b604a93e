// Command catalog-worker runs the background loop that picks tasks off
// the durable task queue and executes them: currently the
// tabular-expiration queue, which purges a soft-deleted tabular once its
// scheduled grace period has elapsed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakekeeper/catalog/internal/bootstrap"
	"github.com/lakekeeper/catalog/internal/config"
)

const (
	expirationQueue = "tabular-expiration"
	pollInterval    = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("bootstrap: " + err.Error() + "\n")
		os.Exit(1)
	}

	defer func() {
		_ = app.Telemetry.Shutdown(context.Background())
		_ = app.DB.Close()
	}()

	app.Logger.Infow("starting catalog worker", "queue", expirationQueue)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.Logger.Info("worker shutting down")
			return
		case <-ticker.C:
			processOne(ctx, app)
		}
	}
}

// processOne picks and runs a single expiration task, if one is ready.
// A nil task (no work available) and a pick error are both logged and
// swallowed so the loop keeps polling on the next tick.
func processOne(ctx context.Context, app *bootstrap.App) {
	t, _, err := app.TaskQueue.Pick(ctx, expirationQueue)
	if err != nil {
		app.Logger.Errorw("pick task failed", "error", err)
		return
	}

	if t == nil {
		return
	}

	logger := app.Logger.With("taskId", t.ID, "tabularId", t.Metadata.EntityID)

	if _, err := app.TaskQueue.Heartbeat(ctx, t.ID, t.Attempt, 0, "purging"); err != nil {
		logger.Errorw("heartbeat failed", "error", err)
	}

	if err := app.TabularEngine.PurgeExpired(ctx, t.Metadata.EntityID); err != nil {
		logger.Errorw("purge failed", "error", err)

		if failErr := app.TaskQueue.RecordFailure(ctx, t.ID, err.Error()); failErr != nil {
			logger.Errorw("record failure failed", "error", failErr)
		}

		return
	}

	if err := app.TaskQueue.RecordSuccess(ctx, t.ID, "purged"); err != nil {
		logger.Errorw("record success failed", "error", err)
	}
}
