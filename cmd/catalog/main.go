// Command catalog runs the REST catalog's HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lakekeeper/catalog/internal/bootstrap"
	"github.com/lakekeeper/catalog/internal/config"
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

	go func() {
		<-ctx.Done()

		app.Logger.Info("shutting down http server")

		_ = app.Fiber.ShutdownWithContext(context.Background())
	}()

	app.Logger.Infow("starting catalog http server", "address", cfg.ServerAddress)

	if err := app.Fiber.Listen(cfg.ServerAddress); err != nil {
		app.Logger.Errorw("http server exited", "error", err)
		os.Exit(1)
	}
}
