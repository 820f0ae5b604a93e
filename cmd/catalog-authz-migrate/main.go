// Command catalog-authz-migrate runs the one-shot online authorization
// rewrite: every relation tuple naming a tabular object gets a
// warehouse-prefixed identifier written alongside the original, which is
// left in place for a later cleanup pass once every client has upgraded.
package main

import (
	"context"
	"os"

	"github.com/lakekeeper/catalog/internal/bootstrap"
	"github.com/lakekeeper/catalog/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx := context.Background()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("bootstrap: " + err.Error() + "\n")
		os.Exit(1)
	}

	defer func() {
		_ = app.Telemetry.Shutdown(context.Background())
		_ = app.DB.Close()
	}()

	app.Logger.Info("starting authorization tuple migration")

	if err := app.MigrationEngine.Run(ctx); err != nil {
		app.Logger.Errorw("migration failed", "error", err)
		os.Exit(1)
	}

	app.Logger.Info("authorization tuple migration complete")
}
