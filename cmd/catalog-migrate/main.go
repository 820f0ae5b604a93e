// Command catalog-migrate applies pending PostgreSQL schema migrations
// and exits; it does not start the HTTP server or worker loop.
package main

import (
	"os"

	"github.com/lakekeeper/catalog/internal/adapters/postgres"
	"github.com/lakekeeper/catalog/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	conn := &postgres.Connection{
		PrimaryDSN: cfg.PostgresPrimaryDSN,
		ReplicaDSN: cfg.PostgresReplicaDSN,
		DBName:     cfg.PostgresDBName,
	}

	if err := conn.Connect(cfg.MigrationsDir); err != nil {
		os.Stderr.WriteString("migrate: " + err.Error() + "\n")
		os.Exit(1)
	}

	os.Stdout.WriteString("migrations applied\n")
}
