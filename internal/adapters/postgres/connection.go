// Package postgres implements every Repository interface declared under
// internal/domain against a single PostgreSQL metadata store, split into
// a primary (write) and replica (read) connection pool.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Connection wraps the dbresolver-balanced primary/replica pool: reads
// prefer the replica, writes and transactions pin to the primary.
type Connection struct {
	PrimaryDSN string
	ReplicaDSN string
	DBName     string

	db *dbresolver.DB
}

// Connect opens both pools, runs pending migrations against the primary,
// and pings the resolved pool to confirm connectivity.
func (c *Connection) Connect(migrationsDir string) error {
	primary, err := sql.Open("pgx", c.PrimaryDSN)
	if err != nil {
		return fmt.Errorf("open primary: %w", err)
	}

	replica := primary
	if c.ReplicaDSN != "" {
		replica, err = sql.Open("pgx", c.ReplicaDSN)
		if err != nil {
			return fmt.Errorf("open replica: %w", err)
		}
	}

	c.db = dbresolver.New(
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithReplicaDBs(replica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)

	if migrationsDir != "" {
		if err := c.migrate(primary, migrationsDir); err != nil {
			return err
		}
	}

	return c.db.Ping()
}

func (c *Connection) migrate(primary *sql.DB, migrationsDir string) error {
	abs, err := filepath.Abs(migrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}

	src, err := url.Parse(filepath.ToSlash(abs))
	if err != nil {
		return fmt.Errorf("parse migrations path: %w", err)
	}

	src.Scheme = "file"

	driver, err := postgres.WithInstance(primary, &postgres.Config{
		MultiStatementEnabled: true,
		DatabaseName:          c.DBName,
		SchemaName:            "public",
	})
	if err != nil {
		return fmt.Errorf("build migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(src.String(), c.DBName, driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// DB returns the resolver-backed *sql.DB used by every repository.
func (c *Connection) DB() *dbresolver.DB {
	return c.db
}

// Close closes every pool dbresolver balances across.
func (c *Connection) Close() error {
	if c.db == nil {
		return nil
	}

	return c.db.Close()
}
