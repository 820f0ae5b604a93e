// Package config loads the catalog service's runtime configuration from
// the process environment. Every field is read directly with
// os.Getenv/os.LookupEnv rather than through a struct-tag env loader.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-wide configuration for every catalog binary
// (cmd/catalog, cmd/catalog-worker, cmd/catalog-migrate,
// cmd/catalog-authz-migrate).
type Config struct {
	ServerAddress string

	LogLevel string

	PostgresPrimaryDSN string
	PostgresReplicaDSN string
	PostgresDBName     string
	MigrationsDir      string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	AWSRegion       string
	STSEnabled      bool
	AssumeRoleARN   string

	TaskMaxAttempts           int
	TaskMaxSecondsSinceHeartbeat int
	TabularSoftDeleteDefault bool
	TabularExpirationDelay   time.Duration

	OtelServiceName string
	OtelEndpoint    string
	EnableTelemetry bool

	MetricsAddress string

	MigrationConcurrency int
	MigrationPageSize    int
	MigrationBatchSize   int
}

// Load reads Config from the environment, applying sane defaults for
// every optional field.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress:       getEnvDefault("SERVER_ADDRESS", ":8181"),
		LogLevel:            getEnvDefault("LOG_LEVEL", "info"),
		PostgresPrimaryDSN:  os.Getenv("POSTGRES_PRIMARY_DSN"),
		PostgresReplicaDSN:  os.Getenv("POSTGRES_REPLICA_DSN"),
		PostgresDBName:      getEnvDefault("POSTGRES_DB_NAME", "catalog"),
		MigrationsDir:       getEnvDefault("MIGRATIONS_DIR", "migrations"),
		RedisAddress:        os.Getenv("REDIS_ADDRESS"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		AWSRegion:           getEnvDefault("AWS_REGION", "us-east-1"),
		AssumeRoleARN:       os.Getenv("STORAGE_ASSUME_ROLE_ARN"),
		OtelServiceName:     getEnvDefault("OTEL_SERVICE_NAME", "catalog"),
		OtelEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MetricsAddress:      getEnvDefault("METRICS_ADDRESS", ":9090"),
	}

	var err error

	if cfg.RedisDB, err = getEnvIntDefault("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if cfg.STSEnabled, err = getEnvBoolDefault("STORAGE_STS_ENABLED", true); err != nil {
		return nil, err
	}

	if cfg.TaskMaxAttempts, err = getEnvIntDefault("TASK_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}

	if cfg.TaskMaxSecondsSinceHeartbeat, err = getEnvIntDefault("TASK_MAX_SECONDS_SINCE_HEARTBEAT", 60); err != nil {
		return nil, err
	}

	if cfg.TabularSoftDeleteDefault, err = getEnvBoolDefault("TABULAR_SOFT_DELETE_DEFAULT", true); err != nil {
		return nil, err
	}

	expirationSeconds, err := getEnvIntDefault("TABULAR_EXPIRATION_DELAY_SECONDS", 3600)
	if err != nil {
		return nil, err
	}

	cfg.TabularExpirationDelay = time.Duration(expirationSeconds) * time.Second

	if cfg.EnableTelemetry, err = getEnvBoolDefault("ENABLE_TELEMETRY", false); err != nil {
		return nil, err
	}

	if cfg.MigrationConcurrency, err = getEnvIntDefault("AUTHZ_MIGRATION_CONCURRENCY", 10); err != nil {
		return nil, err
	}

	if cfg.MigrationPageSize, err = getEnvIntDefault("AUTHZ_MIGRATION_PAGE_SIZE", 100); err != nil {
		return nil, err
	}

	if cfg.MigrationBatchSize, err = getEnvIntDefault("AUTHZ_MIGRATION_BATCH_SIZE", 50); err != nil {
		return nil, err
	}

	if cfg.PostgresPrimaryDSN == "" {
		return nil, fmt.Errorf("POSTGRES_PRIMARY_DSN is required")
	}

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return fallback
}

func getEnvIntDefault(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return n, nil
}

func getEnvBoolDefault(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}

	return b, nil
}
