// Package bootstrap wires every adapter and service built under
// internal/ into the object graph each cmd/ binary runs: opening the
// PostgreSQL connection pool, running migrations, building the storage
// profile decoder, constructing every repository and service, and
// assembling the fiber router.
package bootstrap

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lakekeeper/catalog/internal/adapters/cache"
	"github.com/lakekeeper/catalog/internal/adapters/postgres"
	"github.com/lakekeeper/catalog/internal/adapters/storage"
	"github.com/lakekeeper/catalog/internal/config"
	"github.com/lakekeeper/catalog/internal/domain/authz"
	domaintabular "github.com/lakekeeper/catalog/internal/domain/tabular"
	"github.com/lakekeeper/catalog/internal/httpapi"
	"github.com/lakekeeper/catalog/internal/obs"
	svcauthz "github.com/lakekeeper/catalog/internal/services/authz"
	svccheck "github.com/lakekeeper/catalog/internal/services/check"
	svcmigration "github.com/lakekeeper/catalog/internal/services/migration"
	svcnamespace "github.com/lakekeeper/catalog/internal/services/namespace"
	svcproject "github.com/lakekeeper/catalog/internal/services/project"
	svctabular "github.com/lakekeeper/catalog/internal/services/tabular"
	svctaskqueue "github.com/lakekeeper/catalog/internal/services/taskqueue"
	svcwarehouse "github.com/lakekeeper/catalog/internal/services/warehouse"
)

// App bundles every long-lived component a cmd/ binary needs: the HTTP
// router for cmd/catalog, the task-queue service and tabular engine for
// cmd/catalog-worker, and the migration service for
// cmd/catalog-authz-migrate, plus the shared
// logger/telemetry pair every component logs and traces through.
type App struct {
	Config    *config.Config
	Logger    *zap.SugaredLogger
	Telemetry *obs.Telemetry
	DB        *postgres.Connection
	Handlers  *httpapi.Handlers
	Fiber     *fiber.App

	TaskQueue       *svctaskqueue.Service
	TabularEngine   *svctabular.Engine
	MigrationEngine *svcmigration.Service
}

// New builds the full object graph from cfg: connects to PostgreSQL
// (running migrations), initializes telemetry, constructs every
// repository/service/handler, and returns the assembled App. Callers
// close the DB connection and flush Telemetry on shutdown.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	telemetry, err := obs.InitTelemetry(ctx, cfg.OtelServiceName, cfg.OtelEndpoint, cfg.EnableTelemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	conn := &postgres.Connection{
		PrimaryDSN: cfg.PostgresPrimaryDSN,
		ReplicaDSN: cfg.PostgresReplicaDSN,
		DBName:     cfg.PostgresDBName,
	}

	if err := conn.Connect(cfg.MigrationsDir); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	stsClient, err := newSTSClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init sts client: %w", err)
	}

	decoder := storage.NewDecoder(stsClient)

	projectRepo := postgres.NewProjectRepository(conn)
	warehouseRepo := postgres.NewWarehouseRepository(conn)
	namespaceRepo := postgres.NewNamespaceRepository(conn)
	tabularRepo := postgres.NewTabularRepository(conn)
	taskRepo := postgres.NewTaskRepository(conn)
	relationRepo := postgres.NewRelationRepository(conn)

	var authorizer authz.Authorizer = relationRepo
	if redisClient := newRedisClient(cfg); redisClient != nil {
		authorizer = cache.NewAuthorizer(relationRepo, redisClient)
	}

	guard := svcauthz.NewGuard(authorizer)

	taskQueueSvc := svctaskqueue.NewService(taskRepo, cfg.TaskMaxAttempts)
	projectSvc := svcproject.NewService(projectRepo, guard)
	warehouseSvc := svcwarehouse.NewService(warehouseRepo, guard, decoder)
	namespaceSvc := svcnamespace.NewService(namespaceRepo, guard)

	tabularEngine := svctabular.NewEngine(conn.DB(), tabularRepo, taskQueueSvc, cfg.TabularSoftDeleteDefault, cfg.TabularExpirationDelay)

	resolver := svccheck.NewNameResolver(projectRepo, warehouseRepo, namespaceRepo, tabularRepo)
	checkCoordinator := svccheck.NewCoordinator(authorizer, resolver)

	migrationSvc := svcmigration.NewService(projectRepo, warehouseRepo, namespaceRepo, tabularRepo, relationRepo,
		cfg.MigrationConcurrency, cfg.MigrationPageSize, cfg.MigrationBatchSize)

	handlers := httpapi.Handlers{
		Project:   httpapi.NewProjectHandler(projectSvc),
		Warehouse: httpapi.NewWarehouseHandler(warehouseSvc),
		Namespace: httpapi.NewNamespaceHandler(namespaceSvc),
		Table:     httpapi.NewTabularHandler(tabularEngine, authorizer, domaintabular.KindTable),
		View:      httpapi.NewTabularHandler(tabularEngine, authorizer, domaintabular.KindView),
		Check:     httpapi.NewCheckHandler(checkCoordinator),
		Task:      httpapi.NewTaskHandler(taskQueueSvc),
	}

	router := httpapi.NewRouter(handlers, warehouseSvc)

	return &App{
		Config:          cfg,
		Logger:          logger,
		Telemetry:       telemetry,
		DB:              conn,
		Handlers:        &handlers,
		Fiber:           router,
		TaskQueue:       taskQueueSvc,
		TabularEngine:   tabularEngine,
		MigrationEngine: migrationSvc,
	}, nil
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	zcfg := zap.NewProductionConfig()

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zcfg.Level = lvl
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}

func newSTSClient(ctx context.Context, cfg *config.Config) (*sts.Client, error) {
	if !cfg.STSEnabled {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}

	return sts.NewFromConfig(awsCfg), nil
}

func newRedisClient(cfg *config.Config) *redis.Client {
	if cfg.RedisAddress == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
