package main

import (
	"context"
	"fmt"
	"log"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/cache"
	"github.com/spec-kit/issue-service/internal/config"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/observability"
	"github.com/spec-kit/issue-service/internal/persistence"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/repository/memory"
	"github.com/spec-kit/issue-service/internal/service"
	"github.com/spec-kit/issue-service/internal/storage"
	"github.com/spec-kit/issue-service/internal/validation"
	"github.com/spec-kit/issue-service/internal/workflow"
	"github.com/spec-kit/issue-service/pkg/kafka"
	"github.com/spec-kit/issue-service/pkg/util/retry"
)

type repositories struct {
	issues      repository.IssueRepository
	comments    repository.CommentRepository
	history     repository.HistoryRepository
	categories  repository.CategoryRepository
	departments repository.DepartmentRepository
	users       repository.UserRepository
}

// components is the fully wired process. close releases everything in
// reverse order of construction.
type components struct {
	cfg           *config.Config
	logger        *zap.Logger
	postgres      *persistence.Postgres
	redis         *persistence.Redis
	meterProvider *sdkmetric.MeterProvider
	metrics       *observability.Metrics
	repos         repositories

	categories    *service.CategoryService
	issues        *service.IssueService
	directory     *service.DirectoryService
	notifications *service.NotificationService

	closers []func()
}

func loadBase() (*config.Config, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	return cfg, logger
}

func buildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{cfg: cfg, logger: logger}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.postgres = pg
	c.closers = append(c.closers, pg.Close)

	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				c.close()
				return nil, err
			}
		}
		c.repos = repositories{
			issues:      repository.NewIssueRepository(pg.Pool),
			comments:    repository.NewCommentRepository(pg.Pool),
			history:     repository.NewHistoryRepository(pg.Pool),
			categories:  repository.NewCategoryRepository(pg.Pool),
			departments: repository.NewDepartmentRepository(pg.Pool),
			users:       repository.NewUserRepository(pg.Pool),
		}
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		c.repos = repositories{
			issues:      store.Issues(),
			comments:    store.Comments(),
			history:     store.History(),
			categories:  store.Categories(),
			departments: store.Departments(),
			users:       store.Users(),
		}
	}

	c.redis = persistence.NewRedis(ctx, cfg.Redis, logger)
	c.closers = append(c.closers, c.redis.Close)
	var cacheStore cache.Store
	if c.redis.Enabled() {
		cacheStore = cache.NewRedisCache(c.redis.Client)
	}
	categoryCache := cache.NewCategoryCache(cacheStore, cfg.Redis.CategoryCacheTTL(), logger)

	mp, err := observability.NewMeterProvider(ctx, cfg.App, cfg.Telemetry)
	if err != nil {
		c.close()
		return nil, err
	}
	c.meterProvider = mp
	c.closers = append(c.closers, func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			logger.Warn("meter provider shutdown", zap.Error(err))
		}
	})
	if c.metrics, err = observability.NewMetrics(mp); err != nil {
		c.close()
		return nil, err
	}

	var attachments validation.AttachmentCatalog = storage.DisabledCatalog{}
	if cfg.S3.Bucket != "" {
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			c.close()
			return nil, err
		}
		attachments = storage.NewS3Catalog(client, cfg.S3.Bucket)
	} else {
		logger.Info("S3_BUCKET not provided; attachments disabled")
	}

	var publisher service.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			c.close()
			return nil, err
		}
		publisher = producer
		c.closers = append(c.closers, func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close", zap.Error(err))
			}
		})
	}

	policy := retry.Policy{Attempts: cfg.Store.RetryAttempts, BaseDelay: cfg.Store.RetryBaseDelay()}
	dispatcher := events.NewInMemoryDispatcher()

	c.categories = service.NewCategoryService(service.CategoryDependencies{
		CategoryRepo:   c.repos.categories,
		DepartmentRepo: c.repos.departments,
		Cache:          categoryCache,
		Retry:          policy,
		Logger:         logger.Named("categories"),
	})
	c.issues = service.NewIssueService(service.IssueDependencies{
		IssueRepo:   c.repos.issues,
		CommentRepo: c.repos.comments,
		HistoryRepo: c.repos.history,
		UserRepo:    c.repos.users,
		Categories:  c.categories,
		Validator:   validation.New(c.categories, attachments),
		Engine:      workflow.NewEngine(),
		Dispatcher:  dispatcher,
		Metrics:     c.metrics,
		Retry:       policy,
		Logger:      logger.Named("issues"),
	})
	c.directory = service.NewDirectoryService(service.DirectoryDependencies{
		DepartmentRepo: c.repos.departments,
		UserRepo:       c.repos.users,
		CategoryRepo:   c.repos.categories,
		Retry:          policy,
		Logger:         logger.Named("directory"),
	})
	c.notifications = service.NewNotificationService(dispatcher, publisher, logger.Named("notifications"))

	return c, nil
}

func (c *components) importSeed(ctx context.Context, path string) error {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return err
	}
	return c.directory.ImportSeed(ctx, seed)
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
