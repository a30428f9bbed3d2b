package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-service/internal/api/http"
	"github.com/spec-kit/issue-service/internal/api/http/handlers"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/persistence"
	"github.com/spec-kit/issue-service/internal/worker"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger := loadBase()
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	if cfg.SeedFile != "" {
		if err := c.importSeed(ctx, cfg.SeedFile); err != nil {
			return fmt.Errorf("import seed: %w", err)
		}
	}

	workersDone := worker.Set{
		Notifications: c.notifications,
		Overdue:       worker.NewOverdueMonitor(c.issues, c.metrics, time.Minute, logger.Named("overdue")),
	}.Start(ctx)

	dependencies := map[string]handlers.Pinger{}
	if c.postgres.Enabled() {
		dependencies["postgres"] = c.postgres
	}
	if c.redis.Enabled() {
		dependencies["redis"] = c.redis
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, c.metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Issues:         handlers.NewIssuesHandler(c.issues),
		Categories:     handlers.NewCategoriesHandler(c.categories),
		Directory:      handlers.NewDirectoryHandler(c.directory),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, c.repos.users),
	})

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		cancel()
		<-workersDone
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	err = app.ShutdownWithTimeout(10 * time.Second)
	<-workersDone
	return err
}

func migrateCommand() *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger := loadBase()
			defer logger.Sync() //nolint:errcheck
			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is required for migrations")
			}
			if down > 0 {
				return persistence.RollbackMigrations(cfg.Postgres.DSN, down, logger)
			}
			return persistence.RunMigrations(cfg.Postgres.DSN, logger)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	return cmd
}

func seedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import departments, categories and users from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := loadBase()
			defer logger.Sync() //nolint:errcheck
			if file == "" {
				file = cfg.SeedFile
			}
			if file == "" {
				return errors.New("seed file required: pass --file or set SEED_FILE")
			}
			c, err := buildComponents(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer c.close()
			if !c.postgres.Enabled() {
				logger.Warn("no database configured; seed only validated")
			}
			if err := c.importSeed(cmd.Context(), file); err != nil {
				return err
			}
			logger.Info("seed complete", zap.String("file", file))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the seed YAML file")
	return cmd
}

func tokenCommand() *cobra.Command {
	var (
		userID     string
		role       string
		department string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _ := loadBase()
			if cfg.App.Env == "production" {
				return errors.New("token minting is disabled in production")
			}
			principal := domain.Principal{UserID: domain.UserID(userID), Role: domain.Role(role)}
			if !principal.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if department != "" {
				dept := domain.DepartmentID(department)
				principal.DepartmentID = &dept
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL()
			}
			token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl).GenerateToken(principal)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "subject user id")
	cmd.Flags().StringVar(&role, "role", "student", "student, lecturer or admin")
	cmd.Flags().StringVar(&department, "department", "", "department id for lecturers")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
