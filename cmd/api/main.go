package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"portalapi/internal/attachment"
	"portalapi/internal/auth"
	"portalapi/internal/config"
	"portalapi/internal/database"
	"portalapi/internal/database/migration"
	handlers "portalapi/internal/http/handler"
	"portalapi/internal/http/middleware"
	"portalapi/internal/logging"
	"portalapi/internal/otel"
	"portalapi/internal/repository"
	"portalapi/internal/service"
	"portalapi/internal/storage"
	"portalapi/internal/store"
)

// Multipart uploads carry attachments, so the body limit sits above
// fiber's 4 MiB default.
const bodyLimit = 20 << 20

// @title Student Portal API
// @version 1.0
// @BasePath /
func main() {
	cfg := config.Load()
	config.BindFlags(pflag.CommandLine, cfg)
	pflag.Parse()

	log := logging.New(os.Stdout, cfg.LogLevel, cfg.Location())
	if err := cfg.Validate(); err != nil {
		log.Error(context.Background(), "invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, log logging.Logger) error {
	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn(sctx, "tracer shutdown failed", "error", err)
		}
	}()

	docStore, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	instrumented, err := store.NewInstrumented(docStore, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register store metrics: %w", err)
	}

	objects, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	repo := repository.NewDocumentRepository(instrumented)
	files := attachment.NewManager(objects, log, attachment.WithLinkExpiry(cfg.PresignExpiry()))
	authSvc := auth.NewService(repo, cfg.Auth, log)
	recordSvc := service.NewRecordService(repo, files, log)

	metrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(metrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	handlers.RegisterRoutes(app, handlers.Deps{
		Records:      recordSvc,
		Auth:         authSvc,
		Files:        files,
		Health:       instrumented,
		UploadPrefix: cfg.UploadURLPrefix,
		RequireAuth:  cfg.Auth.RequireAuth,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	log.Info(ctx, "server started",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"storage", cfg.StorageBackend,
		"require_auth", cfg.Auth.RequireAuth,
		"token_ttl", cfg.TokenTTL().String(),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(sctx)
}

// openStore returns the document backend named by cfg and a func releasing
// its resources.
func openStore(ctx context.Context, cfg *config.AppConfig, log logging.Logger) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case "memory":
		log.Warn(ctx, "using in-memory document store; data is lost on exit")
		return store.NewMemoryStore(), noop, nil
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to database: %w", err)
		}
		closeDB := func() { closeQuietly(db, log) }
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			closeDB()
			return nil, noop, fmt.Errorf("migrate database: %w", err)
		}
		return store.NewPostgresStore(db, log), closeDB, nil
	default:
		s, err := store.NewFileStore(cfg.DBFile, log)
		if err != nil {
			return nil, noop, fmt.Errorf("open document file: %w", err)
		}
		return s, noop, nil
	}
}

func openStorage(ctx context.Context, cfg *config.AppConfig) (storage.Storage, error) {
	var (
		s   storage.Storage
		err error
	)
	switch cfg.StorageBackend {
	case "minio":
		s, err = storage.NewMinIO(ctx, cfg.MinIO)
	case "s3":
		s, err = storage.NewS3(ctx, cfg.S3)
	default:
		s, err = storage.NewLocal(cfg.UploadDir, cfg.UploadURLPrefix)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.StorageBackend, err)
	}
	return s, nil
}

func closeQuietly(db *sql.DB, log logging.Logger) {
	if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		log.Warn(context.Background(), "closing database failed", "error", err)
	}
}
