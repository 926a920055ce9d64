package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tabapp/tabapp/internal/config"
	"github.com/tabapp/tabapp/internal/directory"
	"github.com/tabapp/tabapp/internal/logging"
	"github.com/tabapp/tabapp/internal/middleware"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
	// BcryptCost overrides the directory's hashing cost when non-zero.
	BcryptCost int
}

// Setup configures middlewares and all directory routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	d.Logger = logging.OrDiscard(d.Logger)
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	metrics, err := middleware.NewHTTPMetrics(d.Registry)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(metrics.Handler())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(middleware.IdempotencyConfig{
			Cache:  d.Cache,
			TTL:    d.Cfg.IdempotencyTTL,
			Logger: d.Logger,
		}))
	}

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))

	// Directory
	svc, err := directoryService(d)
	if err != nil {
		return err
	}
	handler := directory.NewHandler(svc)
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, metrics)
	app.Get("/users", rateLimiter, handler.Users)
	app.Post("/users", handler.Register)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	api.Get("/users", rateLimiter, handler.Users)
	api.Post("/users", handler.Register)

	return nil
}

func directoryService(d Deps) (*directory.Service, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo directory.Repository
	if d.DB != nil {
		pg := directory.NewPostgresRepository(d.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure directory schema: %w", err)
		}
		repo = pg
	} else {
		repo = directory.NewMemoryRepository()
	}

	var opts []directory.Option
	if d.BcryptCost != 0 {
		opts = append(opts, directory.WithBcryptCost(d.BcryptCost))
	}
	svc := directory.NewService(repo, d.Logger, opts...)

	if d.Cfg.SeedFile != "" {
		users, err := directory.LoadSeedFile(d.Cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		created, err := svc.Seed(ctx, users)
		if err != nil {
			return nil, fmt.Errorf("seed directory: %w", err)
		}
		d.Logger.Info("directory seeded", "file", d.Cfg.SeedFile, "created", created)
	}
	return svc, nil
}
