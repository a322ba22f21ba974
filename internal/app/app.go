package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tiendatec/internal/config"
	"tiendatec/internal/database"
	"tiendatec/internal/docs"
	"tiendatec/internal/handlers"
	"tiendatec/internal/jobs"
	"tiendatec/internal/middleware"
	"tiendatec/internal/repositories"
	"tiendatec/internal/services"
	"tiendatec/pkg/cache"
	"tiendatec/pkg/rabbitmq"
	"tiendatec/pkg/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	maxUploadSize      = 10 * 1024 * 1024
	tokenPurgeSchedule = "@daily"
)

// App is the assembled service: HTTP server, background jobs and the
// connections they share.
type App struct {
	Fiber     *fiber.App
	DB        *gorm.DB
	Scheduler *jobs.Scheduler

	Auth       *services.AuthService
	Users      *services.UserService
	Categories *services.CategoryService
	Products   *services.ProductService
	Images     *services.ImageService

	cfg   *config.Config
	redis *cache.RedisClient
	mq    *rabbitmq.Client
}

// New connects every backing service named in cfg and builds the router.
func New(cfg *config.Config) (*App, error) {
	ConfigureLogging(cfg)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{DB: db, cfg: cfg}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.cfg

	userRepo := repositories.NewGORMUserRepository(a.DB)
	categoryRepo := repositories.NewGORMCategoryRepository(a.DB)
	productRepo := repositories.NewGORMProductRepository(a.DB)
	imageRepo := repositories.NewGORMImageRepository(a.DB)
	dbBlacklist := repositories.NewGORMTokenBlacklist(a.DB)

	// Redis, when configured, holds revoked tokens and rate limit counters.
	var blacklist services.TokenBlacklist = dbBlacklist
	var rateCounter middleware.RateCounter
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		a.redis = client
		blacklist = client
		rateCounter = client
	}

	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue})
		if err != nil {
			return err
		}
		a.mq = client
		events = client
	}

	store, err := newImageStore(cfg)
	if err != nil {
		return err
	}

	a.Auth = services.NewAuthService(userRepo, blacklist, events, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	a.Users = services.NewUserService(userRepo, a.Auth)
	a.Categories = services.NewCategoryService(categoryRepo, productRepo)
	a.Products = services.NewProductService(productRepo, categoryRepo, userRepo, store, events)
	a.Images = services.NewImageService(imageRepo, productRepo, store)

	if cfg.AdminEmail != "" {
		admin, err := a.Users.EnsureSuperuser(cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to bootstrap superuser: %w", err)
		}
		if cfg.SeedDemoData {
			seedDemoData(a.Categories, a.Products, admin)
		}
	} else if cfg.SeedDemoData {
		log.Warn("SEED_DEMO_DATA needs ADMIN_EMAIL to own the demo products; skipping")
	}

	scheduled := []jobs.Job{jobs.RefreshNewFlags(a.Products, cfg.NewFlagSchedule)}
	if a.redis == nil {
		scheduled = append(scheduled, jobs.PurgeRevokedTokens(dbBlacklist, tokenPurgeSchedule))
	}
	if a.Scheduler, err = jobs.NewScheduler(scheduled...); err != nil {
		return err
	}

	return a.buildRouter(rateCounter)
}

func newImageStore(cfg *config.Config) (storage.ImageStore, error) {
	if cfg.ImageStorage == "s3" {
		return storage.NewS3Store(context.Background(), storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicURL:    cfg.S3PublicURL,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	}
	return storage.NewLocalStore(cfg.MediaRoot, cfg.MediaURL)
}

func (a *App) buildRouter(rateCounter middleware.RateCounter) error {
	cfg := a.cfg
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(registry)

	app := fiber.New(fiber.Config{
		AppName:      "tiendatec",
		BodyLimit:    maxUploadSize,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: log.StandardLogger().Out}))
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))
	app.Use(metrics.Handler())
	app.Use(middleware.Authenticate(a.Auth))

	if cfg.ImageStorage == "local" {
		app.Static(cfg.MediaURL, cfg.MediaRoot)
	}

	api := app.Group(cfg.APIPrefix)
	throttle := middleware.RateLimit(rateCounter, "auth", cfg.LoginRateLimit, cfg.LoginRateWindow)
	handlers.NewAuthHandler(a.Auth, throttle).RegisterRoutes(api)
	handlers.NewProductHandler(a.Products, a.Images).RegisterRoutes(api)
	handlers.NewCategoryHandler(a.Categories, a.Products).RegisterRoutes(api)
	handlers.NewUserHandler(a.Users).RegisterRoutes(api)

	docsHandler, err := docs.NewDocsHandler(cfg.APIPrefix)
	if err != nil {
		return err
	}
	docsHandler.RegisterRoutes(api)

	handlers.NewAdminHandler(a.Users, a.Categories, a.Products).RegisterRoutes(app.Group("/admin"))

	app.Get("/health", a.handleHealth)
	app.Get("/metrics", metrics.Endpoint())

	a.Fiber = app
	return nil
}

// handleHealth reports whether the backing services answer.
func (a *App) handleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	body := fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"database": "connected",
	}
	if err := database.Ping(a.DB); err != nil {
		log.WithError(err).Warn("health check: database unavailable")
		status = fiber.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "unavailable"
	}
	if a.redis != nil {
		body["redis"] = "connected"
		if err := a.redis.Ping(c.UserContext()); err != nil {
			log.WithError(err).Warn("health check: redis unavailable")
			status = fiber.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["redis"] = "unavailable"
		}
	}
	if a.mq != nil {
		body["rabbitmq"] = "connected"
	}
	return c.Status(status).JSON(body)
}

// errorHandler renders errors that escaped the handlers, unknown routes
// included, as {"message"}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
		message = ferr.Message
	} else {
		log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
	}
	return c.Status(code).JSON(fiber.Map{
		"message": message,
	})
}

// Events returns the RabbitMQ client, or nil when messaging is disabled.
func (a *App) Events() *rabbitmq.Client {
	return a.mq
}

// Listen serves HTTP until Shutdown is called.
func (a *App) Listen() error {
	log.Printf("Starting server on port %s", a.cfg.AppPort)
	return a.Fiber.Listen(a.cfg.AppPort)
}

// Close releases every connection the App opened.
func (a *App) Close() error {
	var errs []error
	if a.mq != nil {
		errs = append(errs, a.mq.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, database.Close(a.DB))
	}
	return errors.Join(errs...)
}

// ConfigureLogging applies the configured logrus level and format.
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
