package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/database"
	"github.com/torvix/backend/internal/handlers"
	"github.com/torvix/backend/internal/httputil"
	"github.com/torvix/backend/internal/integrations"
	"github.com/torvix/backend/internal/integrations/edamam"
	"github.com/torvix/backend/internal/integrations/llm"
	"github.com/torvix/backend/internal/integrations/openfoodfacts"
	"github.com/torvix/backend/internal/jobs"
	"github.com/torvix/backend/internal/logging"
	"github.com/torvix/backend/internal/metrics"
	"github.com/torvix/backend/internal/middleware"
	"github.com/torvix/backend/internal/routes"
	"github.com/torvix/backend/internal/security"
	"github.com/torvix/backend/internal/services"
)

// Uploads carry images up to httputil.MaxImageBytes plus multipart overhead.
const bodyLimit = 10 * 1024 * 1024

func main() {
	// Structured logging (JSON to stdout) until the config says otherwise
	logging.Setup("info")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	stdout := logging.Setup(cfg.LogLevel)

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, pgLogHandler)))

	// Housekeeping
	scheduler, err := jobs.NewScheduler(db, cfg)
	if err != nil {
		slog.Error("failed to schedule housekeeping jobs", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Services
	passwords, err := security.NewCredentialStore(cfg.PasswordScheme)
	if err != nil {
		slog.Error("invalid password scheme", "error", err)
		os.Exit(1)
	}
	tokens, err := security.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		slog.Error("invalid token settings", "error", err)
		os.Exit(1)
	}
	recorder := metrics.Recorder{}
	authService := services.NewAuthService(db, cfg, passwords, tokens).WithEvents(recorder)
	statsService := services.NewStatisticsService(db).WithEvents(recorder)

	proxies := []integrations.Integration{
		edamam.New(cfg, recorder),
		openfoodfacts.New(cfg, recorder),
		llm.New(cfg, recorder),
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	statsHandler := handlers.NewStatsHandler(statsService)
	healthHandler := handlers.NewHealthHandler(db)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ErrorHandler: httputil.ErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${locals:requestid} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())
	app.Use(metrics.Middleware())

	routes.Setup(app, authHandler, statsHandler, healthHandler, middleware.JWTProtected(cfg, authService), proxies)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	scheduler.Stop()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}
