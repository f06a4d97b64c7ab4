package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/verdant/internal/cache"
	"github.com/example/verdant/internal/config"
	"github.com/example/verdant/internal/database"
	"github.com/example/verdant/internal/handlers"
	"github.com/example/verdant/internal/logger"
	"github.com/example/verdant/internal/mail"
	"github.com/example/verdant/internal/metrics"
	"github.com/example/verdant/internal/middleware"
	"github.com/example/verdant/internal/routes"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, zlog, !cfg.IsProduction())
	if err != nil {
		zlog.Fatal("database connect failed", zap.Error(err))
	}

	if cfg.AdminEmail != "" {
		found, err := database.PromoteStaff(db, cfg.AdminEmail)
		switch {
		case err != nil:
			zlog.Fatal("promote admin failed", zap.Error(err))
		case !found:
			zlog.Warn("ADMIN_EMAIL has no registered account yet", zap.String("email", logger.MaskEmail(cfg.AdminEmail)))
		default:
			zlog.Info("admin account promoted to staff", zap.String("email", logger.MaskEmail(cfg.AdminEmail)))
		}
	}

	var (
		store       cache.Cache = cache.Nop{}
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			zlog.Fatal("redis connect failed", zap.Error(err))
		}
		store = cache.NewRedisCache(redisClient, "verdant:")
		zlog.Info("redis cache enabled")
	}

	m, err := metrics.New(metrics.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		zlog.Fatal("metrics init failed", zap.Error(err))
	}

	mailer := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: handlers.ErrorHandler(zlog),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(zlog))
	app.Use(m.Middleware())

	app.Static("/media", cfg.MediaRoot)
	app.Get("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	routes.Register(app, routes.Deps{
		DB:      db,
		Config:  cfg,
		Log:     zlog,
		Mailer:  mailer,
		Cache:   store,
		Metrics: m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		zlog.Info("starting server", zap.String("port", cfg.AppPort), zap.String("env", cfg.Environment))
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			zlog.Error("fiber.Listen error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Error("server shutdown", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		zlog.Error("database close", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zlog.Error("redis close", zap.Error(err))
		}
	}
}
